package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/export"
	"github.com/lotas/tabgruppen/internal/lifecycle"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "tabgruppen.db")
	cfgPath = filepath.Join(dir, "config.yaml")
	data := "db_path: " + dbPath + "\nlog_dir: " + filepath.Join(dir, "logs") + "\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dbPath
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "supergroup", "tag", "group", "export", "profiles"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if cmd, _, _ := root.Find([]string{"sg", "list"}); cmd.Name() != "list" {
		t.Errorf("sg alias should resolve to supergroup list, got %q", cmd.Name())
	}
}

func TestTagCommands(t *testing.T) {
	cfg, _ := writeConfig(t)

	if id := strings.TrimSpace(execute(t, "--config", cfg, "tag", "create", "later")); id != "1" {
		t.Fatalf("create returned %q, want 1", id)
	}
	execute(t, "--config", cfg, "tag", "create", "reading")
	execute(t, "--config", cfg, "tag", "rename", "2", "read")
	execute(t, "--config", cfg, "tag", "set", "42", "2")

	out := execute(t, "--config", cfg, "tag", "list")
	if !strings.Contains(out, "1\tlater\t(0 tabs)") || !strings.Contains(out, "2\tread\t(1 tabs)") {
		t.Errorf("list output:\n%s", out)
	}

	execute(t, "--config", cfg, "tag", "remove", "2")
	out = execute(t, "--config", cfg, "tag", "list")
	if strings.Contains(out, "read") {
		t.Errorf("tag should be gone:\n%s", out)
	}
}

func TestTagSetUnknownTag(t *testing.T) {
	cfg, _ := writeConfig(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfg, "tag", "set", "1", "9"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected unknown tag error")
	}
}

func TestAutocleanCommand(t *testing.T) {
	cfg, dbPath := writeConfig(t)
	execute(t, "--config", cfg, "group", "autoclean", "firefox-container-3", "on")

	kv, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	ids, err := lifecycle.New(nil, nil, kv).AutocleanEnabled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "firefox-container-3" {
		t.Errorf("autoclean = %v", ids)
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfg, "group", "autoclean", "firefox-container-3", "maybe"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected error for invalid toggle")
	}
}

func TestRender(t *testing.T) {
	doc := export.Document{Profile: "p", Groups: []export.Node{}}
	for _, format := range []string{"markdown", "md", "json", "yaml"} {
		out, err := render(doc, format)
		if err != nil || out == "" {
			t.Errorf("render(%q) = %q, %v", format, out, err)
		}
	}
	if _, err := render(doc, "csv"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPrintDirectory(t *testing.T) {
	snap := directory.NewSnapshot(directory.Storage{
		tabgroup.Root:  {Members: []tabgroup.ID{"supergroup-1", tabgroup.DefaultCookieStore}},
		"supergroup-1": {SupergroupID: 1, Name: "Work", Members: []tabgroup.ID{"firefox-container-1"}},
	})
	var b bytes.Buffer
	printDirectory(&b, snap, []types.Container{{CookieStoreID: "firefox-container-1", Name: "Mail"}})

	want := "Work/  supergroup-1\n" +
		"  Mail  firefox-container-1\n" +
		"firefox-default  firefox-default\n"
	if b.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", b.String(), want)
	}
}

func TestPrintSupergroups(t *testing.T) {
	snap := directory.NewSnapshot(directory.Storage{
		tabgroup.Root:  {Members: []tabgroup.ID{"supergroup-2", "supergroup-1"}},
		"supergroup-1": {SupergroupID: 1, Name: "Work", Members: []tabgroup.ID{"supergroup-3"}},
		"supergroup-2": {SupergroupID: 2, Name: "Home"},
		"supergroup-3": {SupergroupID: 3, Name: "Mail"},
	})
	var b bytes.Buffer
	printSupergroups(&b, snap)

	want := "supergroup-2\tHome\n" +
		"supergroup-1\tWork\n" +
		"supergroup-3\tMail\n"
	if b.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", b.String(), want)
	}
}
