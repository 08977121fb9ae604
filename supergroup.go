package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

func newSupergroupCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "supergroup",
		Aliases: []string{"sg"},
		Short:   "Manage the supergroup directory",
	}

	var flat bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the directory tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.dir.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if flat {
				printSupergroups(cmd.OutOrStdout(), snap)
				return nil
			}
			containers, err := rt.host.QueryContainers(cmd.Context())
			if err != nil {
				return err
			}
			printDirectory(cmd.OutOrStdout(), snap, containers)
			return nil
		},
	}
	list.Flags().BoolVar(&flat, "flat", false, "print only supergroup ids and names, one per line")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a supergroup under the root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.dir.CreateSupergroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a supergroup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.dir.RenameSupergroup(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a supergroup, moving its members to its parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.dir.RemoveSupergroup(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "move <id> <parent>",
		Short: "Move a container or supergroup into another supergroup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.dir.MoveTabGroupToSupergroup(cmd.Context(), args[0], args[1])
		},
	})

	for _, dir := range []string{"up", "down"} {
		cmd.AddCommand(&cobra.Command{
			Use:   dir + " <id>",
			Short: "Move a tab group " + dir + " among its siblings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := openRuntime(f, false)
				if err != nil {
					return err
				}
				defer rt.Close()
				if dir == "up" {
					return rt.dir.MoveTabGroupUp(cmd.Context(), args[0])
				}
				return rt.dir.MoveTabGroupDown(cmd.Context(), args[0])
			},
		})
	}

	return cmd
}

func printDirectory(w io.Writer, snap *directory.Snapshot, containers []types.Container) {
	names := make(map[string]string, len(containers))
	for _, c := range containers {
		names[c.CookieStoreID] = c.Name
	}
	var walk func(id tabgroup.ID, depth int)
	walk = func(id tabgroup.ID, depth int) {
		for _, m := range snap.Members(id) {
			indent := strings.Repeat("  ", depth)
			if tabgroup.IsCookieStore(m) {
				name := names[m]
				if name == "" {
					name = m
				}
				fmt.Fprintf(w, "%s%s  %s\n", indent, name, m)
				continue
			}
			sg, _ := snap.Supergroup(m)
			fmt.Fprintf(w, "%s%s/  %s\n", indent, sg.Name, m)
			walk(m, depth+1)
		}
	}
	walk(tabgroup.Root, 0)
}

// printSupergroups prints one line per supergroup below the root, in
// directory order.
func printSupergroups(w io.Writer, snap *directory.Snapshot) {
	for _, id := range snap.Supergroups() {
		if id == tabgroup.Root {
			continue
		}
		sg, _ := snap.Supergroup(id)
		fmt.Fprintf(w, "%s\t%s\n", id, sg.Name)
	}
}
