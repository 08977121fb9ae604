package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lotas/tabgruppen/internal/export"
	"github.com/lotas/tabgruppen/internal/firefox"
)

func render(doc export.Document, format string) (string, error) {
	switch format {
	case "markdown", "md":
		return export.Markdown(doc), nil
	case "json":
		return export.JSON(doc)
	case "yaml", "yml":
		return export.YAML(doc)
	}
	return "", fmt.Errorf("unknown format %q (want markdown, json or yaml)", format)
}

func newExportCmd(f *rootFlags) *cobra.Command {
	var (
		format  string
		outFile string
		live    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tabs grouped by the supergroup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, live)
			if err != nil {
				return err
			}
			defer rt.Close()

			stop := rt.start(cmd.Context())
			err = rt.ready(cmd.Context())
			st := rt.state.State()
			if stopErr := stop(); err == nil {
				err = stopErr
			}
			if err != nil {
				return err
			}

			output, err := render(export.Build(st, rt.profile), format)
			if err != nil {
				return err
			}
			if outFile != "" {
				return os.WriteFile(outFile, []byte(output), 0o644)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), output)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown, json or yaml")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file path (default: stdout)")
	cmd.Flags().BoolVar(&live, "live", false, "export from the live extension instead of the session file")
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List Firefox profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := firefox.DiscoverProfiles()
			if err != nil {
				return fmt.Errorf("discover profiles: %w", err)
			}
			if len(profiles) == 0 {
				return errors.New("no Firefox profiles found")
			}
			for _, p := range profiles {
				suffix := ""
				if p.IsDefault {
					suffix = " [default]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)%s\n", p.Name, p.Path, suffix)
			}
			return nil
		},
	}
}
