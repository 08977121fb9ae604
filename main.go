package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootFlags are shared by every command.
type rootFlags struct {
	configPath string
	profile    string
	live       bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "tabgruppen",
		Short:         "Firefox container tab groups",
		Long:          "tabgruppen organizes Firefox containers into nested supergroups, tags tabs, and hides or shows containers per window.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&f.profile, "profile", "", "Firefox profile name (env: TABGRUPPEN_PROFILE)")
	root.Flags().BoolVar(&f.live, "live", false, "connect to the extension instead of reading the session file")

	root.AddCommand(newServeCmd(f))
	root.AddCommand(newSupergroupCmd(f))
	root.AddCommand(newTagCmd(f))
	root.AddCommand(newGroupCmd(f))
	root.AddCommand(newExportCmd(f))
	root.AddCommand(newProfilesCmd())

	return root
}
