package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/tui"
)

func runTUI(ctx context.Context, f *rootFlags) error {
	rt, err := openRuntime(f, f.live)
	if err != nil {
		return err
	}
	defer rt.Close()

	stop := rt.start(ctx)
	opts := tui.Options{Profile: rt.profile, Live: rt.live()}
	if rt.live() {
		opts.Hider = rt.vis
		opts.Closer = rt.life
	}

	p := tea.NewProgram(tui.NewModel(rt.state, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()
	if err := stop(); err != nil {
		applog.Error("runtime.stop", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep the live state, cleanup and storage watcher running without a UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(f, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Fprintf(os.Stderr, "Listening for Firefox extension on 127.0.0.1:%d\n", rt.cfg.Port)
			applog.Info("serve.start", "port", rt.cfg.Port, "db", rt.cfg.DBPath)
			stop := rt.start(cmd.Context())
			<-cmd.Context().Done()
			return stop()
		},
	}
}
