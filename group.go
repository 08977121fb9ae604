package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/lifecycle"
	"github.com/lotas/tabgruppen/internal/query"
	"github.com/lotas/tabgruppen/internal/types"
)

// withLive connects to the extension, waits for a first state and runs fn.
func withLive(ctx context.Context, f *rootFlags, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := openRuntime(f, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	stop := rt.start(ctx)
	err = rt.ready(ctx)
	if err == nil {
		err = fn(ctx, rt)
	}
	return errors.Join(err, stop())
}

func newGroupCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Act on the tabs of a container or supergroup in the running browser",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "close <id>",
		Short: "Close every tab below a tab group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLive(cmd.Context(), f, func(ctx context.Context, rt *runtime) error {
				return rt.life.CloseTabGroup(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <id>",
		Short: "Remove the browsing data of every container below a tab group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLive(cmd.Context(), f, func(ctx context.Context, rt *runtime) error {
				return rt.life.RemoveBrowsingDataForTabGroupID(ctx, args[0])
			})
		},
	})

	var color, icon string
	create := &cobra.Command{
		Use:   "create <parent> [name]",
		Short: "Create a container under a supergroup; without a name it is temporary",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLive(cmd.Context(), f, func(ctx context.Context, rt *runtime) error {
				var (
					c   types.Container
					err error
				)
				if len(args) == 1 {
					c, err = rt.life.CreateChildTemporaryContainer(ctx, args[0])
				} else {
					c, err = rt.life.CreateChildContainer(ctx, args[0], types.ContainerDetails{Name: args[1], Color: color, Icon: icon})
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.CookieStoreID, c.Name)
				return nil
			})
		},
	}
	create.Flags().StringVar(&color, "color", "blue", "container color")
	create.Flags().StringVar(&icon, "icon", "circle", "container icon")
	cmd.AddCommand(create)

	var window int
	for _, verb := range []string{"hide", "show"} {
		c := &cobra.Command{
			Use:   verb + " <id>",
			Short: "Hide or show the containers below a tab group on one window, or every window",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLive(cmd.Context(), f, func(ctx context.Context, rt *runtime) error {
					st := rt.state.State()
					windows := st.WindowIDs
					if window != 0 {
						windows = []int{window}
					}
					var errs []error
					for _, w := range windows {
						for _, cs := range st.Directory().ChildContainers(args[0]) {
							var err error
							if verb == "hide" {
								_, err = rt.vis.HideContainerOnWindow(ctx, w, cs)
							} else {
								err = rt.vis.ShowContainerOnWindow(ctx, w, cs)
							}
							if err != nil {
								applog.Error("group."+verb, err, "window", w, "container", cs)
								errs = append(errs, fmt.Errorf("window %d %s: %w", w, cs, err))
							}
						}
					}
					return errors.Join(errs...)
				})
			},
		}
		c.Flags().IntVar(&window, "window", 0, "window id (default: every window)")
		cmd.AddCommand(c)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show-all [window]",
		Short: "Show every hidden tab",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLive(cmd.Context(), f, func(ctx context.Context, rt *runtime) error {
				windows := rt.state.State().WindowIDs
				if len(args) == 1 {
					w, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid window id %q", args[0])
					}
					windows = []int{w}
				}
				var errs []error
				for _, w := range windows {
					if err := rt.vis.ShowAllOnWindow(ctx, w); err != nil {
						errs = append(errs, fmt.Errorf("window %d: %w", w, err))
					}
				}
				return errors.Join(errs...)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tabs <id>",
		Short: "List the tabs below a tab group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLive(cmd.Context(), f, func(ctx context.Context, rt *runtime) error {
				for _, t := range query.NewService(rt.state).Tabs(query.InTabGroup(args[0])) {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\t%s\n", t.WindowID, t.ID, t.CookieStoreID, t.URL)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "autoclean <id> on|off",
		Short: "Clear a tab group's browsing data when its last tab closes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			_, kv, err := openStorage(f)
			if err != nil {
				return err
			}
			defer applog.Close()
			defer kv.Close()
			return lifecycle.New(nil, nil, kv).SetAutoclean(cmd.Context(), args[0], enabled)
		},
	})

	return cmd
}
