package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/tags"
)

// withTags runs fn over a tag service backed by the configured database.
func withTags(f *rootFlags, fn func(svc *tags.Service) error) error {
	_, kv, err := openStorage(f)
	if err != nil {
		return err
	}
	defer applog.Close()
	defer kv.Close()

	store := tags.NewStore(kv)
	defer store.Close()
	return fn(tags.NewService(store, kv))
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func newTagCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tab tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTags(f, func(svc *tags.Service) error {
				snap, err := svc.Store().Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				assigned, err := svc.TagsForTabs(cmd.Context())
				if err != nil {
					return err
				}
				counts := make(map[int]int)
				for _, id := range assigned {
					counts[id]++
				}
				for _, t := range snap.Tags() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t(%d tabs)\n", t.TagID, t.Name, counts[t.TagID])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTags(f, func(svc *tags.Service) error {
				t, err := svc.Store().CreateTag(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.TagID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withTags(f, func(svc *tags.Service) error {
				return svc.Store().RenameTag(cmd.Context(), id, args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a tag and untag every tab carrying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withTags(f, func(svc *tags.Service) error {
				return svc.DeleteTag(cmd.Context(), id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <tab-id> <tag-id>",
		Short: "Tag a tab; tag id 0 clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseID(args[0])
			if err != nil {
				return err
			}
			tagID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withTags(f, func(svc *tags.Service) error {
				return svc.SetTagForTab(cmd.Context(), tabID, tagID)
			})
		},
	})

	return cmd
}

var _ tags.TabAttributes = (*storage.Store)(nil)
