package tags

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/storage"
)

func newService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	store := NewStore(kv)
	t.Cleanup(store.Close)
	return NewService(store, kv), kv
}

func TestCreateTagNeverReusesIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	store := svc.Store()

	a, err := store.CreateTag(ctx, "a")
	require.NoError(t, err)
	b, err := store.CreateTag(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, a.TagID)
	assert.Equal(t, 2, b.TagID)

	require.NoError(t, store.RemoveTagFromDirectory(ctx, a.TagID))
	c, err := store.CreateTag(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, c.TagID)
	assert.NotEqual(t, NoTag, c.TagID)
}

func TestRenameTag(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	store := svc.Store()
	tag, err := store.CreateTag(ctx, "old")
	require.NoError(t, err)

	require.NoError(t, store.RenameTag(ctx, tag.TagID, "new"))
	require.NoError(t, store.RenameTag(ctx, 99, "ghost"))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{TagID: tag.TagID, Name: "new"}}, snap.Tags())
}

func TestSetTagForTabValidates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	assert.ErrorIs(t, svc.SetTagForTab(ctx, 1, -1), ErrInvalidTagID)
	assert.ErrorIs(t, svc.SetTagForTab(ctx, 1, 7), ErrUnknownTag)

	tag, err := svc.Store().CreateTag(ctx, "work")
	require.NoError(t, err)
	require.NoError(t, svc.SetTagForTab(ctx, 1, tag.TagID))

	got, err := svc.TagForTab(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, tag.TagID, got)

	got, err = svc.TagForTab(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, NoTag, got)
}

func TestDeleteTagSweepsAssignments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	store := svc.Store()

	t1, err := store.CreateTag(ctx, "T1")
	require.NoError(t, err)
	t2, err := store.CreateTag(ctx, "T2")
	require.NoError(t, err)
	require.NoError(t, svc.SetTagForTab(ctx, 42, t1.TagID))
	require.NoError(t, svc.SetTagForTab(ctx, 43, t2.TagID))

	require.NoError(t, svc.DeleteTag(ctx, t1.TagID))

	v, err := store.Value(ctx)
	require.NoError(t, err)
	assert.NotContains(t, v, t1.TagID)

	got, err := svc.TagForTab(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, NoTag, got)

	assigned, err := svc.TagsForTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{43: t2.TagID}, assigned)
}

func TestRemoveFromDirectoryKeepsAssignments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	tag, err := svc.Store().CreateTag(ctx, "T")
	require.NoError(t, err)
	require.NoError(t, svc.SetTagForTab(ctx, 5, tag.TagID))

	require.NoError(t, svc.Store().RemoveTagFromDirectory(ctx, tag.TagID))

	got, err := svc.TagForTab(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, tag.TagID, got)
}

func TestServiceOnChanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	fired := 0
	cancel := svc.OnChanged(func() { fired++ })

	tag, err := svc.Store().CreateTag(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	require.NoError(t, svc.SetTagForTab(ctx, 9, tag.TagID))
	assert.Equal(t, 2, fired)

	cancel()
	require.NoError(t, svc.SetTagForTab(ctx, 9, NoTag))
	assert.Equal(t, 2, fired)
}

type racingKV struct {
	*storage.Store
	during func()
}

func (r *racingKV) Get(ctx context.Context, key string, v any) (bool, error) {
	ok, err := r.Store.Get(ctx, key, v)
	if key == StorageKey && r.during != nil {
		fn := r.during
		r.during = nil
		fn()
	}
	return ok, err
}

func TestChangeDuringReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	local, err := storage.Open(path)
	require.NoError(t, err)
	defer local.Close()
	remote, err := storage.Open(path)
	require.NoError(t, err)
	defer remote.Close()

	other := NewStore(remote)
	defer other.Close()

	var created Tag
	kv := &racingKV{Store: local}
	kv.during = func() {
		created, err = other.CreateTag(ctx, "from elsewhere")
		require.NoError(t, err)
		require.NoError(t, local.Poll(ctx))
	}
	s := NewStore(kv)
	defer s.Close()

	v, err := s.Value(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	v, err = s.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from elsewhere", v[created.TagID].Name)
}

func TestRunForgetsClosedTabs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	tag, err := svc.Store().CreateTag(ctx, "banking")
	require.NoError(t, err)
	require.NoError(t, svc.SetTagForTab(ctx, 1, tag.TagID))
	require.NoError(t, svc.SetTagForTab(ctx, 2, tag.TagID))

	events := make(chan browser.Event, 2)
	events <- browser.TabActivated{TabID: 2, WindowID: 1}
	events <- browser.TabRemoved{TabID: 1, WindowID: 1}
	close(events)
	svc.Run(ctx, events)

	assigned, err := svc.TagsForTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2: tag.TagID}, assigned)
}

func TestPruneDropsTagsOfClosedTabs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	tag, err := svc.Store().CreateTag(ctx, "T")
	require.NoError(t, err)
	for _, id := range []int{1, 2, 3} {
		require.NoError(t, svc.SetTagForTab(ctx, id, tag.TagID))
	}

	n, err := svc.Prune(ctx, []int{2, 7})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assigned, err := svc.TagsForTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2: tag.TagID}, assigned)
}
