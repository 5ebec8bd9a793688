// AngelaMos | 2026
// library_test.go

package library

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type memRepo struct {
	lists    map[string]ListEntry
	progress map[string]Progress
}

func newMemRepo() *memRepo {
	return &memRepo{
		lists:    make(map[string]ListEntry),
		progress: make(map[string]Progress),
	}
}

func listKey(e ListEntry) string {
	return e.UserID + "|" + e.ContentType + "|" + e.ContentID + "|" + e.ListType
}

func progressKey(userID, contentType, contentID string) string {
	return userID + "|" + contentType + "|" + contentID
}

func (m *memRepo) ListEntries(_ context.Context, userID string) ([]ListEntry, error) {
	var out []ListEntry
	for _, e := range m.lists {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return listKey(out[i]) < listKey(out[j]) })
	return out, nil
}

func (m *memRepo) UpsertListEntry(_ context.Context, e ListEntry) (bool, error) {
	k := listKey(e)
	existing, ok := m.lists[k]
	if !ok {
		m.lists[k] = e
		return true, nil
	}
	if e.AddedAt.After(existing.AddedAt) {
		existing.AddedAt = e.AddedAt
		m.lists[k] = existing
	}
	return false, nil
}

func (m *memRepo) DeleteListEntries(_ context.Context, userID string) (int, error) {
	n := 0
	for k, e := range m.lists {
		if e.UserID == userID {
			delete(m.lists, k)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ProgressFor(_ context.Context, userID string) ([]Progress, error) {
	var out []Progress
	for _, p := range m.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) GetProgress(
	_ context.Context,
	userID, contentType, contentID string,
) (*Progress, error) {
	p, ok := m.progress[progressKey(userID, contentType, contentID)]
	if !ok {
		return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
	}
	return &p, nil
}

func (m *memRepo) UpsertProgress(_ context.Context, p Progress) error {
	m.progress[progressKey(p.UserID, p.ContentType, p.ContentID)] = p
	return nil
}

func (m *memRepo) DeleteProgress(_ context.Context, userID string) (int, error) {
	n := 0
	for k, p := range m.progress {
		if p.UserID == userID {
			delete(m.progress, k)
			n++
		}
	}
	return n, nil
}

func TestNormalizeListType(t *testing.T) {
	cases := map[string]string{
		"":            ListMyList,
		"mylist":      ListMyList,
		"Favorites":   ListFavourites,
		"favourite":   ListFavourites,
		"watch-later": ListWatchLater,
		"later":       ListWatchLater,
		"unknown":     ListMyList,
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizeListType(in), "input %q", in)
	}
}

func TestCombineProgress(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	dst := Progress{ProgressSeconds: 120, DurationSeconds: 0, IsFinished: false, UpdatedAt: newer}
	src := Progress{ProgressSeconds: 300, DurationSeconds: 5400, IsFinished: true, UpdatedAt: older, SeriesID: "s1"}

	got := CombineProgress(dst, src)
	assert.Equal(t, 300.0, got.ProgressSeconds)
	assert.Equal(t, 5400.0, got.DurationSeconds)
	assert.True(t, got.IsFinished)
	assert.Equal(t, newer, got.UpdatedAt)
	assert.Equal(t, "s1", got.SeriesID)
}

func TestListMergeStep(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	repo.lists["a"] = ListEntry{UserID: "from", ContentType: "movie", ContentID: "m1", ListType: "", AddedAt: t0.Add(time.Hour)}
	repo.lists["b"] = ListEntry{UserID: "from", ContentType: "movie", ContentID: "m2", ListType: "favorite", AddedAt: t0}
	_, err := repo.UpsertListEntry(ctx, ListEntry{UserID: "to", ContentType: "movie", ContentID: "m1", ListType: ListMyList, AddedAt: t0})
	require.NoError(t, err)

	step := NewListMergeStep(repo)
	moved, err := step.MoveFrom(ctx, "from", "to")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	target, err := repo.ListEntries(ctx, "to")
	require.NoError(t, err)
	require.Len(t, target, 2)
	assert.Equal(t, "m1", target[0].ContentID)
	assert.Equal(t, t0.Add(time.Hour), target[0].AddedAt)
	assert.Equal(t, ListFavourites, target[1].ListType)

	source, err := repo.ListEntries(ctx, "from")
	require.NoError(t, err)
	assert.Empty(t, source)

	again, err := step.MoveFrom(ctx, "from", "to")
	require.NoError(t, err)
	assert.Zero(t, again)

	after, err := repo.ListEntries(ctx, "to")
	require.NoError(t, err)
	assert.Equal(t, target, after)
}

func TestProgressMergeStepTakesMaximum(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertProgress(ctx, Progress{
		UserID: "from", ContentType: "movie", ContentID: "m1",
		ProgressSeconds: 900, DurationSeconds: 6000, UpdatedAt: t0,
	}))
	require.NoError(t, repo.UpsertProgress(ctx, Progress{
		UserID: "from", ContentType: "episode", ContentID: "e1",
		ProgressSeconds: 10, IsFinished: true, UpdatedAt: t0,
	}))
	require.NoError(t, repo.UpsertProgress(ctx, Progress{
		UserID: "to", ContentType: "movie", ContentID: "m1",
		ProgressSeconds: 400, DurationSeconds: 6000, IsFinished: true, UpdatedAt: t0.Add(time.Minute),
	}))

	step := NewProgressMergeStep(repo)
	moved, err := step.MoveFrom(ctx, "from", "to")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	m1, err := repo.GetProgress(ctx, "to", "movie", "m1")
	require.NoError(t, err)
	assert.Equal(t, 900.0, m1.ProgressSeconds)
	assert.True(t, m1.IsFinished)
	assert.Equal(t, t0.Add(time.Minute), m1.UpdatedAt)

	e1, err := repo.GetProgress(ctx, "to", "episode", "e1")
	require.NoError(t, err)
	assert.True(t, e1.IsFinished)

	snapshot := make(map[string]Progress, len(repo.progress))
	for k, v := range repo.progress {
		snapshot[k] = v
	}

	again, err := step.MoveFrom(ctx, "from", "to")
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, snapshot, repo.progress)
}
