package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/crawler"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

var startTime = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func openMemory(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return store
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "mysql", "dsn")
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)

	status := 200
	loadTime := 12.5
	created := task.New("t-1", "https://example.com", "example.com", startTime)
	require.NoError(t, store.Create(ctx, created))
	require.ErrorIs(t, store.Create(ctx, created), task.ErrExists)

	got, err := store.Get(ctx, "t-1")
	require.NoError(t, err)
	require.Equal(t, created, got)

	require.NoError(t, got.Transition(task.StatusInProgress, startTime.Add(time.Second)))
	got.SetProgress(42, startTime.Add(2*time.Second))
	got.PagesScanned = 1
	got.EstimatedTotalPages = 10
	got.EstimatedURLCount = 10
	got.IsLargeSite = true
	got.URLs = []string{"https://example.com"}
	got.Pages = []crawler.PageDetail{{
		URL:        "https://example.com",
		Title:      "Home",
		StatusCode: &status,
		LoadTime:   &loadTime,
	}}
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.Get(ctx, "t-1")
	require.NoError(t, err)
	require.Equal(t, got, updated)
}

func TestStoreMissingTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, task.ErrNotFound)
	require.ErrorIs(t, store.Update(ctx, task.New("missing", "u", "d", startTime)), task.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "missing"), task.ErrNotFound)
}

func TestStoreListAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)

	require.NoError(t, store.Create(ctx, task.New("late", "https://b.test", "b.test", startTime.Add(time.Hour))))
	require.NoError(t, store.Create(ctx, task.New("early", "https://a.test", "a.test", startTime)))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "early", tasks[0].ID)
	require.Equal(t, "late", tasks[1].ID)

	require.NoError(t, store.Delete(ctx, "early"))
	tasks, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}
