package journal_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/eventipc/pkg/eventipc/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) journal.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) journal.Store {
			return journal.NewMemoryStore(0)
		},
		"sqlite": func(t *testing.T) journal.Store {
			s, err := journal.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_RecordAndList(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()
			ctx := context.Background()

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, store.Record(ctx, journal.Incident{
				Kind: journal.KindTampered, Role: "client", AgentID: "a1", Size: 64, At: base,
			}))
			require.NoError(t, store.Record(ctx, journal.Incident{
				Kind: journal.KindHandlerFailed, Role: "server", AgentID: "a2", Event: "greet",
				Detail: "handler for \"greet\" panicked: boom", At: base.Add(time.Second),
			}))

			got, err := store.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, got, 2)

			// Newest first.
			assert.Equal(t, journal.KindHandlerFailed, got[0].Kind)
			assert.Equal(t, "greet", got[0].Event)
			assert.Equal(t, "server", got[0].Role)
			assert.Equal(t, base.Add(time.Second), got[0].At)
			assert.NotEmpty(t, got[0].ID)

			assert.Equal(t, journal.KindTampered, got[1].Kind)
			assert.Equal(t, 64, got[1].Size)
			assert.Equal(t, "a1", got[1].AgentID)

			limited, err := store.List(ctx, 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, got[0].ID, limited[0].ID)
		})
	}
}

func TestStore_FillsIDAndTimestamp(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()
			ctx := context.Background()

			before := time.Now().Add(-time.Second)
			require.NoError(t, store.Record(ctx, journal.Incident{Kind: journal.KindMalformed, Role: "client"}))
			require.NoError(t, store.Record(ctx, journal.Incident{Kind: journal.KindMalformed, Role: "client"}))

			got, err := store.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.NotEqual(t, got[0].ID, got[1].ID)
			assert.True(t, got[0].At.After(before))
		})
	}
}

func TestStore_CountByKind(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()
			ctx := context.Background()

			kinds := []journal.Kind{
				journal.KindTampered, journal.KindTampered, journal.KindTampered,
				journal.KindMalformed, journal.KindConnectFailed,
			}
			for _, k := range kinds {
				require.NoError(t, store.Record(ctx, journal.Incident{Kind: k, Role: "client"}))
			}

			counts, err := store.CountByKind(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[journal.Kind]int{
				journal.KindTampered:      3,
				journal.KindMalformed:     1,
				journal.KindConnectFailed: 1,
			}, counts)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Close())
			ctx := context.Background()

			assert.ErrorIs(t, store.Record(ctx, journal.Incident{Kind: journal.KindTampered}), journal.ErrStoreClosed)
			_, err := store.List(ctx, 0)
			assert.ErrorIs(t, err, journal.ErrStoreClosed)
			_, err = store.CountByKind(ctx)
			assert.ErrorIs(t, err, journal.ErrStoreClosed)

			assert.NoError(t, store.Close())
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()
			ctx := context.Background()

			const goroutines = 10
			const perGoroutine = 20

			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						err := store.Record(ctx, journal.Incident{
							Kind:    journal.KindMalformed,
							Role:    "server",
							AgentID: fmt.Sprintf("agent-%d", id),
						})
						assert.NoError(t, err)
						_, _ = store.List(ctx, 5)
					}
				}(i)
			}
			wg.Wait()

			counts, err := store.CountByKind(ctx)
			require.NoError(t, err)
			assert.Equal(t, goroutines*perGoroutine, counts[journal.KindMalformed])
		})
	}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	store := journal.NewMemoryStore(3)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, journal.Incident{
			Kind:   journal.KindTampered,
			Detail: fmt.Sprintf("n%d", i),
		}))
	}

	assert.Equal(t, 3, store.Len())
	got, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "n4", got[0].Detail)
	assert.Equal(t, "n2", got[2].Detail)

	// Counts include evicted incidents.
	counts, err := store.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, counts[journal.KindTampered])
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	first, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Record(ctx, journal.Incident{Kind: journal.KindConnectFailed, Role: "client"}))
	require.NoError(t, first.Close())

	second, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, journal.KindConnectFailed, got[0].Kind)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := journal.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), journal.Incident{Kind: journal.KindTampered}))
	got, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpen(t *testing.T) {
	mem, err := journal.Open("")
	require.NoError(t, err)
	defer mem.Close()
	assert.IsType(t, &journal.MemoryStore{}, mem)

	db, err := journal.Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &journal.SQLiteStore{}, db)
}
