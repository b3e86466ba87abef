package cluster

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		DriverMemory: func(t *testing.T) Store {
			return NewMemoryStore()
		},
		DriverSQLite: func(t *testing.T) Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
			require.NoError(t, err)
			return store
		},
		DriverRedis: func(t *testing.T) Store {
			addr := os.Getenv("REPLCHECK_TEST_REDIS")
			if addr == "" {
				t.Skip("REPLCHECK_TEST_REDIS not set")
			}

			store, err := NewRedisStore(addr)
			require.NoError(t, err)
			return store
		},
	}

	for driver, open := range stores {
		t.Run(driver, func(t *testing.T) {
			t.Run("Lifecycle", func(t *testing.T) {
				store := open(t)
				defer store.Close()
				testLifecycle(t, store)
			})

			t.Run("Concurrent Increments", func(t *testing.T) {
				store := open(t)
				defer store.Close()
				testConcurrentIncrements(t, store)
			})
		})
	}
}

func testLifecycle(t *testing.T, store Store) {
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := store.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	for want := range 5 {
		got, err := store.Increment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	removed, err := store.Invalidate(ctx, id)
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err = store.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Increment(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Invalidated sessions are not resurrected
	ok, err = store.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = store.Invalidate(ctx, id)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Increment(ctx, "never-created")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testConcurrentIncrements(t *testing.T, store Store) {
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)
	defer store.Invalidate(ctx, id)

	const workers, each = 4, 25
	seen := make(chan int, workers*each)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				v, err := store.Increment(ctx, id)
				if err != nil {
					t.Error(err)
					return
				}
				seen <- v
			}
		}()
	}
	wg.Wait()
	close(seen)

	// Every prior value is handed out exactly once
	values := make(map[int]bool)
	for v := range seen {
		assert.False(t, values[v], "value %d returned twice", v)
		values[v] = true
	}
	assert.Len(t, values, workers*each)
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{name: "Default Memory", driver: ""},
		{name: "Memory", driver: DriverMemory},
		{name: "SQLite", driver: DriverSQLite, dsn: filepath.Join(t.TempDir(), "s.db")},
		{name: "SQLite Without Path", driver: DriverSQLite, wantErr: true},
		{name: "Redis Without Address", driver: DriverRedis, wantErr: true},
		{name: "Redis Bad URL", driver: DriverRedis, dsn: "http://localhost", wantErr: true},
		{name: "Unknown", driver: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(tt.driver, tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, store)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, store)
			assert.NoError(t, store.Close())
		})
	}
}

func TestSQLiteSharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	id, err := first.Create(ctx)
	require.NoError(t, err)

	v, err := second.Increment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = first.Increment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	count, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
