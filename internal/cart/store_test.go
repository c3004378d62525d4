package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, time.Hour)
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Create(ctx, Draft{ID: "d1", StoreID: "s1"}))
	d, err := store.Update(ctx, "d1", func(d *Draft) error {
		d.AddOrMerge(product("a", "2.50"), 2)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "5", d.GrandTotal().String())

	_, err = store.Update(ctx, "d1", func(d *Draft) error {
		d.AddOrMerge(product("b", "1"), 1)
		return errors.New("boom")
	})
	require.Error(t, err)
	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1, "failed update must not be persisted")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "d1", func(d *Draft) error {
				d.Increment("a")
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	got, err = store.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, 12, got.Lines[0].Quantity)

	require.NoError(t, store.Delete(ctx, "d1"))
	_, err = store.Get(ctx, "d1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(time.Hour))
}

func TestRedisStore(t *testing.T) {
	_, store := newRedisStore(t)
	store.Locker.RetryBackoff = time.Millisecond
	storeContract(t, store)
}

func TestMemoryStoreExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Create(context.Background(), Draft{ID: "d1"}))

	now = now.Add(59 * time.Second)
	_, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(context.Background(), "d1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	mr, store := newRedisStore(t)
	require.NoError(t, store.Create(context.Background(), Draft{ID: "d1"}))
	require.Equal(t, time.Hour, mr.TTL("pos:draft:d1"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(context.Background(), "d1")
	require.ErrorIs(t, err, ErrNotFound)
}
