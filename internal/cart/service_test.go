package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServiceScopesDraftsToStore(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(time.Hour))
	d, err := svc.Open(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)

	_, err = svc.Get(ctx, "s2", d.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.Increment(ctx, "s2", d.ID, "a")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Discard(ctx, "s2", d.ID), ErrNotFound)

	_, err = svc.Get(ctx, "s1", d.ID)
	require.NoError(t, err)
}

func TestServiceLineOpsReportChanges(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(time.Hour))
	d, err := svc.Open(ctx, "s1")
	require.NoError(t, err)
	_, err = svc.Mutate(ctx, "s1", d.ID, "add", func(d *Draft) error {
		d.AddOrMerge(product("a", "4"), 1)
		return nil
	})
	require.NoError(t, err)

	d, changed, err := svc.Decrement(ctx, "s1", d.ID, "a")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, d.Lines[0].Quantity)

	d, changed, err = svc.Increment(ctx, "s1", d.ID, "a")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 2, d.Lines[0].Quantity)

	_, changed, err = svc.Remove(ctx, "s1", d.ID, "nope")
	require.NoError(t, err)
	require.False(t, changed)

	name := "  Budi "
	d, err = svc.UpdateFields(ctx, "s1", d.ID, Fields{CustomerName: &name})
	require.NoError(t, err)
	require.Equal(t, "Budi", d.CustomerName)
}
