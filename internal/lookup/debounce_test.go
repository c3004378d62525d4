package lookup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncerOnlyLatestSurvivesWindow(t *testing.T) {
	d := NewDebouncer(time.Minute)
	var wg sync.WaitGroup
	results := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = d.Wait(context.Background(), "draft:name", 50*time.Millisecond)
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	require.ErrorIs(t, results[0], ErrSuperseded)
	require.ErrorIs(t, results[1], ErrSuperseded)
	require.NoError(t, results[2])
}

func TestDebouncerStaleAfterNewerTicket(t *testing.T) {
	d := NewDebouncer(time.Minute)
	first, err := d.Wait(context.Background(), "k", 0)
	require.NoError(t, err)
	require.True(t, d.Current(first))

	d.Next("k")
	require.False(t, d.Current(first))

	other := d.Next("other")
	require.True(t, d.Current(other), "keys are independent")
}

func TestDebouncerHonoursCancellation(t *testing.T) {
	d := NewDebouncer(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Wait(ctx, "k", time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDebouncerForgetsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := NewDebouncer(time.Minute)
	d.now = func() time.Time { return now }
	old := d.Next("old")

	now = now.Add(2 * time.Minute)
	d.Next("fresh")
	require.False(t, d.Current(old))
	require.Len(t, d.entries, 1)
}

func TestDebouncerNeverReissuesSwept(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := NewDebouncer(time.Minute)
	d.now = func() time.Time { return now }
	inFlight := d.Next("s1|d1|name")

	now = now.Add(2 * time.Minute)
	d.Next("other")
	require.NotContains(t, d.entries, "s1|d1|name")

	again := d.Next("s1|d1|name")
	require.NotEqual(t, inFlight.Seq, again.Seq)
	require.False(t, d.Current(inFlight))
	require.True(t, d.Current(again))
}
