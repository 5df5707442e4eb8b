package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestWatcher_CheckTransitions(t *testing.T) {
	p := &fakePinger{}
	w := NewWatcher(p, time.Hour, time.Second, nil)

	var mu sync.Mutex
	var seen []bool
	w.OnChange(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	ctx := context.Background()
	assert.Equal(t, ModeOffline, w.Mode())

	assert.True(t, w.Check(ctx))
	assert.True(t, w.Check(ctx))
	assert.Equal(t, ModeOnline, w.Mode())

	p.fail.Store(true)
	assert.False(t, w.Check(ctx))
	assert.False(t, w.Online())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen, "hooks fire on transitions only")
}

func TestWatcher_RunPollsUntilCancelled(t *testing.T) {
	p := &fakePinger{}
	w := NewWatcher(p, 10*time.Millisecond, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, w.Online())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_Set(t *testing.T) {
	w := NewWatcher(&fakePinger{}, time.Hour, 0, nil)
	var n atomic.Int32
	w.OnChange(func(bool) { n.Add(1) })

	w.Set(context.Background(), true)
	w.Set(context.Background(), true)
	w.Set(context.Background(), false)
	assert.Equal(t, int32(2), n.Load())
}
