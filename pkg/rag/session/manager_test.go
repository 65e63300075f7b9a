package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/memory"
	"ai-chatbot-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(memory.NewSessionRepository(), "default", logger.NewNopLogger())
	r.SetClock(clock.Now)
	return r, clock
}

func TestRegistry_GetOrCreateSameObjectConcurrently(t *testing.T) {
	r, _ := newRegistry()

	const workers = 32
	got := make([]*store.Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.GetOrCreate("s1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_EmptyIDUsesDefault(t *testing.T) {
	r, _ := newRegistry()

	s := r.GetOrCreate("")

	assert.Equal(t, "default", s.ID)
	assert.True(t, r.Exists(""))
	assert.Same(t, s, r.GetOrCreate("default"))
}

func TestRegistry_CreateIssuesNewIDs(t *testing.T) {
	r, _ := newRegistry()

	a := r.Create()
	b := r.Create()

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestRegistry_AcquireSerializesSameSession(t *testing.T) {
	r, _ := newRegistry()
	ctx := context.Background()

	// Unsynchronized counter; only the guard keeps it consistent under -race
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, release, err := r.Acquire(ctx, "shared")
			require.NoError(t, err)
			defer release()

			counter++
			s.History = append(s.History, store.Turn{Role: store.RoleUser})
		}()
	}
	wg.Wait()

	h, err := r.History(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 50, counter)
	assert.Len(t, h, 50)
}

func TestRegistry_DifferentSessionsDoNotBlock(t *testing.T) {
	r, _ := newRegistry()
	ctx := context.Background()

	_, releaseA, err := r.Acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		_, releaseB, err := r.Acquire(ctx, "b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquiring session b blocked on session a")
	}
}

func TestRegistry_AcquireHonorsContext(t *testing.T) {
	r, _ := newRegistry()

	_, release, err := r.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err = r.Acquire(ctx, "busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	r, _ := newRegistry()

	_, release, err := r.Acquire(context.Background(), "s")
	require.NoError(t, err)
	release()
	release()

	_, release2, err := r.Acquire(context.Background(), "s")
	require.NoError(t, err)
	release2()
}

func TestRegistry_ResetClearsMemoryKeepsScope(t *testing.T) {
	r, _ := newRegistry()
	ctx := context.Background()

	s, release, err := r.Acquire(ctx, "s")
	require.NoError(t, err)
	s.ShortTerm = []store.Turn{{Role: store.RoleUser, NormalizedContent: "hi"}}
	s.History = append(s.History, s.ShortTerm...)
	s.LongTermSummary = "earlier"
	s.Attach("doc-1")
	release()

	require.NoError(t, r.Reset(ctx, "s"))

	s, release, err = r.Acquire(ctx, "s")
	require.NoError(t, err)
	defer release()
	assert.Empty(t, s.ShortTerm)
	assert.Empty(t, s.LongTermSummary)
	assert.Empty(t, s.History)
	assert.Contains(t, s.DocumentScope, "doc-1")
	assert.Equal(t, store.StateActive, s.State)
}

func TestRegistry_ResetHooks(t *testing.T) {
	tests := []struct {
		name      string
		hookErr   error
		wantClear bool
	}{
		{"hook succeeds", nil, true},
		{"hook fails", errors.New("archive unavailable"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRegistry()
			ctx := context.Background()

			s, release, err := r.Acquire(ctx, "s")
			require.NoError(t, err)
			s.History = []store.Turn{{Role: store.RoleUser, NormalizedContent: "hi"}}
			release()

			var seen string
			err = r.Reset(ctx, "s", func(ctx context.Context, sessionID string) error {
				seen = sessionID
				// the guard is held while hooks run
				_, _, err := r.Acquire(timeoutCtx(t), sessionID)
				assert.Error(t, err)
				return tt.hookErr
			})
			assert.Equal(t, "s", seen)
			assert.Equal(t, tt.hookErr, err)

			s, release, err = r.Acquire(ctx, "s")
			require.NoError(t, err)
			defer release()
			assert.Equal(t, tt.wantClear, len(s.History) == 0)
		})
	}
}

func timeoutCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestRegistry_DropIdle(t *testing.T) {
	r, clock := newRegistry()
	ctx := context.Background()

	old := r.GetOrCreate("old")
	clock.Advance(30 * time.Minute)
	r.GetOrCreate("fresh")

	// "busy" is idle too but its guard is held
	r.GetOrCreate("busy")
	_, releaseBusy, err := r.Acquire(ctx, "busy")
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)

	evicted := r.DropIdle(time.Hour)

	assert.Equal(t, 1, evicted)
	assert.False(t, r.Exists("old"))
	assert.True(t, r.Exists("fresh"))
	assert.True(t, r.Exists("busy"))
	assert.Equal(t, store.StateEvicted, old.State)
	releaseBusy()

	// A later reference gets a fresh session
	again := r.GetOrCreate("old")
	assert.NotSame(t, old, again)
	assert.Equal(t, store.StateActive, again.State)
}

func TestRegistry_AcquireSkipsEvictedEntry(t *testing.T) {
	r, clock := newRegistry()
	ctx := context.Background()

	first := r.GetOrCreate("s")
	clock.Advance(2 * time.Hour)
	require.Equal(t, 1, r.DropIdle(time.Hour))

	s, release, err := r.Acquire(ctx, "s")
	require.NoError(t, err)
	defer release()

	assert.NotSame(t, first, s)
	assert.Equal(t, store.StateActive, s.State)
}
