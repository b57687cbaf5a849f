package cooldown

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/storage"
)

var problem = domain.ProblemKey{CourseID: "algo-101", ProblemID: "two-sum"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// newLimiter uses a tick interval long enough that only manual ticks fire
func newLimiter(kv storage.KV, clock *fakeClock, pub domain.EventPublisher) *Limiter {
	return New(kv, problem, Config{
		Window:       10 * time.Second,
		TickInterval: time.Hour,
		Now:          clock.Now,
		Publisher:    pub,
	})
}

func TestStart_PersistsDeadline(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := newFakeClock()
	l := newLimiter(kv, clock, nil)
	defer l.Close()

	require.NoError(t, l.Start(ctx))

	raw, err := kv.Get(ctx, storage.CooldownKey(problem.CourseID, problem.ProblemID))
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, clock.Now().Add(10*time.Second).UnixMilli(), st.DisabledUntilEpochMs)
	assert.Contains(t, raw, `"disabledUntilEpochMs"`)

	assert.True(t, l.Active())
	assert.Equal(t, 10, l.RemainingSeconds())
}

func TestStart_RejectedWhileActive(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newLimiter(storage.NewMemory(), clock, nil)
	defer l.Close()

	require.NoError(t, l.Start(ctx))
	clock.Advance(3 * time.Second)

	err := l.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrCooldownActive)
	assert.Equal(t, 7, l.RemainingSeconds())
}

func TestResume_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := newFakeClock()

	first := newLimiter(kv, clock, nil)
	require.NoError(t, first.Start(ctx))
	first.Close()

	clock.Advance(4 * time.Second)

	reloaded := newLimiter(kv, clock, nil)
	defer reloaded.Close()
	require.NoError(t, reloaded.Resume(ctx))

	assert.True(t, reloaded.Active())
	assert.Equal(t, 6*time.Second, reloaded.Remaining())
	assert.Equal(t, 6, reloaded.RemainingSeconds())
}

func TestResume_ExpiredIsCleared(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := newFakeClock()
	key := storage.CooldownKey(problem.CourseID, problem.ProblemID)

	past := clock.Now().Add(-time.Second).UnixMilli()
	require.NoError(t, kv.Set(ctx, key, `{"disabledUntilEpochMs":`+strconv.FormatInt(past, 10)+`}`))

	l := newLimiter(kv, clock, nil)
	defer l.Close()
	require.NoError(t, l.Resume(ctx))

	assert.False(t, l.Active())
	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResume_UnreadableIsCleared(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	key := storage.CooldownKey(problem.CourseID, problem.ProblemID)
	require.NoError(t, kv.Set(ctx, key, "not json"))

	l := newLimiter(kv, newFakeClock(), nil)
	defer l.Close()
	require.NoError(t, l.Resume(ctx))

	assert.False(t, l.Active())
	assert.Equal(t, 0, kv.Len())
}

func TestResume_Nothing(t *testing.T) {
	l := newLimiter(storage.NewMemory(), newFakeClock(), nil)
	defer l.Close()

	require.NoError(t, l.Resume(context.Background()))
	assert.False(t, l.Active())
	assert.Equal(t, time.Duration(0), l.Remaining())
}

func TestTick_CountsDownAndClears(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := newFakeClock()
	rec := &recorder{}
	l := newLimiter(kv, clock, rec)
	defer l.Close()

	require.NoError(t, l.Start(ctx))

	clock.Advance(time.Second)
	assert.False(t, l.tick(ctx))

	rec.mu.Lock()
	require.Len(t, rec.events, 1)
	tick, ok := rec.events[0].(domain.CooldownTickEvent)
	rec.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, 9, tick.RemainingSeconds)
	assert.Equal(t, problem, tick.ProblemKey())

	clock.Advance(9 * time.Second)
	assert.False(t, l.Active())
	assert.True(t, l.tick(ctx))

	assert.Equal(t, []string{domain.EventCooldownTick, domain.EventCooldownFinished}, rec.types())
	assert.Equal(t, 0, kv.Len())

	// A new submission may start once the countdown finished
	require.NoError(t, l.Start(ctx))
	assert.True(t, l.Active())
}

func TestLoop_Ticks(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	dispatcher := domain.NewEventDispatcher()
	events, cancel := dispatcher.SubscribeChan(16)
	defer cancel()

	l := New(storage.NewMemory(), problem, Config{
		Window:       10 * time.Second,
		TickInterval: 5 * time.Millisecond,
		Now:          clock.Now,
		Publisher:    dispatcher,
	})
	defer l.Close()

	require.NoError(t, l.Start(ctx))
	clock.Advance(10 * time.Second)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.EventType() == domain.EventCooldownFinished {
				assert.False(t, l.Active())
				return
			}
		case <-deadline:
			t.Fatal("cooldown never finished")
		}
	}
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{5500 * time.Millisecond, 6},
		{10 * time.Second, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ceilSeconds(tt.in), tt.in.String())
	}
}
