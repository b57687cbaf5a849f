// Package cooldown enforces the wait between submissions. The deadline is
// persisted as an absolute wall-clock time so that restarting the client
// resumes the countdown instead of resetting it.
package cooldown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/storage"
)

const (
	// DefaultWindow is the wait after each submission
	DefaultWindow = 10 * time.Second
	// DefaultTickInterval is how often a running countdown reports
	DefaultTickInterval = time.Second
)

// State is the persisted form of a cooldown
type State struct {
	DisabledUntilEpochMs int64 `json:"disabledUntilEpochMs"`
}

// Config holds limiter settings
type Config struct {
	Window       time.Duration
	TickInterval time.Duration
	Now          func() time.Time
	Publisher    domain.EventPublisher
	Logger       *slog.Logger
}

// Limiter is the submission cooldown for one problem
type Limiter struct {
	kv        storage.KV
	problem   domain.ProblemKey
	key       string
	window    time.Duration
	interval  time.Duration
	now       func() time.Time
	publisher domain.EventPublisher
	logger    *slog.Logger

	mu      sync.Mutex
	until   time.Time
	running bool
	stop    chan struct{}
}

// New creates a limiter for a problem. Call Resume to pick up a persisted
// countdown.
func New(kv storage.KV, problem domain.ProblemKey, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Limiter{
		kv:        kv,
		problem:   problem,
		key:       storage.CooldownKey(problem.CourseID, problem.ProblemID),
		window:    cfg.Window,
		interval:  cfg.TickInterval,
		now:       cfg.Now,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}

// Start records now+window and begins the countdown. It fails with
// ErrCooldownActive while a previous countdown is still running.
func (l *Limiter) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.until.After(now) {
		return fmt.Errorf("%w: %ds remaining", domain.ErrCooldownActive, ceilSeconds(l.until.Sub(now)))
	}

	until := now.Add(l.window)
	data, err := json.Marshal(State{DisabledUntilEpochMs: until.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode cooldown: %w", err)
	}
	if err := l.kv.Set(ctx, l.key, string(data)); err != nil {
		return fmt.Errorf("persist cooldown: %w", err)
	}

	l.until = until
	l.startLoop(ctx)
	l.logger.Debug("cooldown started",
		"course", l.problem.CourseID,
		"problem", l.problem.ProblemID,
		"until", until)
	return nil
}

// Resume loads a persisted deadline. An unexpired one continues counting
// down from the remaining time; an expired or unreadable one is cleared.
func (l *Limiter) Resume(ctx context.Context) error {
	raw, err := l.kv.Get(ctx, l.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cooldown: %w", err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.DisabledUntilEpochMs <= 0 {
		l.logger.Warn("discarding unreadable cooldown", "key", l.key, "value", raw)
		return l.clear(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	until := time.UnixMilli(st.DisabledUntilEpochMs)
	if !until.After(l.now()) {
		l.until = time.Time{}
		return l.deleteEntry(ctx)
	}
	l.until = until
	l.startLoop(ctx)
	return nil
}

// Remaining returns the time left, zero when inactive
func (l *Limiter) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked()
}

// RemainingSeconds returns the time left rounded up to whole seconds
func (l *Limiter) RemainingSeconds() int {
	return ceilSeconds(l.Remaining())
}

// Active reports whether submissions are blocked
func (l *Limiter) Active() bool {
	return l.Remaining() > 0
}

// Close stops the ticker without touching the persisted deadline
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLoop()
}

func (l *Limiter) remainingLocked() time.Duration {
	if l.until.IsZero() {
		return 0
	}
	rem := l.until.Sub(l.now())
	if rem < 0 {
		return 0
	}
	return rem
}

// startLoop runs the ticker. Caller holds mu.
func (l *Limiter) startLoop(ctx context.Context) {
	if l.running {
		return
	}
	l.running = true
	stop := make(chan struct{})
	l.stop = stop
	ctx = context.WithoutCancel(ctx)

	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if done := l.tick(ctx); done {
					return
				}
			}
		}
	}()
}

// stopLoop ends the ticker goroutine. Caller holds mu.
func (l *Limiter) stopLoop() {
	if l.running {
		close(l.stop)
		l.running = false
	}
}

// tick publishes the remaining time, or clears the cooldown once it has
// reached zero. It reports whether the countdown is over.
func (l *Limiter) tick(ctx context.Context) bool {
	l.mu.Lock()
	rem := l.remainingLocked()
	if rem > 0 {
		l.mu.Unlock()
		l.publish(domain.NewCooldownTickEvent(l.problem, ceilSeconds(rem)))
		return false
	}

	l.until = time.Time{}
	l.stopLoop()
	err := l.deleteEntry(ctx)
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("failed to clear cooldown", "key", l.key, "error", err)
	}
	l.publish(domain.NewCooldownFinishedEvent(l.problem))
	return true
}

func (l *Limiter) clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.until = time.Time{}
	l.stopLoop()
	return l.deleteEntry(ctx)
}

func (l *Limiter) deleteEntry(ctx context.Context) error {
	if err := l.kv.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	return nil
}

func (l *Limiter) publish(event domain.Event) {
	if l.publisher != nil {
		l.publisher.Publish(event)
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
