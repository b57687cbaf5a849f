package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// Sink receives envelopes for delivery outside the process
type Sink interface {
	PublishJSON(ctx context.Context, data any) error
}

// Source is a bus that can be subscribed to
type Source interface {
	SubscribeChan(buffer int) (<-chan domain.Event, func())
}

// ForwarderConfig holds forwarder settings
type ForwarderConfig struct {
	Buffer         int           // Subscription buffer size
	PublishTimeout time.Duration // Per-message publish timeout
	Skip           []string      // Event types that are not forwarded
	Logger         *slog.Logger
}

// DefaultForwarderConfig skips cooldown ticks, which are only useful live
func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		Buffer:         256,
		PublishTimeout: 5 * time.Second,
		Skip:           []string{domain.EventCooldownTick},
	}
}

// Forwarder republishes bus events to a sink. Publishing happens on its own
// goroutine so that a slow broker never blocks the bus.
type Forwarder struct {
	sink    Sink
	cfg     ForwarderConfig
	skip    map[string]bool
	logger  *slog.Logger
	cancel  func()
	wg      sync.WaitGroup
	mu      sync.Mutex
	sent    int
	failed  int
	started bool
}

// NewForwarder creates a forwarder
func NewForwarder(sink Sink, cfg ForwarderConfig) *Forwarder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]bool, len(cfg.Skip))
	for _, t := range cfg.Skip {
		skip[t] = true
	}
	return &Forwarder{sink: sink, cfg: cfg, skip: skip, logger: logger}
}

// Start subscribes to source and forwards until Stop
func (f *Forwarder) Start(source Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true

	ch, cancel := source.SubscribeChan(f.cfg.Buffer)
	f.cancel = cancel

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for e := range ch {
			f.forward(e)
		}
	}()
}

// Stop unsubscribes and waits for queued events to be sent
func (f *Forwarder) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Stats returns how many events were sent and how many failed
func (f *Forwarder) Stats() (sent, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.failed
}

func (f *Forwarder) forward(e domain.Event) {
	if f.skip[e.EventType()] {
		return
	}
	env, err := NewEnvelope(e)
	if err != nil {
		f.logger.Warn("dropping event", "type", e.EventType(), "error", err)
		f.count(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.PublishTimeout)
	defer cancel()
	if err := f.sink.PublishJSON(ctx, env); err != nil {
		f.logger.Warn("failed to forward event",
			"type", env.Type,
			"event_id", env.ID,
			"error", err)
		f.count(false)
		return
	}
	f.count(true)
}

func (f *Forwarder) count(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.sent++
	} else {
		f.failed++
	}
}
