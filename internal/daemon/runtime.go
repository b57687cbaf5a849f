package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/codelab/internal/assessment"
	"github.com/felixgeelhaar/codelab/internal/config"
	"github.com/felixgeelhaar/codelab/internal/events"
	"github.com/felixgeelhaar/codelab/internal/judge"
	"github.com/felixgeelhaar/codelab/internal/storage"
	"github.com/felixgeelhaar/codelab/internal/storage/backend"
)

// Runtime holds the long-lived collaborators behind the server
type Runtime struct {
	Store   *storage.Watched
	Bus     *events.Bus
	Judge   *judge.Client
	Manager *assessment.Manager

	conn      *events.Connection
	forwarder *events.Forwarder
	logger    *slog.Logger
}

// Build opens storage, connects the judge and, when configured, starts
// forwarding events to RabbitMQ. A broker that cannot be reached is logged
// and skipped; storage that cannot be opened is fatal.
func Build(ctx context.Context, cfg *config.LocalConfig, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{
		Bus:    events.NewBus(),
		logger: logger,
	}

	kv, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	rt.Store = storage.Watch(kv, rt.Bus)
	logger.Info("storage ready", "backend", cfg.Storage.Backend)

	resilience := judge.DefaultResilienceConfig()
	if cfg.Judge.MaxConcurrent > 0 {
		resilience.MaxConcurrent = cfg.Judge.MaxConcurrent
	}
	if cfg.Judge.RatePerSecond > 0 {
		resilience.RatePerSecond = cfg.Judge.RatePerSecond
	}
	rt.Judge = judge.New(judge.Config{
		BaseURL:    cfg.Judge.BaseURL,
		Token:      cfg.Judge.Token,
		Timeout:    cfg.Judge.Timeout(),
		Resilience: resilience,
		Logger:     logger.With("component", "judge"),
	})

	rt.Manager = assessment.NewManager(assessment.Deps{
		Judge:     rt.Judge,
		Store:     rt.Store,
		Publisher: rt.Bus,
		Logger:    logger.With("component", "assessment"),
		Languages: cfg.Judge.Languages,
		Cooldown:  cfg.Assessment.Cooldown(),
	})

	if cfg.Events.AMQPURL != "" {
		conn, err := events.NewConnection(cfg.Events.AMQPURL, cfg.Events.Queue)
		if err != nil {
			logger.Warn("event forwarding disabled", "error", err)
		} else {
			fwdCfg := events.DefaultForwarderConfig()
			fwdCfg.Logger = logger.With("component", "events")
			rt.conn = conn
			rt.forwarder = events.NewForwarder(conn, fwdCfg)
			rt.forwarder.Start(rt.Bus)
			logger.Info("forwarding events", "queue", conn.Queue())
		}
	}

	return rt, nil
}

// Close stops forwarding and releases storage and the judge client
func (rt *Runtime) Close() error {
	var errs []error
	if rt.forwarder != nil {
		rt.forwarder.Stop()
		sent, failed := rt.forwarder.Stats()
		rt.logger.Info("event forwarder stopped", "sent", sent, "failed", failed)
	}
	if rt.conn != nil {
		errs = append(errs, rt.conn.Close())
	}
	if rt.Manager != nil {
		rt.Manager.Close()
	}
	if rt.Judge != nil {
		errs = append(errs, rt.Judge.Close())
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}
