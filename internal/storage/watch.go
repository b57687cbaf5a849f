package storage

import (
	"context"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// Watched wraps a KV and publishes a key_changed event after every
// successful write, so readers react to changes instead of polling.
type Watched struct {
	KV
	publisher domain.EventPublisher
}

// Watch wraps kv so that writes are announced on publisher.
func Watch(kv KV, publisher domain.EventPublisher) *Watched {
	return &Watched{KV: kv, publisher: publisher}
}

func (w *Watched) Set(ctx context.Context, key, value string) error {
	if err := w.KV.Set(ctx, key, value); err != nil {
		return err
	}
	w.publisher.Publish(domain.NewKeyChangedEvent(key, false))
	return nil
}

func (w *Watched) Delete(ctx context.Context, key string) error {
	if err := w.KV.Delete(ctx, key); err != nil {
		return err
	}
	w.publisher.Publish(domain.NewKeyChangedEvent(key, true))
	return nil
}

// Close closes the wrapped store when it holds resources
func (w *Watched) Close() error {
	if c, ok := w.KV.(Closer); ok {
		return c.Close()
	}
	return nil
}
