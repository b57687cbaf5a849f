package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"code", CodeKey("c1", "p1", "python"), "problem-code-c1-p1-python"},
		{"language", LanguageKey("c1", "p1"), "problem-language-c1-p1"},
		{"cooldown", CooldownKey("c1", "p1"), "problem-cooldown-c1-p1"},
		{"escaped delimiter", CodeKey("c-1", "p", "cpp"), "problem-code-c%2D1-p-cpp"},
		{"escaped percent", LanguageKey("50%", "p"), "problem-language-50%25-p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestKeys_NoCollisions(t *testing.T) {
	assert.NotEqual(t, CodeKey("a-b", "c", "python"), CodeKey("a", "b-c", "python"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", ""))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "", v)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))
	assert.Equal(t, 0, m.Len())
}

type failingKV struct{ *Memory }

func (f *failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestWatch_PublishesOnWrite(t *testing.T) {
	ctx := context.Background()
	bus := domain.NewEventDispatcher()
	events, cancel := bus.SubscribeChan(8)
	defer cancel()

	w := Watch(NewMemory(), bus)
	require.NoError(t, w.Set(ctx, "problem-language-c1-p1", "python"))
	require.NoError(t, w.Delete(ctx, "problem-language-c1-p1"))

	require.Len(t, events, 2)
	first := (<-events).(domain.KeyChangedEvent)
	assert.Equal(t, "problem-language-c1-p1", first.Key)
	assert.False(t, first.Deleted)
	second := (<-events).(domain.KeyChangedEvent)
	assert.True(t, second.Deleted)

	// Reads are not announced
	w.Get(ctx, "problem-language-c1-p1")
	assert.Empty(t, events)
}

func TestWatch_NoEventOnFailure(t *testing.T) {
	bus := domain.NewEventDispatcher()
	events, cancel := bus.SubscribeChan(8)
	defer cancel()

	w := Watch(&failingKV{Memory: NewMemory()}, bus)
	require.Error(t, w.Set(context.Background(), "k", "v"))
	assert.Empty(t, events, "failed write published an event")
}
