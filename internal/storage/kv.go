// Package storage defines durable client storage: a plain string key-value
// store with no transactions, and the key scheme the engine uses on it.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when a key has no value
var ErrNotFound = errors.New("key not found")

// KV is durable client storage. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by backends holding connections or files
type Closer interface {
	Close() error
}

// Key prefixes
const (
	prefixCode     = "problem-code"
	prefixLanguage = "problem-language"
	prefixCooldown = "problem-cooldown"
)

// CodeKey is the draft key for (course, problem, language).
func CodeKey(courseID, problemID, languageID string) string {
	return join(prefixCode, courseID, problemID, languageID)
}

// LanguageKey is the last-used language key for (course, problem).
func LanguageKey(courseID, problemID string) string {
	return join(prefixLanguage, courseID, problemID)
}

// CooldownKey is the submission cooldown deadline key for (course, problem).
func CooldownKey(courseID, problemID string) string {
	return join(prefixCooldown, courseID, problemID)
}

var componentEscaper = strings.NewReplacer("%", "%25", "-", "%2D")

// join escapes each component so that ids containing the delimiter cannot
// collide with other (course, problem, language) triples.
func join(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte('-')
		b.WriteString(componentEscaper.Replace(p))
	}
	return b.String()
}
