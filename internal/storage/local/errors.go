package local

import "github.com/felixgeelhaar/codelab/internal/storage"

// ErrNotFound is returned by Load and Remove for a missing record. It is the
// storage package sentinel so KV callers can test for it directly.
var ErrNotFound = storage.ErrNotFound
