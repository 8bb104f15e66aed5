// Package cache provides the key-value cache used by the suggestion
// engine. The interface is shaped after a Redis-style client (get,
// set-with-TTL, delete) so the in-process store can be swapped for an
// external one without touching callers.
package cache

import "time"

// Store is a best-effort key-value cache. Implementations must be safe
// for concurrent use; none of the operations carry transactional
// guarantees and callers treat failures as cache misses.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
