// Key/value configuration storage for the moderation engine.
//
// Holds the privileged role membership sets (JSON string arrays) and the
// warning escalation thresholds (decimal integers). Values are plain
// strings; callers parse. SetMulti applies a group of writes as one
// logical transaction, which the role registry relies on to keep its
// three membership sets disjoint under concurrent assignment.
package configstore

import (
	"context"
	"errors"
)

// Returned by Get when a key has never been set.
var ErrNotFound = errors.New("config key not found")

// UpdateFunc recomputes a group of values from their current stored
// state. cur holds the current value of every requested key; keys never
// set are absent from the map. The returned map is written in full.
type UpdateFunc func(cur map[string]string) (map[string]string, error)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, val string) error
	SetMulti(ctx context.Context, vals map[string]string) error
	// Update applies fn to the named keys with the read and the write in
	// one store transaction, so two concurrent read-modify-write cycles
	// over the same keys cannot lose each other's acknowledged writes.
	Update(ctx context.Context, keys []string, fn UpdateFunc) error
	List(ctx context.Context) (map[string]string, error)
}
