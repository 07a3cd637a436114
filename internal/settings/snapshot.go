package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot is an immutable copy of the settings table.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

// Replace swaps in a snapshot built from values. Keys are trimmed and values
// copied, so the caller may reuse the map.
func Replace(updatedAt time.Time, values map[string]json.RawMessage) {
	next := &snapshot{
		updatedAt: updatedAt.UTC(),
		values:    make(map[string]json.RawMessage, len(values)),
	}
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next.values[key] = append(json.RawMessage(nil), v...)
	}
	current.Store(next)
}

// UpdatedAt reports when the newest loaded setting was written.
func UpdatedAt() time.Time {
	if s := current.Load(); s != nil {
		return s.updatedAt
	}
	return time.Time{}
}

// Raw returns a copy of the stored JSON for key; ok is false when unset.
func Raw(key string) (json.RawMessage, bool) {
	s := current.Load()
	if s == nil {
		return nil, false
	}
	v, ok := s.values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), v...), true
}
