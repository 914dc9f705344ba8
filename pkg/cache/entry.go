package cache

import (
	"encoding/json"
	"time"
)

// Entry is a single cached value with its expiry metadata. Entries are
// owned by the store that created them and are serialized as JSON in the
// Redis variant.
type Entry struct {
	// Value is the cached payload.
	Value json.RawMessage `json:"value"`

	// CreatedAt is when the entry was written. Eviction removes the
	// oldest entries first, using this timestamp.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry becomes stale; nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewEntry creates an entry for value. ttl <= 0 means the entry never
// expires.
func NewEntry(value []byte, ttl time.Duration) Entry {
	now := time.Now()
	e := Entry{
		Value:     value,
		CreatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		e.ExpiresAt = &expires
	}
	return e
}

// Expired returns true if the entry's expiry has passed.
func (e *Entry) Expired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

// TTL returns the time until expiration. Returns 0 if the entry is
// already expired or never expires.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}
	ttl := time.Until(*e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
