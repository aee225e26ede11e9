package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OpType identifies a logical write operation. The set is closed: new kinds
// are added here at compile time, never registered at runtime. OpType is also
// the coalescing key — at most one pending Operation exists per type.
type OpType string

const (
	OpUpdateProfile              OpType = "update_profile"
	OpUpdateNotificationSettings OpType = "update_notification_settings"
	OpUpdateConsent              OpType = "update_consent"
	OpUpdateAvatar               OpType = "update_avatar"
)

// knownTypes is the closed set accepted by Enqueue.
var knownTypes = map[OpType]bool{
	OpUpdateProfile:              true,
	OpUpdateNotificationSettings: true,
	OpUpdateConsent:              true,
	OpUpdateAvatar:               true,
}

// Valid reports whether t is a member of the closed operation set.
func (t OpType) Valid() bool {
	return knownTypes[t]
}

// Operation is one deferred write waiting to be delivered. The payload is
// opaque to the queue: only the caller and the dispatcher interpret it.
type Operation struct {
	ID            string          `json:"id"`
	Type          OpType          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	AttemptCount  int             `json:"attempt_count"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	Error         string          `json:"error,omitempty"`

	// rev tags the in-memory revision of this entry. A dispatch outcome is
	// only applied when the revision still matches, so a payload replaced
	// while its predecessor was in flight is never removed or re-counted by
	// the stale result. Not persisted.
	rev uint64
}

// newOperation builds a fresh entry for an enqueue that creates (or replaces)
// the payload for a type.
func newOperation(typ OpType, payload []byte, now time.Time) *Operation {
	return &Operation{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: now,
	}
}

// clone returns a copy safe to hand out while the original keeps mutating
// under the queue lock.
func (op *Operation) clone() Operation {
	c := *op
	c.Payload = append(json.RawMessage(nil), op.Payload...)
	if op.LastAttemptAt != nil {
		t := *op.LastAttemptAt
		c.LastAttemptAt = &t
	}
	return c
}
