// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/travel-availability/internal/model"
)

// UnavailabilityQueueName is the durable queue change events go to.
const UnavailabilityQueueName = "unavailability.changed"

// Action says what happened to an unavailability.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// UnavailabilityChangedEvent is published after a committed write.  It
// carries the full interval so consumers such as the booking search
// index can react without querying the primary database.
type UnavailabilityChangedEvent struct {
	Action           Action              `json:"action"`
	UnavailabilityID uint64              `json:"unavailability_id"`
	ReferenceID      uint64              `json:"reference_id"`
	ReferenceType    model.ReferenceType `json:"reference_type"`
	StartDatetime    string              `json:"start_datetime"`
	EndDatetime      string              `json:"end_datetime"`
	Reason           *string             `json:"reason,omitempty"`
	OccurredAt       string              `json:"occurred_at"`
}

// NewUnavailabilityChangedEvent builds the event for u.  Times are RFC 3339
// in UTC.
func NewUnavailabilityChangedEvent(action Action, u model.Unavailability, at time.Time) UnavailabilityChangedEvent {
	return UnavailabilityChangedEvent{
		Action:           action,
		UnavailabilityID: u.ID,
		ReferenceID:      u.ReferenceID,
		ReferenceType:    u.ReferenceType,
		StartDatetime:    u.StartDatetime.UTC().Format(time.RFC3339),
		EndDatetime:      u.EndDatetime.UTC().Format(time.RFC3339),
		Reason:           u.Reason,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
}
