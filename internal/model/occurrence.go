package model

import "time"

// OccurrenceKey is the identity of an occurrence: one person, one instant.
type OccurrenceKey struct {
	PersonID    string
	ScheduledAt time.Time
}

// Occurrence represents one scheduled birthday notification held in the outbox.
type Occurrence struct {
	ID          string     `json:"id"`
	PersonID    string     `json:"personId"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	Payload     string     `json:"payload"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Key returns the composite identity of the occurrence.
func (o *Occurrence) Key() OccurrenceKey {
	return OccurrenceKey{PersonID: o.PersonID, ScheduledAt: o.ScheduledAt}
}

// Delivered reports whether the occurrence has been delivered.
func (o *Occurrence) Delivered() bool {
	return o.DeliveredAt != nil
}

// RegisterOccurrenceParams represents parameters for registering an occurrence.
type RegisterOccurrenceParams struct {
	PersonID    string
	ScheduledAt time.Time
	Payload     string
}

// RegisterResult reports whether Register inserted a new occurrence.
type RegisterResult int

const (
	// RegisterCreated means a new pending occurrence was stored.
	RegisterCreated RegisterResult = iota + 1
	// RegisterAlreadyExists means the key was already stored and nothing changed.
	RegisterAlreadyExists
)

func (r RegisterResult) String() string {
	switch r {
	case RegisterCreated:
		return "created"
	case RegisterAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// StorageInstant normalizes an instant to UTC with millisecond precision,
// the resolution every outbox backend stores.
func StorageInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
