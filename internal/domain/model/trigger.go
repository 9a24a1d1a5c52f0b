package model

import "time"

// TriggerUpdate is the only trigger tag the ingestor acts on.
const TriggerUpdate = "update"

// UpdateTrigger asks the server to run one ingestion cycle. It is never
// persisted; Timestamp is informational only.
type UpdateTrigger struct {
	Trigger   string
	Timestamp time.Time
}

// NewUpdateTrigger returns an "update" trigger stamped with at.
func NewUpdateTrigger(at time.Time) *UpdateTrigger {
	return &UpdateTrigger{Trigger: TriggerUpdate, Timestamp: at}
}

// IsUpdate reports whether the trigger requests an ingestion cycle.
func (t *UpdateTrigger) IsUpdate() bool {
	return t != nil && t.Trigger == TriggerUpdate
}
