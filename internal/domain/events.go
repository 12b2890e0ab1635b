package domain

import (
	"fmt"
	"time"
)

// Event types written to the outbox by the EOD jobs.
const (
	EventTypeJobCompleted         = "eod.job.completed"
	EventTypeJobFailed            = "eod.job.failed"
	EventTypeBusinessDateAdvanced = "eod.business_date.advanced"
	EventTypeSettlementPosted     = "fx.settlement.posted"
)

// Aggregate types. A job event is keyed by its job log id, a date event by
// the new business date and a settlement event by its settlement id.
const (
	AggregateTypeJob        = "eod_job"
	AggregateTypeCycle      = "eod_cycle"
	AggregateTypeSettlement = "fx_settlement"
)

// OutboxEvent is a fact recorded next to the ledger change that caused it
// and relayed to subscribers after commit.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewOutboxEvent builds an unpublished event.
func NewOutboxEvent(id, aggregateType, aggregateID, eventType string, payload map[string]any, at time.Time) *OutboxEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return &OutboxEvent{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}
}

// Validate reports the first missing identifying field.
func (e *OutboxEvent) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	case e.AggregateType == "" || e.AggregateID == "":
		return fmt.Errorf("%w: aggregate is required", ErrInvalidEvent)
	case e.EventType == "":
		return fmt.Errorf("%w: event type is required", ErrInvalidEvent)
	}
	return nil
}
