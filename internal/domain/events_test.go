package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewOutboxEvent(t *testing.T) {
	at := time.Date(2025, 3, 10, 22, 5, 0, 0, time.UTC)
	e := NewOutboxEvent("E1", AggregateTypeCycle, "2025-03-11", EventTypeBusinessDateAdvanced, nil, at)

	if e.Payload == nil {
		t.Fatalf("expected empty payload map, got nil")
	}
	if e.Published || e.PublishedAt != nil {
		t.Fatalf("new event must be unpublished")
	}
	if !e.CreatedAt.Equal(at) || e.AggregateID != "2025-03-11" {
		t.Fatalf("unexpected event %+v", e)
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestOutboxEventValidate(t *testing.T) {
	tests := []struct {
		name  string
		event *OutboxEvent
	}{
		{"missing id", NewOutboxEvent("", AggregateTypeJob, "J1", EventTypeJobCompleted, nil, time.Time{})},
		{"missing aggregate id", NewOutboxEvent("E1", AggregateTypeJob, "", EventTypeJobCompleted, nil, time.Time{})},
		{"missing aggregate type", NewOutboxEvent("E1", "", "J1", EventTypeJobCompleted, nil, time.Time{})},
		{"missing event type", NewOutboxEvent("E1", AggregateTypeSettlement, "S1", "", nil, time.Time{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.event.Validate(); !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}
