package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

type SessionStatusChanged struct {
	eventID    uuid.UUID
	sessionID  uuid.UUID
	from       Status
	to         Status
	source     string
	target     string
	occurredAt time.Time
}

func NewSessionStatusChanged(s *Session, from Status, at time.Time) *SessionStatusChanged {
	return &SessionStatusChanged{
		eventID:    uuid.New(),
		sessionID:  s.ID,
		from:       from,
		to:         s.Status,
		source:     s.SourceFormat,
		target:     s.TargetFormat,
		occurredAt: at,
	}
}

func (e *SessionStatusChanged) EventID() uuid.UUID     { return e.eventID }
func (e *SessionStatusChanged) EventType() string      { return "SessionStatusChanged" }
func (e *SessionStatusChanged) AggregateID() uuid.UUID { return e.sessionID }
func (e *SessionStatusChanged) OccurredAt() time.Time  { return e.occurredAt }

func (e *SessionStatusChanged) From() Status { return e.from }
func (e *SessionStatusChanged) To() Status   { return e.to }

func (e *SessionStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		SessionID  uuid.UUID `json:"session_id"`
		From       Status    `json:"from"`
		To         Status    `json:"to"`
		Source     string    `json:"source_format"`
		Target     string    `json:"target_format"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		SessionID:  e.sessionID,
		From:       e.from,
		To:         e.to,
		Source:     e.source,
		Target:     e.target,
		OccurredAt: e.occurredAt,
	})
}

// OutboxRecord is a domain event waiting to be relayed.
type OutboxRecord struct {
	ID          int64           `db:"id"`
	EventID     string          `db:"event_id"`
	EventType   string          `db:"event_type"`
	AggregateID string          `db:"aggregate_id"`
	Payload     json.RawMessage `db:"payload"`
	OccurredAt  time.Time       `db:"occurred_at"`
}

// NewOutboxRecord serializes an event. The ID is assigned by the store.
func NewOutboxRecord(event DomainEvent) (OutboxRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxRecord{}, err
	}
	return OutboxRecord{
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID().String(),
		Payload:     payload,
		OccurredAt:  event.OccurredAt(),
	}, nil
}
