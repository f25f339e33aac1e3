package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	EventRecordCreated EventType = "record.created"
	EventRecordUpdated EventType = "record.updated"
	EventRecordDeleted EventType = "record.deleted"
)

// LedgerEvent is a lightweight change notification. Consumers fetch the
// record by id when they need its fields.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(typ EventType, id, groupID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      typ,
		ID:        id,
		GroupID:   groupID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects events a consumer cannot act on.
func (m *LedgerEvent) Validate() error {
	switch m.Type {
	case EventRecordCreated, EventRecordUpdated, EventRecordDeleted:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	if m.ID == "" {
		return errors.New("event without record id")
	}
	return nil
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
