package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a scenario collection change.
type EventType string

const (
	EventScenarioSaved   EventType = "scenario.saved"
	EventScenarioDeleted EventType = "scenario.deleted"
)

// ScenarioEvent announces that a saved scenario was added or removed.
// It carries only identity; consumers re-read the store for details.
type ScenarioEvent struct {
	Type       EventType `json:"type"`
	ScenarioID string    `json:"scenarioId"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewScenarioEvent creates an event stamped with the current time
func NewScenarioEvent(eventType EventType, id, name string) *ScenarioEvent {
	return &ScenarioEvent{
		Type:       eventType,
		ScenarioID: id,
		Name:       name,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ScenarioEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ScenarioEventFromJSON parses an event and rejects unknown types.
func ScenarioEventFromJSON(data []byte) (*ScenarioEvent, error) {
	var e ScenarioEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventScenarioSaved, EventScenarioDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.ScenarioID == "" {
		return nil, fmt.Errorf("event without scenario id")
	}
	return &e, nil
}
