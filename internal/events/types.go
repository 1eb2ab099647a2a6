// Package events carries run lifecycle notifications from the training
// service to subscribers such as the websocket stream.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	RunQueued        EventType = "RUN_QUEUED"
	RunStarted       EventType = "RUN_STARTED"
	EpisodeCompleted EventType = "EPISODE_COMPLETED"
	RunCompleted     EventType = "RUN_COMPLETED"
	RunFailed        EventType = "RUN_FAILED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type in emission order of a run's lifecycle.
var AllTypes = []EventType{
	RunQueued,
	RunStarted,
	EpisodeCompleted,
	RunCompleted,
	RunFailed,
	ErrorOccurred,
}

// Event is a published notification. Data is the JSON object form of the
// typed payload.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}
