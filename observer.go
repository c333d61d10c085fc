package stagerun

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// ObserverFunc receives scheduler lifecycle events. Observers run on the
// control goroutine between stage passes and should return quickly; an
// observer error is logged, never propagated.
type ObserverFunc func(ctx context.Context, event cloudevents.Event) error

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Event type constants for scheduler lifecycle events, in reverse domain
// notation per the CloudEvents specification.
const (
	EventTypeApplicationStarted = "com.stagerun.application.started"
	EventTypeApplicationQuit    = "com.stagerun.application.quit"
	EventTypeApplicationStopped = "com.stagerun.application.stopped"

	EventTypeStageInitialized      = "com.stagerun.stage.initialized"
	EventTypeStageInserted         = "com.stagerun.stage.inserted"
	EventTypeStageParked           = "com.stagerun.stage.parked"
	EventTypeStageFrequencyChanged = "com.stagerun.stage.frequency.changed"
	EventTypeStageFreed            = "com.stagerun.stage.freed"
)

// eventSource identifies this scheduler as the CloudEvents source.
const eventSource = "stagerun/application"

// NewCloudEvent creates a properly formed CloudEvent for a scheduler
// lifecycle event.
func NewCloudEvent(eventType string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// generateEventID returns a UUIDv7 so event IDs sort by emission time,
// falling back to v4 if v7 generation fails.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// stageEventData is the JSON payload carried by stage lifecycle events.
type stageEventData struct {
	Stage     string `json:"stage"`
	Frequency uint32 `json:"frequency"`
}
