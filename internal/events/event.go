package events

import "time"

// Origin names the caller that produced a resolution.
type Origin string

const (
	OriginCLI   Origin = "cli"
	OriginBatch Origin = "batch"
	OriginHTTP  Origin = "http"
)

// Event is the envelope that flows through the event bus.
type Event struct {
	ID        string
	Type      EventType
	Origin    Origin
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// EventResolution carries a ResolutionEvent for every resolved description.
	EventResolution EventType = "resolution"
)
