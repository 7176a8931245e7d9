package events

import (
	"fmt"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
)

// ResolutionEvent is published once per resolved match description,
// whatever its status.
type ResolutionEvent struct {
	Result resolver.Result `json:"result"`
	Row    int             `json:"row,omitempty"` // 1-based input row for batch runs
	Batch  string          `json:"batch,omitempty"`
}

// NewResolution wraps a result in an Event envelope.
func NewResolution(origin Origin, ev ResolutionEvent) Event {
	now := time.Now().UTC()
	return Event{
		ID:        fmt.Sprintf("%s-%d", origin, now.UnixNano()),
		Type:      EventResolution,
		Origin:    origin,
		Timestamp: now,
		Payload:   ev,
	}
}

// Resolution extracts the ResolutionEvent payload.
func Resolution(e Event) (ResolutionEvent, bool) {
	ev, ok := e.Payload.(ResolutionEvent)
	return ev, ok
}
