package services

import (
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// Progress event types, emitted once per stage transition in stage order.
type ProgressEventType string

const (
	EventStageStart    ProgressEventType = "stage-start"
	EventStageComplete ProgressEventType = "stage-complete"
	EventStageError    ProgressEventType = "stage-error"
	EventComplete      ProgressEventType = "complete"
)

// ProgressEvent is one typed discovery progress notification.
type ProgressEvent struct {
	Type    ProgressEventType        `json:"type"`
	Stage   string                   `json:"stage,omitempty"`
	Name    string                   `json:"name,omitempty"`
	Data    any                      `json:"data,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Status  string                   `json:"status,omitempty"`
	Summary *models.DiscoverySummary `json:"summary,omitempty"`
}

// ProgressSink receives discovery progress events. A sink must not assume it
// is called from any particular goroutine. A panicking sink is a caller bug
// and never fails the discovery run.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

// ProgressSinkFunc adapts a function to the ProgressSink interface.
type ProgressSinkFunc func(event ProgressEvent)

func (f ProgressSinkFunc) Publish(event ProgressEvent) { f(event) }

// emitProgress publishes one event, swallowing sink panics.
func emitProgress(sink ProgressSink, logger *zap.Logger, event ProgressEvent) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("progress sink panicked",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	sink.Publish(event)
}
