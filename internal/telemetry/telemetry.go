// Package telemetry records pipeline events. Recording is advisory;
// a failing sink never fails the caller.
package telemetry

import (
	"context"
	"log"

	"promptforge/internal/store"
)

// Event names emitted by the pipeline and tool layer.
const (
	EventPromptProcessed  = "prompt_processed"
	EventPromptSaved      = "prompt_saved"
	EventCacheHit         = "cache_hit"
	EventCacheMiss        = "cache_miss"
	EventDegradedFallback = "degraded_fallback"
	EventValidationFailed = "validation_failed"
	EventToolCall         = "tool_call"
	EventPipelineError    = "pipeline_error"
)

type Sink interface {
	Track(ctx context.Context, event string, properties map[string]any)
	Error(ctx context.Context, event string, err error, properties map[string]any)
	Stats(ctx context.Context, days int) (map[string]int64, error)
}

// Recorder persists events through the store and mirrors them to the
// logger. With a nil store it degrades to log-only, which is what
// offline construction wires up.
type Recorder struct {
	store  store.Store
	logger *log.Logger
}

func NewRecorder(st store.Store, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{store: st, logger: logger}
}

func (r *Recorder) Track(ctx context.Context, event string, properties map[string]any) {
	if r == nil {
		return
	}
	r.logger.Printf("telemetry event=%s properties=%v", event, properties)
	if r.store == nil {
		return
	}
	if _, err := r.store.RecordEvent(ctx, event, properties); err != nil {
		r.logger.Printf("telemetry record failed event=%s error=%v", event, err)
	}
}

func (r *Recorder) Error(ctx context.Context, event string, err error, properties map[string]any) {
	if r == nil {
		return
	}
	props := make(map[string]any, len(properties)+1)
	for k, v := range properties {
		props[k] = v
	}
	if err != nil {
		props["error"] = err.Error()
	}
	r.logger.Printf("telemetry error event=%s error=%v properties=%v", event, err, properties)
	if r.store == nil {
		return
	}
	if _, rerr := r.store.RecordEvent(ctx, event, props); rerr != nil {
		r.logger.Printf("telemetry record failed event=%s error=%v", event, rerr)
	}
}

func (r *Recorder) Stats(ctx context.Context, days int) (map[string]int64, error) {
	if r == nil || r.store == nil {
		return map[string]int64{}, nil
	}
	return r.store.EventCounts(ctx, days)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Track(ctx context.Context, event string, properties map[string]any) {}

func (Noop) Error(ctx context.Context, event string, err error, properties map[string]any) {}

func (Noop) Stats(ctx context.Context, days int) (map[string]int64, error) {
	return map[string]int64{}, nil
}
