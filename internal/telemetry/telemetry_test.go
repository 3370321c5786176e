package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"promptforge/internal/store"
)

var (
	_ Sink = (*Recorder)(nil)
	_ Sink = Noop{}
)

func TestRecorderTracksThroughStore(t *testing.T) {
	st := store.NewMemory()
	var buf bytes.Buffer
	rec := NewRecorder(st, log.New(&buf, "", 0))
	ctx := context.Background()

	rec.Track(ctx, EventPromptProcessed, map[string]any{"domain": "sql"})
	rec.Track(ctx, EventCacheHit, nil)

	counts, err := rec.Stats(ctx, 30)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if counts[EventPromptProcessed] != 1 || counts[EventCacheHit] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if !strings.Contains(buf.String(), "event=prompt_processed") {
		t.Fatalf("expected event log line, got %q", buf.String())
	}
}

func TestRecorderErrorRecordsErrorProperty(t *testing.T) {
	st := store.NewMemory()
	var buf bytes.Buffer
	rec := NewRecorder(st, log.New(&buf, "", 0))
	ctx := context.Background()

	rec.Error(ctx, EventPipelineError, errors.New("backend down"), map[string]any{"domain": "sql"})

	counts, err := rec.Stats(ctx, 30)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if counts[EventPipelineError] != 1 {
		t.Fatalf("expected error event recorded, got %v", counts)
	}
	if !strings.Contains(buf.String(), "backend down") {
		t.Fatalf("expected error text in log, got %q", buf.String())
	}
}

func TestRecorderWithoutStoreIsLogOnly(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(nil, log.New(&buf, "", 0))
	ctx := context.Background()

	rec.Track(ctx, EventCacheMiss, nil)

	counts, err := rec.Stats(ctx, 30)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected empty stats without store, got %v", counts)
	}
	if !strings.Contains(buf.String(), "event=cache_miss") {
		t.Fatalf("expected log line, got %q", buf.String())
	}
}

func TestNoopSinkIsSilent(t *testing.T) {
	var sink Sink = Noop{}
	sink.Track(context.Background(), EventPromptSaved, nil)
	sink.Error(context.Background(), EventPipelineError, errors.New("x"), nil)
	counts, err := sink.Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected empty stats, got %v", counts)
	}
}
