package observability

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"promptforge/internal/cache"
)

var (
	_ Observer          = (*LogObserver)(nil)
	_ Observer          = Noop{}
	_ cache.MetricsSink = CacheMetrics{}
)

func TestLogObserverSpanLifecycle(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(log.New(&buf, "", 0))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return base }

	span := o.StartSpan("process_prompt")
	if span == nil || span.ID == "" {
		t.Fatal("expected span with id")
	}
	o.AddSpanLog(span, "cache checked", map[string]any{"hit": false})

	o.now = func() time.Time { return base.Add(250 * time.Millisecond) }
	o.FinishSpan(span, nil)

	out := buf.String()
	for _, want := range []string{
		"span start id=" + span.ID,
		"name=process_prompt",
		`message="cache checked"`,
		"status=ok elapsed_ms=250",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestLogObserverFinishSpanWithError(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(log.New(&buf, "", 0))

	span := o.StartSpan("process_prompt")
	o.FinishSpan(span, errors.New("backend down"))

	out := buf.String()
	if !strings.Contains(out, "status=error") || !strings.Contains(out, "backend down") {
		t.Fatalf("expected error finish line, got:\n%s", out)
	}
}

func TestLogObserverMetricAndError(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(log.New(&buf, "", 0))

	o.RecordMetric("quality_score", 0.8125, map[string]string{"domain": "sql"})
	o.TrackError("pipeline.process", errors.New("boom"))
	o.TrackError("pipeline.process", nil)

	out := buf.String()
	if !strings.Contains(out, "metric name=quality_score value=0.8125") {
		t.Fatalf("expected metric line, got:\n%s", out)
	}
	if !strings.Contains(out, "error op=pipeline.process error=boom") {
		t.Fatalf("expected error line, got:\n%s", out)
	}
	if strings.Count(out, "error op=") != 1 {
		t.Fatalf("expected nil errors to be dropped, got:\n%s", out)
	}
}

func TestCacheMetricsBridgesToObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(log.New(&buf, "", 0))
	sink := CacheMetrics{Observer: o}

	sink.CacheHit("prompt_ab12cd34")
	sink.CacheMiss("prompt_ab12cd34")

	out := buf.String()
	if !strings.Contains(out, "metric name=cache_hit") || !strings.Contains(out, "metric name=cache_miss") {
		t.Fatalf("expected cache metrics, got:\n%s", out)
	}
}

func TestThrottleObserverWarnsOnceAt80Percent(t *testing.T) {
	var buf bytes.Buffer
	o := NewThrottleObserver(log.New(&buf, "", 0))

	o.RecordAllow("client-a", 96, 120)
	o.RecordAllow("client-a", 97, 120)

	out := buf.String()
	if strings.Count(out, "throttle warning client_id=client-a") != 1 {
		t.Fatalf("expected exactly one warning, got:\n%s", out)
	}
}

func TestThrottleObserverAlertsEveryTenthDeny(t *testing.T) {
	var buf bytes.Buffer
	o := NewThrottleObserver(log.New(&buf, "", 0))

	for i := 0; i < 20; i++ {
		o.RecordDeny("client-b", "rate_limited")
	}

	out := buf.String()
	if strings.Count(out, "throttle alert client_id=client-b") != 2 {
		t.Fatalf("expected alerts at 10 and 20 denials, got:\n%s", out)
	}
	if strings.Count(out, "throttle deny client_id=client-b") != 20 {
		t.Fatalf("expected 20 deny lines, got:\n%s", out)
	}
}
