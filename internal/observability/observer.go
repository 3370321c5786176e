// Package observability provides span, metric and error reporting for
// the pipeline. Spans are structured log lines with correlation IDs,
// not a tracing backend.
package observability

import (
	"log"
	"time"

	"github.com/google/uuid"
)

type Observer interface {
	StartSpan(name string) *Span
	AddSpanLog(span *Span, message string, fields map[string]any)
	FinishSpan(span *Span, err error)
	RecordMetric(name string, value float64, tags map[string]string)
	TrackError(op string, err error)
}

// Span is one timed unit of pipeline work.
type Span struct {
	ID      string
	Name    string
	Started time.Time
}

// NewRequestID returns a correlation ID for one pipeline invocation.
func NewRequestID() string {
	return uuid.NewString()
}

// LogObserver writes spans and metrics to a standard logger in
// key=value form.
type LogObserver struct {
	logger *log.Logger
	now    func() time.Time
}

func NewLogObserver(logger *log.Logger) *LogObserver {
	if logger == nil {
		logger = log.Default()
	}
	return &LogObserver{logger: logger, now: time.Now}
}

func (o *LogObserver) StartSpan(name string) *Span {
	if o == nil {
		return nil
	}
	span := &Span{ID: uuid.NewString(), Name: name, Started: o.now()}
	o.logger.Printf("span start id=%s name=%s", span.ID, span.Name)
	return span
}

func (o *LogObserver) AddSpanLog(span *Span, message string, fields map[string]any) {
	if o == nil || span == nil {
		return
	}
	o.logger.Printf("span log id=%s name=%s message=%q fields=%v", span.ID, span.Name, message, fields)
}

func (o *LogObserver) FinishSpan(span *Span, err error) {
	if o == nil || span == nil {
		return
	}
	elapsed := o.now().Sub(span.Started)
	if err != nil {
		o.logger.Printf("span finish id=%s name=%s status=error elapsed_ms=%d error=%v", span.ID, span.Name, elapsed.Milliseconds(), err)
		return
	}
	o.logger.Printf("span finish id=%s name=%s status=ok elapsed_ms=%d", span.ID, span.Name, elapsed.Milliseconds())
}

func (o *LogObserver) RecordMetric(name string, value float64, tags map[string]string) {
	if o == nil {
		return
	}
	o.logger.Printf("metric name=%s value=%.4f tags=%v", name, value, tags)
}

func (o *LogObserver) TrackError(op string, err error) {
	if o == nil || err == nil {
		return
	}
	o.logger.Printf("error op=%s error=%v", op, err)
}

// Noop satisfies Observer while discarding everything.
type Noop struct{}

func (Noop) StartSpan(name string) *Span                                    { return &Span{Name: name} }
func (Noop) AddSpanLog(span *Span, message string, fields map[string]any)   {}
func (Noop) FinishSpan(span *Span, err error)                               {}
func (Noop) RecordMetric(name string, value float64, tags map[string]string) {}
func (Noop) TrackError(op string, err error)                                {}

// CacheMetrics bridges cache hit/miss callbacks onto an Observer so
// cache traffic shows up in the same metric stream.
type CacheMetrics struct {
	Observer Observer
}

func (c CacheMetrics) CacheHit(key string) {
	if c.Observer == nil {
		return
	}
	c.Observer.RecordMetric("cache_hit", 1, map[string]string{"key": key})
}

func (c CacheMetrics) CacheMiss(key string) {
	if c.Observer == nil {
		return
	}
	c.Observer.RecordMetric("cache_miss", 1, map[string]string{"key": key})
}
