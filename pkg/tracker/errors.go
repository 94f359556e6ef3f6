package tracker

import (
	"strings"
	"sync"
	"time"
)

// Severity buckets for captured errors.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ErrorSource names where a report came from.
type ErrorSource string

const (
	SourceException ErrorSource = "exception"
	SourceRejection ErrorSource = "rejection"
	SourceResource  ErrorSource = "resource"
	SourceNetwork   ErrorSource = "network"
)

// Performance thresholds.
const (
	LongTaskThreshold    = 50 * time.Millisecond
	LayoutShiftThreshold = 0.1
	HeapAbsoluteLimit    = 50 * 1024 * 1024 // bytes
	HeapRelativeLimit    = 0.8
	heapSampleInterval   = 30 * time.Second
)

// ErrorReport is a host-reported failure: an uncaught exception, an
// unhandled rejection, a failed resource load, or a non-2xx fetch.
type ErrorReport struct {
	Source   ErrorSource `json:"source"`
	Message  string      `json:"message"`
	Stack    string      `json:"stack,omitempty"`
	Page     string      `json:"page,omitempty"`
	Resource string      `json:"resource,omitempty"`
	Status   int         `json:"status,omitempty"`
}

// noiseFragments are known benign messages filtered before queueing.
// Browser extensions and the ResizeObserver loop warning dominate real
// capture streams without indicating site defects.
var noiseFragments = []string{
	"resizeobserver loop",
	"script error.",
	"extension://",
	"moz-extension",
	"safari-extension",
	"non-error promise rejection captured",
}

// ErrorTracker turns failure reports and performance observations into
// analytics events. Critical errors bypass batching entirely.
type ErrorTracker struct {
	tracker *AnalyticsTracker
	events  *EventTracker

	mu         sync.Mutex
	heapTicker *time.Ticker
	heapStop   chan struct{}
}

func NewErrorTracker(tracker *AnalyticsTracker, events *EventTracker) *ErrorTracker {
	return &ErrorTracker{
		tracker: tracker,
		events:  events,
	}
}

// CaptureError records a failure report, dropping known noise.
func (et *ErrorTracker) CaptureError(report ErrorReport) {
	defer swallowPanic()

	if IsNoise(report.Message) {
		return
	}

	severity := Classify(report.Message, report.Stack)
	ev := et.events.Custom(KindError, string(report.Source), report.Resource, report.Message,
		marshalPayload(map[string]interface{}{
			"severity": string(severity),
			"stack":    truncate(report.Stack, 2000),
			"status":   report.Status,
		}))

	et.tracker.Track(ev)

	// A critical error may be the last thing this page ever reports.
	if severity == SeverityCritical {
		et.tracker.Flush()
	}
}

// RecordLongTask records a main-thread stall above the threshold.
func (et *ErrorTracker) RecordLongTask(duration time.Duration) {
	defer swallowPanic()

	if duration <= LongTaskThreshold {
		return
	}
	et.tracker.Track(et.events.Custom(KindPerf, "long-task", "", duration.String(), nil))
}

// RecordLayoutShift records cumulative layout shift above the threshold.
func (et *ErrorTracker) RecordLayoutShift(score float64) {
	defer swallowPanic()

	if score <= LayoutShiftThreshold {
		return
	}
	et.tracker.Track(et.events.Custom(KindPerf, "layout-shift", "", "", marshalPayload(map[string]float64{"score": score})))
}

// HeapSample is a point-in-time memory reading from the host.
type HeapSample struct {
	UsedBytes  int64
	LimitBytes int64
}

// RecordHeapSample flags samples over the absolute or relative limit.
func (et *ErrorTracker) RecordHeapSample(sample HeapSample) {
	defer swallowPanic()

	over := sample.UsedBytes > HeapAbsoluteLimit
	if !over && sample.LimitBytes > 0 {
		over = float64(sample.UsedBytes) > HeapRelativeLimit*float64(sample.LimitBytes)
	}
	if !over {
		return
	}

	et.tracker.Track(et.events.Custom(KindPerf, "heap-pressure", "", "", marshalPayload(map[string]int64{
		"usedBytes":  sample.UsedBytes,
		"limitBytes": sample.LimitBytes,
	})))
}

// StartHeapSampling polls the provided reader every 30 seconds until
// StopHeapSampling is called.
func (et *ErrorTracker) StartHeapSampling(read func() HeapSample) {
	et.mu.Lock()
	defer et.mu.Unlock()

	if et.heapTicker != nil {
		return
	}
	et.heapTicker = time.NewTicker(heapSampleInterval)
	et.heapStop = make(chan struct{})

	go func(ticker *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				et.RecordHeapSample(read())
			}
		}
	}(et.heapTicker, et.heapStop)
}

// StopHeapSampling ends the sampling loop.
func (et *ErrorTracker) StopHeapSampling() {
	et.mu.Lock()
	defer et.mu.Unlock()

	if et.heapTicker == nil {
		return
	}
	et.heapTicker.Stop()
	close(et.heapStop)
	et.heapTicker = nil
}

// IsNoise reports whether a message matches the benign-error filter.
func IsNoise(message string) bool {
	lower := strings.ToLower(message)
	for _, fragment := range noiseFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Classify maps an error message/stack to a severity by keyword.
func Classify(message, stack string) Severity {
	text := strings.ToLower(message + " " + stack)

	switch {
	case strings.Contains(text, "security") || strings.Contains(text, "cors"):
		return SeverityCritical
	case strings.Contains(text, "typeerror") ||
		strings.Contains(text, "referenceerror") ||
		strings.Contains(text, "syntaxerror"):
		return SeverityHigh
	case strings.Contains(text, "network") ||
		strings.Contains(text, "timeout") ||
		strings.Contains(text, "fetch"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
