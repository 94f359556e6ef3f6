package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newErrorPipeline(t *testing.T) (*Client, *mockTransport) {
	t.Helper()
	transport := &mockTransport{}
	c := newTestClient(t, transport, 100)
	c.Privacy.GrantConsent("analytics")
	return c, transport
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		stack    string
		expected Severity
	}{
		{"cors is critical", "Blocked by CORS policy", "", SeverityCritical},
		{"security is critical", "SecurityError: operation insecure", "", SeverityCritical},
		{"type error is high", "TypeError: undefined is not a function", "", SeverityHigh},
		{"reference error is high", "ReferenceError: x is not defined", "", SeverityHigh},
		{"stack is inspected too", "something failed", "SyntaxError at line 4", SeverityHigh},
		{"network is medium", "Network request failed", "", SeverityMedium},
		{"timeout is medium", "request timeout exceeded", "", SeverityMedium},
		{"unknown is low", "something odd happened", "", SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.message, tt.stack))
		})
	}
}

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise("ResizeObserver loop limit exceeded"))
	assert.True(t, IsNoise("Script error."))
	assert.True(t, IsNoise("Error in chrome-extension://abc/content.js"))
	assert.True(t, IsNoise("moz-extension://xyz failed"))
	assert.False(t, IsNoise("TypeError: cannot read property"))
	assert.False(t, IsNoise(""))
}

func TestErrorTracker_NoiseNeverQueued(t *testing.T) {
	c, transport := newErrorPipeline(t)

	c.Errors.CaptureError(ErrorReport{
		Source:  SourceException,
		Message: "ResizeObserver loop completed with undelivered notifications",
	})

	assert.Zero(t, c.QueueLen())
	assert.Empty(t, transport.Batches())
}

func TestErrorTracker_CriticalErrorFlushesImmediately(t *testing.T) {
	c, transport := newErrorPipeline(t)

	c.PageView("/", "Home", "")
	c.Errors.CaptureError(ErrorReport{
		Source:  SourceException,
		Message: "SecurityError: blocked a frame with origin",
	})

	batches := transport.Batches()
	require.Len(t, batches, 1, "critical errors bypass batching")
	assert.Len(t, batches[0].Events, 2, "pending pageview rides along")
	assert.Zero(t, c.QueueLen())
}

func TestErrorTracker_NonCriticalErrorJustQueues(t *testing.T) {
	c, transport := newErrorPipeline(t)

	c.Errors.CaptureError(ErrorReport{
		Source:  SourceRejection,
		Message: "TypeError: x is undefined",
	})

	assert.Equal(t, 1, c.QueueLen())
	assert.Empty(t, transport.Batches())
}

func TestErrorTracker_LongTaskThreshold(t *testing.T) {
	c, _ := newErrorPipeline(t)

	c.Errors.RecordLongTask(50 * time.Millisecond)
	assert.Zero(t, c.QueueLen(), "at the threshold is not over it")

	c.Errors.RecordLongTask(51 * time.Millisecond)
	assert.Equal(t, 1, c.QueueLen())
}

func TestErrorTracker_LayoutShiftThreshold(t *testing.T) {
	c, _ := newErrorPipeline(t)

	c.Errors.RecordLayoutShift(0.1)
	assert.Zero(t, c.QueueLen())

	c.Errors.RecordLayoutShift(0.25)
	assert.Equal(t, 1, c.QueueLen())
}

func TestErrorTracker_HeapSampleLimits(t *testing.T) {
	c, _ := newErrorPipeline(t)

	// Under both limits.
	c.Errors.RecordHeapSample(HeapSample{UsedBytes: 10 << 20, LimitBytes: 100 << 20})
	assert.Zero(t, c.QueueLen())

	// Over the absolute limit.
	c.Errors.RecordHeapSample(HeapSample{UsedBytes: 51 << 20, LimitBytes: 1 << 30})
	assert.Equal(t, 1, c.QueueLen())

	// Over the relative limit while under the absolute one.
	c.Errors.RecordHeapSample(HeapSample{UsedBytes: 41 << 20, LimitBytes: 50 << 20})
	assert.Equal(t, 2, c.QueueLen())
}

func TestErrorTracker_HeapSamplingStartStop(t *testing.T) {
	c, _ := newErrorPipeline(t)

	c.Errors.StartHeapSampling(func() HeapSample { return HeapSample{} })
	// Starting twice is a no-op, stopping twice is safe.
	c.Errors.StartHeapSampling(func() HeapSample { return HeapSample{} })
	c.Errors.StopHeapSampling()
	c.Errors.StopHeapSampling()
}
