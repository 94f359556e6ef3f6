package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackPayloadFor(visitorID, sessionID, path string, ts time.Time) *TrackPayload {
	millis := float64(ts.UnixMilli())
	return &TrackPayload{
		VisitorInfo: VisitorInfoPayload{
			VisitorID:  visitorID,
			SessionID:  sessionID,
			UserAgent:  "Mozilla/5.0 (test)",
			DeviceType: "desktop",
		},
		Events: []TrackedEvent{
			{Type: "pageview", Data: EventData{Page: path, Timestamp: &millis}},
		},
	}
}

func TestPageStats_SingleIngestedPageview(t *testing.T) {
	db := newTestDB(t)
	ingest := NewIngestService(db)
	stats := NewStatsService(db)
	ctx := context.Background()
	now := time.Now()

	processed, err := ingest.Ingest(ctx, trackPayloadFor("visitor-1", "session-1", "/about", now))
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	rows, err := stats.PageStats(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "/about", rows[0].Path)
	assert.Equal(t, int64(1), rows[0].TotalViews)
	assert.Equal(t, int64(1), rows[0].UniqueVisitors)
}

func TestPageStats_CountsViewsAndUniquesPerPath(t *testing.T) {
	db := newTestDB(t)
	ingest := NewIngestService(db)
	stats := NewStatsService(db)
	ctx := context.Background()
	now := time.Now()

	// Same visitor views /about twice, a second visitor once.
	require.NoError(t, errOnly(ingest.Ingest(ctx, trackPayloadFor("visitor-1", "session-1", "/about", now))))
	require.NoError(t, errOnly(ingest.Ingest(ctx, trackPayloadFor("visitor-1", "session-1", "/about", now))))
	require.NoError(t, errOnly(ingest.Ingest(ctx, trackPayloadFor("visitor-2", "session-2", "/about", now))))

	rows, err := stats.PageStats(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].TotalViews)
	assert.Equal(t, int64(2), rows[0].UniqueVisitors)
}

func TestPageStats_WindowExcludesOutsideRows(t *testing.T) {
	db := newTestDB(t)
	ingest := NewIngestService(db)
	stats := NewStatsService(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, errOnly(ingest.Ingest(ctx, trackPayloadFor("visitor-1", "session-1", "/about", now))))

	rows, err := stats.PageStats(ctx, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func errOnly(_ int, err error) error { return err }
