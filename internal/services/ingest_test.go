package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
)

func validPayload() *TrackPayload {
	ts := float64(1717243200000)
	return &TrackPayload{
		VisitorInfo: VisitorInfoPayload{
			VisitorID:  "visitor_1717243200000_abc123",
			SessionID:  "session_1717243200000_def456",
			UserAgent:  "Mozilla/5.0",
			Language:   "en-IE",
			Timezone:   "Europe/Dublin",
			ScreenSize: "1440x900",
			DeviceType: "desktop",
		},
		Events: []TrackedEvent{
			{Type: "pageview", Data: EventData{Page: "/courses", Timestamp: &ts}},
			{Type: "event", Data: EventData{Page: "/courses", Timestamp: &ts, EventType: "course", EventName: "view"}},
		},
	}
}

func TestTrackPayloadValidate_OK(t *testing.T) {
	assert.Empty(t, validPayload().Validate())
}

func TestTrackPayloadValidate_MissingVisitorFields(t *testing.T) {
	p := validPayload()
	p.VisitorInfo.VisitorID = ""
	p.VisitorInfo.SessionID = ""
	p.VisitorInfo.UserAgent = ""
	p.VisitorInfo.DeviceType = "smartwatch"

	details := p.Validate()
	assert.Contains(t, details, "visitorInfo.visitorId is required")
	assert.Contains(t, details, "visitorInfo.sessionId is required")
	assert.Contains(t, details, "visitorInfo.userAgent is required")
	assert.Contains(t, details, "visitorInfo.deviceType must be one of mobile, tablet, desktop")
}

func TestTrackPayloadValidate_EmptyBatch(t *testing.T) {
	p := validPayload()
	p.Events = nil
	assert.Contains(t, p.Validate(), "events must contain at least one event")
}

func TestTrackPayloadValidate_BatchSizeCap(t *testing.T) {
	p := validPayload()
	ts := float64(1717243200000)
	p.Events = nil
	for i := 0; i < MaxBatchEvents; i++ {
		p.Events = append(p.Events, TrackedEvent{Type: "pageview", Data: EventData{Page: "/", Timestamp: &ts}})
	}
	require.Empty(t, p.Validate(), "exactly the cap is accepted")

	p.Events = append(p.Events, TrackedEvent{Type: "pageview", Data: EventData{Page: "/", Timestamp: &ts}})
	assert.Contains(t, p.Validate(), fmt.Sprintf("events exceeds the maximum batch size of %d", MaxBatchEvents))
}

func TestTrackPayloadValidate_PerEventChecks(t *testing.T) {
	ts := float64(1717243200000)
	p := validPayload()
	p.Events = []TrackedEvent{
		{Type: "impression", Data: EventData{Page: "/", Timestamp: &ts}},
		{Type: "pageview", Data: EventData{Timestamp: &ts}},
		{Type: "pageview", Data: EventData{Page: "/"}},
		{Type: "event", Data: EventData{Page: "/", Timestamp: &ts, EventType: "bogus"}},
	}

	details := p.Validate()
	assert.Contains(t, details, "events[0].type must be pageview or event")
	assert.Contains(t, details, "events[1].data.page is required")
	assert.Contains(t, details, "events[2].data.timestamp must be a number")
	assert.Contains(t, details, "events[3].data.eventType is not a recognized kind")
}

func TestCountBatch(t *testing.T) {
	pageviews, interactions := countBatch(validPayload().Events)
	assert.Equal(t, 1, pageviews)
	assert.Equal(t, 1, interactions)
}

func TestStrPtr(t *testing.T) {
	assert.Nil(t, strPtr(""))
	require.NotNil(t, strPtr("x"))
	assert.Equal(t, "x", *strPtr("x"))
}

func TestIngest_PersistsVisitorSessionAndRows(t *testing.T) {
	db := newTestDB(t)
	svc := NewIngestService(db)
	ctx := context.Background()

	processed, err := svc.Ingest(ctx, validPayload())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	visitorID := validPayload().VisitorInfo.VisitorID
	assert.Equal(t, 1, countRowsFor(t, db, (*models.Visitor)(nil), visitorID))
	assert.Equal(t, 1, countRowsFor(t, db, (*models.Session)(nil), visitorID))
	assert.Equal(t, 1, countRowsFor(t, db, (*models.PageView)(nil), visitorID))
	assert.Equal(t, 1, countRowsFor(t, db, (*models.Event)(nil), visitorID))
}

func TestIngest_InsertFailureSurfaces(t *testing.T) {
	db := newTestDB(t)
	svc := NewIngestService(db)
	ctx := context.Background()

	_, err := db.Exec("DROP TABLE events")
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, validPayload())
	assert.Error(t, err)
}
