package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
)

var testSchema = []string{
	`CREATE TABLE visitors (
		visitor_id TEXT PRIMARY KEY,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		is_returning BOOLEAN NOT NULL DEFAULT false,
		session_count INTEGER NOT NULL DEFAULT 1,
		user_agent TEXT,
		language TEXT,
		timezone TEXT,
		screen_size TEXT,
		device_type TEXT,
		country TEXT,
		region TEXT,
		city TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE sessions (
		session_id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		pageview_count INTEGER NOT NULL DEFAULT 0,
		interaction_count INTEGER NOT NULL DEFAULT 0,
		is_bounce BOOLEAN NOT NULL DEFAULT true,
		engagement_score INTEGER NOT NULL DEFAULT 0,
		referrer TEXT,
		utm_source TEXT,
		utm_medium TEXT,
		utm_campaign TEXT,
		exit_page TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE page_views (
		id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT,
		referrer TEXT,
		duration_seconds INTEGER,
		scroll_depth INTEGER,
		timestamp TIMESTAMP NOT NULL,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_name TEXT,
		page TEXT NOT NULL,
		element TEXT,
		value TEXT,
		metadata TEXT,
		timestamp TIMESTAMP NOT NULL,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE consent_records (
		visitor_id TEXT PRIMARY KEY,
		has_consented BOOLEAN NOT NULL,
		consent_type TEXT,
		consent_date TIMESTAMP NOT NULL,
		anonymized_ip TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
}

// newTestDB opens a private in-memory SQLite database with the analytics
// schema. One connection keeps the database alive for the test's lifetime.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	for _, ddl := range testSchema {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}
	return db
}

// seedVisitorData inserts one visitor with a consent record, one session,
// two page views and one event.
func seedVisitorData(t *testing.T, db *bun.DB, visitorID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	ua := "Mozilla/5.0 (test)"
	lang := "en-IE"
	visitor := &models.Visitor{
		VisitorID:  visitorID,
		FirstSeen:  now,
		LastSeen:   now,
		UserAgent:  &ua,
		Language:   &lang,
		DeviceType: models.DeviceTypeDesktop,
	}
	_, err := db.NewInsert().Model(visitor).Exec(ctx)
	require.NoError(t, err)

	ip := "203.0.113.0"
	consent := &models.ConsentRecord{
		VisitorID:    visitorID,
		HasConsented: true,
		ConsentType:  models.ConsentTypeAnalytics,
		ConsentDate:  now,
		AnonymizedIP: &ip,
	}
	_, err = db.NewInsert().Model(consent).Exec(ctx)
	require.NoError(t, err)

	session := &models.Session{
		SessionID:     visitorID + "-s1",
		VisitorID:     visitorID,
		StartedAt:     now,
		PageviewCount: 2,
	}
	_, err = db.NewInsert().Model(session).Exec(ctx)
	require.NoError(t, err)

	for _, path := range []string{"/", "/about"} {
		pv := &models.PageView{
			VisitorID: visitorID,
			SessionID: session.SessionID,
			Path:      path,
			Timestamp: now,
		}
		_, err = db.NewInsert().Model(pv).Exec(ctx)
		require.NoError(t, err)
	}

	event := &models.Event{
		VisitorID: visitorID,
		SessionID: session.SessionID,
		EventType: string(models.EventKindCourse),
		EventName: "view",
		Page:      "/about",
		Timestamp: now,
	}
	_, err = db.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)
}

func countRowsFor(t *testing.T, db *bun.DB, model interface{}, visitorID string) int {
	t.Helper()
	n, err := db.NewSelect().
		Model(model).
		Where("visitor_id = ?", visitorID).
		Count(context.Background())
	require.NoError(t, err)
	return n
}
