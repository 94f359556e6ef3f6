package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
)

// MaxBatchEvents caps a single track payload.
const MaxBatchEvents = 50

// TrackPayload is the POST /api/analytics/track body.
type TrackPayload struct {
	VisitorInfo VisitorInfoPayload `json:"visitorInfo"`
	Events      []TrackedEvent     `json:"events"`
}

type VisitorInfoPayload struct {
	VisitorID   string `json:"visitorId"`
	SessionID   string `json:"sessionId"`
	UserAgent   string `json:"userAgent"`
	Language    string `json:"language"`
	Timezone    string `json:"timezone"`
	ScreenSize  string `json:"screenSize"`
	DeviceType  string `json:"deviceType"`
	IsReturning bool   `json:"isReturning"`
	Referrer    string `json:"referrer,omitempty"`
	UtmSource   string `json:"utmSource,omitempty"`
	UtmMedium   string `json:"utmMedium,omitempty"`
	UtmCampaign string `json:"utmCampaign,omitempty"`
}

// TrackedEvent wraps one queued client event. Type is "pageview" or "event".
type TrackedEvent struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	Page     string  `json:"page"`
	Title    *string `json:"title,omitempty"`
	Referrer *string `json:"referrer,omitempty"`
	// Milliseconds since epoch. Pointer so a missing value is detectable.
	Timestamp *float64 `json:"timestamp"`

	EventType string  `json:"eventType,omitempty"`
	EventName string  `json:"eventName,omitempty"`
	Element   *string `json:"element,omitempty"`
	Value     *string `json:"value,omitempty"`

	DurationSeconds *int `json:"duration,omitempty"`
	ScrollDepth     *int `json:"scrollDepth,omitempty"`

	Metadata json.RawMessage `json:"metadata,omitempty"`
}

var validDeviceTypes = map[string]bool{
	models.DeviceTypeMobile:  true,
	models.DeviceTypeTablet:  true,
	models.DeviceTypeDesktop: true,
}

// Validate returns a field-level error list. An empty list means the
// payload is acceptable; nothing is persisted otherwise.
func (p *TrackPayload) Validate() []string {
	var details []string

	if p.VisitorInfo.VisitorID == "" {
		details = append(details, "visitorInfo.visitorId is required")
	}
	if p.VisitorInfo.SessionID == "" {
		details = append(details, "visitorInfo.sessionId is required")
	}
	if p.VisitorInfo.UserAgent == "" {
		details = append(details, "visitorInfo.userAgent is required")
	}
	if !validDeviceTypes[p.VisitorInfo.DeviceType] {
		details = append(details, "visitorInfo.deviceType must be one of mobile, tablet, desktop")
	}

	if len(p.Events) == 0 {
		details = append(details, "events must contain at least one event")
	}
	if len(p.Events) > MaxBatchEvents {
		details = append(details, fmt.Sprintf("events exceeds the maximum batch size of %d", MaxBatchEvents))
	}

	for i, ev := range p.Events {
		if ev.Type != "pageview" && ev.Type != "event" {
			details = append(details, fmt.Sprintf("events[%d].type must be pageview or event", i))
		}
		if ev.Data.Page == "" {
			details = append(details, fmt.Sprintf("events[%d].data.page is required", i))
		}
		if ev.Data.Timestamp == nil {
			details = append(details, fmt.Sprintf("events[%d].data.timestamp must be a number", i))
		}
		if ev.Type == "event" && !models.IsValidEventKind(ev.Data.EventType) {
			details = append(details, fmt.Sprintf("events[%d].data.eventType is not a recognized kind", i))
		}
	}

	return details
}

// IngestService persists validated track payloads.
type IngestService struct {
	db *bun.DB
}

func NewIngestService(db *bun.DB) *IngestService {
	return &IngestService{db: db}
}

// Ingest upserts the visitor and session, then inserts pageview and event
// rows concurrently. Upserts are idempotent by natural key, so a retried
// batch is safe for visitor/session state; duplicate pageview/event rows
// on client retry are an accepted limitation.
func (s *IngestService) Ingest(ctx context.Context, p *TrackPayload) (int, error) {
	if err := s.upsertVisitor(ctx, &p.VisitorInfo); err != nil {
		return 0, fmt.Errorf("upsert visitor: %w", err)
	}

	pageviews, interactions := countBatch(p.Events)
	if err := s.upsertSession(ctx, &p.VisitorInfo, pageviews, interactions); err != nil {
		return 0, fmt.Errorf("upsert session: %w", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(p.Events))

	for _, ev := range p.Events {
		wg.Add(1)
		go func(ev TrackedEvent) {
			defer wg.Done()
			if err := s.insertRow(ctx, &p.VisitorInfo, ev); err != nil {
				errs <- err
			}
		}(ev)
	}

	wg.Wait()
	close(errs)

	// Return the first failure; log the rest so sibling errors are not
	// silently discarded.
	var firstErr error
	for err := range errs {
		if firstErr == nil {
			firstErr = err
			continue
		}
		log.Printf("Additional insert failure in batch for visitor %s: %v", p.VisitorInfo.VisitorID, err)
	}
	if firstErr != nil {
		return 0, firstErr
	}

	return len(p.Events), nil
}

func countBatch(events []TrackedEvent) (pageviews, interactions int) {
	for _, ev := range events {
		if ev.Type == "pageview" {
			pageviews++
		} else {
			interactions++
		}
	}
	return pageviews, interactions
}

func (s *IngestService) upsertVisitor(ctx context.Context, info *VisitorInfoPayload) error {
	now := time.Now()
	visitor := &models.Visitor{
		VisitorID:   info.VisitorID,
		FirstSeen:   now,
		LastSeen:    now,
		IsReturning: info.IsReturning,
		UserAgent:   strPtr(info.UserAgent),
		Language:    strPtr(info.Language),
		Timezone:    strPtr(info.Timezone),
		ScreenSize:  strPtr(info.ScreenSize),
		DeviceType:  info.DeviceType,
	}

	_, err := s.db.NewInsert().
		Model(visitor).
		On("CONFLICT (visitor_id) DO UPDATE").
		Set("last_seen = EXCLUDED.last_seen").
		Set("is_returning = EXCLUDED.is_returning").
		Set("user_agent = EXCLUDED.user_agent").
		Set("language = EXCLUDED.language").
		Set("timezone = EXCLUDED.timezone").
		Set("screen_size = EXCLUDED.screen_size").
		Set("device_type = EXCLUDED.device_type").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *IngestService) upsertSession(ctx context.Context, info *VisitorInfoPayload, pageviews, interactions int) error {
	// A fresh session id for an existing visitor means a new episode:
	// bump the visitor's session counter exactly once.
	exists, err := s.db.NewSelect().
		Model((*models.Session)(nil)).
		Where("session_id = ?", info.SessionID).
		Exists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		_, err = s.db.NewUpdate().
			Model((*models.Visitor)(nil)).
			Set("session_count = session_count + 1").
			Set("updated_at = ?", time.Now()).
			Where("visitor_id = ?", info.VisitorID).
			Where("is_returning = true").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	session := &models.Session{
		SessionID:        info.SessionID,
		VisitorID:        info.VisitorID,
		StartedAt:        time.Now(),
		PageviewCount:    pageviews,
		InteractionCount: interactions,
		IsBounce:         pageviews == 1 && interactions == 0,
		Referrer:         strPtr(info.Referrer),
		UtmSource:        strPtr(info.UtmSource),
		UtmMedium:        strPtr(info.UtmMedium),
		UtmCampaign:      strPtr(info.UtmCampaign),
	}

	_, err = s.db.NewInsert().
		Model(session).
		On("CONFLICT (session_id) DO UPDATE").
		Set("pageview_count = s.pageview_count + EXCLUDED.pageview_count").
		Set("interaction_count = s.interaction_count + EXCLUDED.interaction_count").
		Set("is_bounce = (s.pageview_count + EXCLUDED.pageview_count = 1 AND s.interaction_count + EXCLUDED.interaction_count = 0)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *IngestService) insertRow(ctx context.Context, info *VisitorInfoPayload, ev TrackedEvent) error {
	ts := time.UnixMilli(int64(*ev.Data.Timestamp))

	if ev.Type == "pageview" {
		pv := &models.PageView{
			VisitorID:       info.VisitorID,
			SessionID:       info.SessionID,
			Path:            ev.Data.Page,
			Title:           ev.Data.Title,
			Referrer:        ev.Data.Referrer,
			DurationSeconds: ev.Data.DurationSeconds,
			ScrollDepth:     ev.Data.ScrollDepth,
			Timestamp:       ts,
		}
		_, err := s.db.NewInsert().Model(pv).Exec(ctx)
		return err
	}

	event := &models.Event{
		VisitorID: info.VisitorID,
		SessionID: info.SessionID,
		EventType: ev.Data.EventType,
		EventName: ev.Data.EventName,
		Page:      ev.Data.Page,
		Element:   ev.Data.Element,
		Value:     ev.Data.Value,
		Metadata:  ev.Data.Metadata,
		Timestamp: ts,
	}
	_, err := s.db.NewInsert().Model(event).Exec(ctx)
	return err
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
