package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Session is one browsing episode bounded by the inactivity timeout.
// Upserted by session_id so client retries of the same batch stay idempotent.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	SessionID string `bun:"session_id,pk" json:"session_id"`
	VisitorID string `bun:"visitor_id,notnull" json:"visitor_id"`

	StartedAt time.Time  `bun:"started_at,notnull" json:"started_at"`
	EndedAt   *time.Time `bun:"ended_at" json:"ended_at,omitempty"`

	PageviewCount    int  `bun:"pageview_count" json:"pageview_count"`
	InteractionCount int  `bun:"interaction_count" json:"interaction_count"`
	IsBounce         bool `bun:"is_bounce,default:true" json:"is_bounce"`
	EngagementScore  int  `bun:"engagement_score" json:"engagement_score"`

	Referrer    *string `bun:"referrer" json:"referrer,omitempty"`
	UtmSource   *string `bun:"utm_source" json:"utm_source,omitempty"`
	UtmMedium   *string `bun:"utm_medium" json:"utm_medium,omitempty"`
	UtmCampaign *string `bun:"utm_campaign" json:"utm_campaign,omitempty"`
	ExitPage    *string `bun:"exit_page" json:"exit_page,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:now()" json:"updated_at"`
}

var _ bun.BeforeInsertHook = (*Session)(nil)

func (s *Session) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	return nil
}

var _ bun.BeforeUpdateHook = (*Session)(nil)

func (s *Session) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	s.UpdatedAt = time.Now()
	return nil
}
