package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PageView is one rendered page instance. Insert-only; rows are touched
// again only by erasure or anonymization.
type PageView struct {
	bun.BaseModel `bun:"table:page_views,alias:pv"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	VisitorID string    `bun:"visitor_id,notnull" json:"visitor_id"`
	SessionID string    `bun:"session_id,notnull" json:"session_id"`

	Path     string  `bun:"path,notnull" json:"path"`
	Title    *string `bun:"title" json:"title,omitempty"`
	Referrer *string `bun:"referrer" json:"referrer,omitempty"`

	DurationSeconds *int `bun:"duration_seconds" json:"duration_seconds,omitempty"`
	ScrollDepth     *int `bun:"scroll_depth" json:"scroll_depth,omitempty"`

	Timestamp time.Time `bun:"timestamp,notnull" json:"timestamp"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
}

var _ bun.BeforeInsertHook = (*PageView)(nil)

func (p *PageView) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	p.CreatedAt = time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
