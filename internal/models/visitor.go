package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Device type values reported by the tracker SDK.
const (
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
)

// Visitor is a de-duplicated browser/device identity.
// Exactly one row per visitor_id; upserted on every ingested batch. The
// device fingerprint that keyed the identity stays on the client; only the
// minted visitor_id ever crosses the wire.
type Visitor struct {
	bun.BaseModel `bun:"table:visitors,alias:v"`

	VisitorID string `bun:"visitor_id,pk" json:"visitor_id"`

	FirstSeen    time.Time `bun:"first_seen,notnull" json:"first_seen"`
	LastSeen     time.Time `bun:"last_seen,notnull" json:"last_seen"`
	IsReturning  bool      `bun:"is_returning" json:"is_returning"`
	SessionCount int       `bun:"session_count,default:1" json:"session_count"`

	// Direct identifiers - scrubbed by anonymization
	UserAgent  *string `bun:"user_agent" json:"user_agent,omitempty"`
	Language   *string `bun:"language" json:"language,omitempty"`
	Timezone   *string `bun:"timezone" json:"timezone,omitempty"`
	ScreenSize *string `bun:"screen_size" json:"screen_size,omitempty"`
	DeviceType string  `bun:"device_type" json:"device_type"`
	Country    *string `bun:"country" json:"country,omitempty"`
	Region     *string `bun:"region" json:"region,omitempty"`
	City       *string `bun:"city" json:"city,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:now()" json:"updated_at"`
}

var _ bun.BeforeInsertHook = (*Visitor)(nil)

func (v *Visitor) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.FirstSeen.IsZero() {
		v.FirstSeen = now
	}
	if v.LastSeen.IsZero() {
		v.LastSeen = now
	}
	return nil
}

var _ bun.BeforeUpdateHook = (*Visitor)(nil)

func (v *Visitor) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	v.UpdatedAt = time.Now()
	return nil
}
