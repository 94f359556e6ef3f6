package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Consent type values accepted from the banner flow.
const (
	ConsentTypeAll       = "all"
	ConsentTypeAnalytics = "analytics"
	ConsentTypeNone      = "none"
)

// ConsentRecord is the legal basis for processing a visitor's data.
// One row per visitor_id; absence implies no consent. The stored IP is
// anonymized before it ever reaches this struct.
type ConsentRecord struct {
	bun.BaseModel `bun:"table:consent_records,alias:cr"`

	VisitorID    string    `bun:"visitor_id,pk" json:"visitor_id"`
	HasConsented bool      `bun:"has_consented,notnull" json:"has_consented"`
	ConsentType  string    `bun:"consent_type" json:"consent_type"`
	ConsentDate  time.Time `bun:"consent_date,notnull" json:"consent_date"`
	AnonymizedIP *string   `bun:"anonymized_ip" json:"anonymized_ip,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:now()" json:"updated_at"`
}

var _ bun.BeforeInsertHook = (*ConsentRecord)(nil)

func (c *ConsentRecord) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ConsentDate.IsZero() {
		c.ConsentDate = now
	}
	return nil
}

var _ bun.BeforeUpdateHook = (*ConsentRecord)(nil)

func (c *ConsentRecord) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	c.UpdatedAt = time.Now()
	return nil
}
