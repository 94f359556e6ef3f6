package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DailyPageStat is a rollup row maintained by the RabbitMQ consumer.
// Unique on (date, path); counters only ever increase.
type DailyPageStat struct {
	bun.BaseModel `bun:"table:daily_page_stats,alias:dps"`

	ID      int64     `bun:"id,pk,autoincrement" json:"id"`
	Date    time.Time `bun:"date,notnull,type:date" json:"date"`
	Path    string    `bun:"path,notnull" json:"path"`
	Views   int64     `bun:"views" json:"views"`
	Uniques int64     `bun:"uniques" json:"uniques"`
}

// DailyPageVisitor marks that a visitor was seen on a path on a given day.
// The rollup consumer inserts with DO NOTHING and bumps the uniques counter
// only when the row is new.
type DailyPageVisitor struct {
	bun.BaseModel `bun:"table:daily_page_visitors,alias:dpv"`

	Date      time.Time `bun:"date,pk,type:date" json:"date"`
	Path      string    `bun:"path,pk" json:"path"`
	VisitorID string    `bun:"visitor_id,pk" json:"visitor_id"`
}
