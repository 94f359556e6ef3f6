package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EventKind enumerates the tracked interaction categories. The tracker SDK
// sends a kind-specific payload under metadata; the ingestion boundary only
// accepts kinds listed here.
type EventKind string

const (
	EventKindPageview   EventKind = "pageview"
	EventKindCourse     EventKind = "course"
	EventKindBooking    EventKind = "booking"
	EventKindAudio      EventKind = "audio"
	EventKindContact    EventKind = "contact"
	EventKindNavigation EventKind = "navigation"
	EventKindConversion EventKind = "conversion"
	EventKindError      EventKind = "error"
	EventKindPerf       EventKind = "perf"
)

var validEventKinds = map[EventKind]bool{
	EventKindPageview:   true,
	EventKindCourse:     true,
	EventKindBooking:    true,
	EventKindAudio:      true,
	EventKindContact:    true,
	EventKindNavigation: true,
	EventKindConversion: true,
	EventKindError:      true,
	EventKindPerf:       true,
}

// IsValidEventKind reports whether k is one of the enumerated kinds.
func IsValidEventKind(k string) bool {
	return validEventKinds[EventKind(k)]
}

// Event is a discrete interaction/error/perf signal. Insert-only.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	VisitorID string    `bun:"visitor_id,notnull" json:"visitor_id"`
	SessionID string    `bun:"session_id,notnull" json:"session_id"`

	EventType string  `bun:"event_type,notnull" json:"event_type"`
	EventName string  `bun:"event_name" json:"event_name,omitempty"`
	Page      string  `bun:"page,notnull" json:"page"`
	Element   *string `bun:"element" json:"element,omitempty"`
	Value     *string `bun:"value" json:"value,omitempty"`

	Metadata json.RawMessage `bun:"metadata,type:jsonb" json:"metadata,omitempty"`

	Timestamp time.Time `bun:"timestamp,notnull" json:"timestamp"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
}

var _ bun.BeforeInsertHook = (*Event)(nil)

func (e *Event) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	e.CreatedAt = time.Now()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
