package tracker

import (
	"encoding/json"
	"time"
)

// EventKind enumerates the tracked interaction categories.
type EventKind string

const (
	KindPageview   EventKind = "pageview"
	KindCourse     EventKind = "course"
	KindBooking    EventKind = "booking"
	KindAudio      EventKind = "audio"
	KindContact    EventKind = "contact"
	KindNavigation EventKind = "navigation"
	KindConversion EventKind = "conversion"
	KindError      EventKind = "error"
	KindPerf       EventKind = "perf"
)

// Event is one queued analytics record in wire shape.
type Event struct {
	Type string    `json:"type"` // "pageview" or "event"
	Data EventData `json:"data"`
}

// EventData carries the kind-specific payload.
type EventData struct {
	Page      string `json:"page"`
	Title     string `json:"title,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	EventType string `json:"eventType,omitempty"`
	EventName string `json:"eventName,omitempty"`
	Element   string `json:"element,omitempty"`
	Value     string `json:"value,omitempty"`

	Duration    int `json:"duration,omitempty"`
	ScrollDepth int `json:"scrollDepth,omitempty"`

	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// CoursePayload describes course interactions.
type CoursePayload struct {
	CourseID string `json:"courseId"`
	Module   string `json:"module,omitempty"`
	Action   string `json:"action"` // view, start, complete
}

// BookingPayload describes discovery-call booking steps.
type BookingPayload struct {
	Step        string `json:"step"` // started, completed
	SessionType string `json:"sessionType,omitempty"`
}

// AudioPayload describes meditation audio interactions.
type AudioPayload struct {
	TrackID  string `json:"trackId"`
	Action   string `json:"action"` // play, pause, complete
	Position int    `json:"position,omitempty"`
}

// ContactPayload describes contact form submissions.
type ContactPayload struct {
	FormID  string `json:"formId"`
	Subject string `json:"subject,omitempty"`
}

// NavigationPayload describes outbound links and downloads.
type NavigationPayload struct {
	Target string `json:"target"`
	Action string `json:"action"` // outbound, download
}

// ConversionPayload describes goal completions.
type ConversionPayload struct {
	Goal  string  `json:"goal"`
	Value float64 `json:"value,omitempty"`
}

// EventTracker builds typed event records from session context. Pure
// construction; queueing and consent gating live in AnalyticsTracker.
type EventTracker struct {
	currentPage func() string
	now         func() time.Time
}

func NewEventTracker(currentPage func() string) *EventTracker {
	return &EventTracker{
		currentPage: currentPage,
		now:         time.Now,
	}
}

// PageView builds a pageview record.
func (et *EventTracker) PageView(path, title, referrer string) Event {
	return Event{
		Type: "pageview",
		Data: EventData{
			Page:      path,
			Title:     title,
			Referrer:  referrer,
			Timestamp: et.now().UnixMilli(),
		},
	}
}

// Course builds a course interaction record.
func (et *EventTracker) Course(p CoursePayload) Event {
	return et.event(KindCourse, p.Action, "", marshalPayload(p))
}

// Booking builds a booking funnel record.
func (et *EventTracker) Booking(p BookingPayload) Event {
	return et.event(KindBooking, p.Step, "", marshalPayload(p))
}

// Audio builds a meditation audio record.
func (et *EventTracker) Audio(p AudioPayload) Event {
	return et.event(KindAudio, p.Action, "", marshalPayload(p))
}

// Contact builds a contact form record.
func (et *EventTracker) Contact(p ContactPayload) Event {
	return et.event(KindContact, "submit", p.FormID, marshalPayload(p))
}

// Navigation builds an outbound/download record.
func (et *EventTracker) Navigation(p NavigationPayload) Event {
	return et.event(KindNavigation, p.Action, p.Target, marshalPayload(p))
}

// Conversion builds a goal completion record.
func (et *EventTracker) Conversion(p ConversionPayload) Event {
	return et.event(KindConversion, p.Goal, "", marshalPayload(p))
}

// Custom builds an event of any enumerated kind from raw parts.
func (et *EventTracker) Custom(kind EventKind, name, element, value string, metadata json.RawMessage) Event {
	ev := et.event(kind, name, element, metadata)
	ev.Data.Value = value
	return ev
}

func (et *EventTracker) event(kind EventKind, name, element string, metadata json.RawMessage) Event {
	page := ""
	if et.currentPage != nil {
		page = et.currentPage()
	}
	return Event{
		Type: "event",
		Data: EventData{
			Page:      page,
			Timestamp: et.now().UnixMilli(),
			EventType: string(kind),
			EventName: name,
			Element:   element,
			Metadata:  metadata,
		},
	}
}

func marshalPayload(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
