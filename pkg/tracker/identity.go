package tracker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// VisitorRecord is the persisted identity state.
type VisitorRecord struct {
	VisitorID     string    `json:"visitorId"`
	Fingerprint   string    `json:"fingerprint"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
	SessionCount  int       `json:"sessionCount"`
	LastSessionID string    `json:"lastSessionId"`
}

// VisitorInfo is the identity snapshot attached to every outgoing batch.
type VisitorInfo struct {
	VisitorID    string `json:"visitorId"`
	SessionID    string `json:"sessionId"`
	IsNewVisitor bool   `json:"-"`
	IsReturning  bool   `json:"isReturning"`
	SessionCount int    `json:"-"`
	UserAgent    string `json:"userAgent"`
	Language     string `json:"language"`
	Timezone     string `json:"timezone"`
	ScreenSize   string `json:"screenSize"`
	DeviceType   string `json:"deviceType"`
	Referrer     string `json:"referrer,omitempty"`
	UtmSource    string `json:"utmSource,omitempty"`
	UtmMedium    string `json:"utmMedium,omitempty"`
	UtmCampaign  string `json:"utmCampaign,omitempty"`
}

// VisitorIdentity owns the persistent visitor id and the returning/new
// classification, keyed by fingerprint match.
type VisitorIdentity struct {
	mu       sync.Mutex
	local    Storage
	session  Storage
	provider DeviceSignalProvider
	sessions *SessionManager
	now      func() time.Time
}

func NewVisitorIdentity(local, session Storage, provider DeviceSignalProvider, sessions *SessionManager) *VisitorIdentity {
	return &VisitorIdentity{
		local:    local,
		session:  session,
		provider: provider,
		sessions: sessions,
		now:      time.Now,
	}
}

// GetVisitorInfo resolves the visitor identity for the current device.
//
// A stored record whose fingerprint matches the freshly computed one keeps
// its visitor id. A mismatch silently replaces the record with a brand new
// visitor: no collision handling is attempted, which trades a small
// re-identification error for zero stored PII.
func (vi *VisitorIdentity) GetVisitorInfo() VisitorInfo {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	fingerprint := cachedFingerprint(vi.provider, vi.session)
	signals := safeSignals(vi.provider)
	now := vi.now()

	record, ok := vi.loadRecord()
	isNew := false

	if !ok || record.Fingerprint != fingerprint {
		record = VisitorRecord{
			VisitorID:    uuid.New().String(),
			Fingerprint:  fingerprint,
			FirstSeen:    now,
			SessionCount: 1,
		}
		isNew = true
	}

	sess := vi.sessions.Current()
	if !isNew && record.LastSessionID != sess.SessionID {
		record.SessionCount++
	}
	record.LastSessionID = sess.SessionID
	record.LastSeen = now
	vi.storeRecord(record)

	return VisitorInfo{
		VisitorID:    record.VisitorID,
		SessionID:    sess.SessionID,
		IsNewVisitor: isNew,
		IsReturning:  !isNew,
		SessionCount: record.SessionCount,
		UserAgent:    orUnavailable(signals.UserAgent),
		Language:     orUnavailable(signals.Language),
		Timezone:     orUnavailable(signals.Timezone),
		ScreenSize:   ScreenSizeString(signals),
		DeviceType:   DeviceTypeFor(signals),
		Referrer:     sess.Referrer,
		UtmSource:    sess.UtmSource,
		UtmMedium:    sess.UtmMedium,
		UtmCampaign:  sess.UtmCampaign,
	}
}

func (vi *VisitorIdentity) loadRecord() (VisitorRecord, bool) {
	raw, ok := vi.local.Get(KeyVisitor)
	if !ok {
		return VisitorRecord{}, false
	}
	var record VisitorRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return VisitorRecord{}, false
	}
	return record, true
}

func (vi *VisitorIdentity) storeRecord(record VisitorRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	vi.local.Set(KeyVisitor, string(raw))
}
