package tracker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTimeout is the inactivity gap that ends a session.
const DefaultSessionTimeout = 30 * time.Minute

// interactionThrottle limits interaction counting to one per second.
const interactionThrottle = time.Second

// PageVisit is one entry in the session's page sequence.
type PageVisit struct {
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	EnteredAt   time.Time `json:"enteredAt"`
	TimeOnPage  int       `json:"timeOnPage,omitempty"` // seconds, finalized on leaving
	ScrollDepth int       `json:"scrollDepth,omitempty"`
}

// SessionState is the persisted session snapshot.
type SessionState struct {
	SessionID         string      `json:"sessionId"`
	StartedAt         time.Time   `json:"startedAt"`
	LastActivity      time.Time   `json:"lastActivity"`
	EndedAt           *time.Time  `json:"endedAt,omitempty"`
	Pages             []PageVisit `json:"pages"`
	TotalInteractions int         `json:"totalInteractions"`
	IsBounce          bool        `json:"isBounce"`
	Referrer          string      `json:"referrer,omitempty"`
	UtmSource         string      `json:"utmSource,omitempty"`
	UtmMedium         string      `json:"utmMedium,omitempty"`
	UtmCampaign       string      `json:"utmCampaign,omitempty"`
	ExitPage          string      `json:"exitPage,omitempty"`
}

// SessionManager owns the session lifecycle. The state machine has three
// states: no session, active, expired. Expiry has no transition object of
// its own; any read after the timeout simply constructs a new session, the
// boundary condition is always "time since lastActivity".
type SessionManager struct {
	mu      sync.Mutex
	storage Storage
	timeout time.Duration
	now     func() time.Time

	state           *SessionState
	lastInteraction time.Time

	// Referrer/UTM context for sessions this manager creates.
	Referrer    string
	UtmSource   string
	UtmMedium   string
	UtmCampaign string
}

func NewSessionManager(storage Storage, timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		storage: storage,
		timeout: timeout,
		now:     time.Now,
	}
}

// Current returns the live session, creating a fresh one when none exists
// or the inactivity timeout has elapsed.
func (sm *SessionManager) Current() SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return *sm.currentLocked()
}

func (sm *SessionManager) currentLocked() *SessionState {
	now := sm.now()

	if sm.state == nil {
		sm.state = sm.loadState()
	}

	if sm.state == nil || sm.state.EndedAt != nil || now.Sub(sm.state.LastActivity) >= sm.timeout {
		sm.state = &SessionState{
			SessionID:    uuid.New().String(),
			StartedAt:    now,
			LastActivity: now,
			IsBounce:     true,
			Referrer:     sm.Referrer,
			UtmSource:    sm.UtmSource,
			UtmMedium:    sm.UtmMedium,
			UtmCampaign:  sm.UtmCampaign,
		}
		sm.lastInteraction = time.Time{}
		sm.persistLocked()
	}

	return sm.state
}

// RecordPageView appends to the page sequence, finalizes the previous
// page's time-on-page, and resets the per-page interaction throttle.
func (sm *SessionManager) RecordPageView(path, title string) SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.currentLocked()
	now := sm.now()

	if n := len(state.Pages); n > 0 {
		prev := &state.Pages[n-1]
		prev.TimeOnPage = int(now.Sub(prev.EnteredAt).Seconds())
	}

	state.Pages = append(state.Pages, PageVisit{
		Path:      path,
		Title:     title,
		EnteredAt: now,
	})
	state.LastActivity = now
	sm.lastInteraction = time.Time{}

	// Bounce holds only while the session has a single page and no
	// tracked interaction.
	state.IsBounce = len(state.Pages) == 1 && state.TotalInteractions == 0

	sm.persistLocked()
	return *state
}

// RecordInteraction counts a click/scroll/keydown/touch, throttled to at
// most one per second. Any interaction ends bounce status.
func (sm *SessionManager) RecordInteraction() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.currentLocked()
	now := sm.now()

	if !sm.lastInteraction.IsZero() && now.Sub(sm.lastInteraction) < interactionThrottle {
		return
	}
	sm.lastInteraction = now

	state.TotalInteractions++
	state.IsBounce = false
	state.LastActivity = now
	sm.persistLocked()
}

// RecordScrollDepth updates the current page's max scroll depth. Scrolling
// past half the page counts as engagement and ends bounce status.
func (sm *SessionManager) RecordScrollDepth(percent int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.currentLocked()
	now := sm.now()

	if n := len(state.Pages); n > 0 && percent > state.Pages[n-1].ScrollDepth {
		state.Pages[n-1].ScrollDepth = percent
	}
	if percent > 50 {
		state.IsBounce = false
	}
	state.LastActivity = now
	sm.persistLocked()
}

// EndSession finalizes the duration and exit page, then persists. This is
// the unload path: best effort, the host may cut it off.
func (sm *SessionManager) EndSession() SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.currentLocked()
	now := sm.now()

	if n := len(state.Pages); n > 0 {
		last := &state.Pages[n-1]
		if last.TimeOnPage == 0 {
			last.TimeOnPage = int(now.Sub(last.EnteredAt).Seconds())
		}
		state.ExitPage = last.Path
	}
	ended := now
	state.EndedAt = &ended
	state.LastActivity = now
	sm.persistLocked()
	return *state
}

// EngagementScore is an additive heuristic in [0,100]. Intentionally
// coarse; not a calibrated model.
func (sm *SessionManager) EngagementScore() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.currentLocked()
	duration := sm.now().Sub(state.StartedAt)
	if state.EndedAt != nil {
		duration = state.EndedAt.Sub(state.StartedAt)
	}

	score := 0
	if !state.IsBounce {
		score += 30
	}
	if len(state.Pages) > 2 {
		score += 20
	}
	if duration > 30*time.Second {
		score += 20
	}
	if duration > 120*time.Second {
		score += 20
	}
	if state.TotalInteractions > 0 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// SetNow overrides the clock. Test hook only.
func (sm *SessionManager) SetNow(now func() time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.now = now
}

func (sm *SessionManager) loadState() *SessionState {
	raw, ok := sm.storage.Get(KeySession)
	if !ok {
		return nil
	}
	var state SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil
	}
	return &state
}

func (sm *SessionManager) persistLocked() {
	raw, err := json.Marshal(sm.state)
	if err != nil {
		return
	}
	sm.storage.Set(KeySession, string(raw))
}
