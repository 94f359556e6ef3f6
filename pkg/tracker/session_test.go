package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	sm := NewSessionManager(NewMemoryStorage(), DefaultSessionTimeout)
	sm.SetNow(clock.Now)
	return sm, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSessionManager_SameSessionWithinTimeout(t *testing.T) {
	sm, clock := newTestSessionManager(t)

	first := sm.Current()
	clock.Advance(29 * time.Minute)
	second := sm.Current()

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestSessionManager_NewSessionAfterTimeout(t *testing.T) {
	sm, clock := newTestSessionManager(t)

	first := sm.RecordPageView("/about", "About")
	sm.RecordInteraction()
	assert.False(t, sm.Current().IsBounce)

	clock.Advance(30 * time.Minute)
	second := sm.Current()

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.True(t, second.IsBounce, "bounce resets on a fresh session")
	assert.Empty(t, second.Pages)
}

func TestSessionManager_BounceInvariant(t *testing.T) {
	tests := []struct {
		name         string
		pageviews    int
		interactions int
		wantBounce   bool
	}{
		{"single page no interaction", 1, 0, true},
		{"single page with interaction", 1, 1, false},
		{"two pages no interaction", 2, 0, false},
		{"two pages with interactions", 2, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, clock := newTestSessionManager(t)

			for i := 0; i < tt.pageviews; i++ {
				sm.RecordPageView("/page", "Page")
				clock.Advance(5 * time.Second)
			}
			for i := 0; i < tt.interactions; i++ {
				sm.RecordInteraction()
				clock.Advance(2 * time.Second)
			}

			state := sm.Current()
			assert.Equal(t, tt.wantBounce, state.IsBounce)
			assert.Equal(t, tt.wantBounce, len(state.Pages) == 1 && state.TotalInteractions == 0)
		})
	}
}

func TestSessionManager_InteractionThrottle(t *testing.T) {
	sm, clock := newTestSessionManager(t)
	sm.RecordPageView("/", "Home")

	// Rapid-fire interactions inside one second count once.
	sm.RecordInteraction()
	sm.RecordInteraction()
	sm.RecordInteraction()
	assert.Equal(t, 1, sm.Current().TotalInteractions)

	clock.Advance(time.Second)
	sm.RecordInteraction()
	assert.Equal(t, 2, sm.Current().TotalInteractions)
}

func TestSessionManager_DeepScrollEndsBounce(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	sm.RecordPageView("/blog", "Blog")

	sm.RecordScrollDepth(40)
	assert.True(t, sm.Current().IsBounce)

	sm.RecordScrollDepth(60)
	assert.False(t, sm.Current().IsBounce)
}

func TestSessionManager_TimeOnPageFinalizedOnNavigation(t *testing.T) {
	sm, clock := newTestSessionManager(t)

	sm.RecordPageView("/", "Home")
	clock.Advance(42 * time.Second)
	state := sm.RecordPageView("/about", "About")

	require.Len(t, state.Pages, 2)
	assert.Equal(t, 42, state.Pages[0].TimeOnPage)
	assert.Zero(t, state.Pages[1].TimeOnPage)
}

func TestSessionManager_EndSession(t *testing.T) {
	sm, clock := newTestSessionManager(t)

	sm.RecordPageView("/", "Home")
	clock.Advance(10 * time.Second)
	sm.RecordPageView("/contact", "Contact")
	clock.Advance(5 * time.Second)

	state := sm.EndSession()
	require.NotNil(t, state.EndedAt)
	assert.Equal(t, "/contact", state.ExitPage)
	assert.Equal(t, 5, state.Pages[1].TimeOnPage)

	// The next read after an ended session starts a new one.
	next := sm.Current()
	assert.NotEqual(t, state.SessionID, next.SessionID)
}

func TestSessionManager_EngagementScore(t *testing.T) {
	sm, clock := newTestSessionManager(t)

	// Single page, no interaction, instant read: pure bounce.
	sm.RecordPageView("/", "Home")
	assert.Equal(t, 0, sm.EngagementScore())

	// Three pages, interactions, long duration: every bucket fires.
	clock.Advance(3 * time.Minute)
	sm.RecordPageView("/about", "About")
	sm.RecordPageView("/courses", "Courses")
	sm.RecordInteraction()

	assert.Equal(t, 100, sm.EngagementScore())
}

func TestSessionManager_StatePersistsAcrossInstances(t *testing.T) {
	storage := NewMemoryStorage()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	sm1 := NewSessionManager(storage, DefaultSessionTimeout)
	sm1.SetNow(clock.Now)
	first := sm1.RecordPageView("/", "Home")

	sm2 := NewSessionManager(storage, DefaultSessionTimeout)
	sm2.SetNow(clock.Now)
	second := sm2.Current()

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, second.Pages, 1)
}
