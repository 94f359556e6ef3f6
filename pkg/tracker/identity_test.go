package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignals() DeviceSignals {
	return DeviceSignals{
		UserAgent:           "Mozilla/5.0 (test)",
		Language:            "en-IE",
		ScreenWidth:         1440,
		ScreenHeight:        900,
		ColorDepth:          24,
		TimezoneOffsetMins:  -60,
		CanvasSignature:     "canvas-sig",
		WebGLVendor:         "Test Vendor",
		WebGLRenderer:       "Test Renderer",
		HardwareConcurrency: 8,
		DeviceMemoryGB:      16,
		Timezone:            "Europe/Dublin",
	}
}

func newTestIdentity() (*VisitorIdentity, *SessionManager, *fakeClock) {
	local := NewMemoryStorage()
	session := NewMemoryStorage()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	sm := NewSessionManager(local, DefaultSessionTimeout)
	sm.SetNow(clock.Now)

	vi := NewVisitorIdentity(local, session, StaticSignalProvider{testSignals()}, sm)
	vi.now = clock.Now
	return vi, sm, clock
}

func TestVisitorIdentity_IdempotentVisitorID(t *testing.T) {
	vi, _, _ := newTestIdentity()

	first := vi.GetVisitorInfo()
	second := vi.GetVisitorInfo()

	require.NotEmpty(t, first.VisitorID)
	assert.Equal(t, first.VisitorID, second.VisitorID)
	assert.True(t, first.IsNewVisitor)
	assert.False(t, second.IsNewVisitor)
	assert.True(t, second.IsReturning)
}

func TestVisitorIdentity_SessionCountIncrementsOnNewSession(t *testing.T) {
	vi, _, clock := newTestIdentity()

	first := vi.GetVisitorInfo()
	assert.Equal(t, 1, first.SessionCount)

	// Same session: count stays put.
	second := vi.GetVisitorInfo()
	assert.Equal(t, 1, second.SessionCount)

	// Timeout forces a new session for the same visitor.
	clock.Advance(31 * time.Minute)
	third := vi.GetVisitorInfo()
	assert.Equal(t, first.VisitorID, third.VisitorID)
	assert.Equal(t, 2, third.SessionCount)
}

func TestVisitorIdentity_FingerprintMismatchReplacesVisitor(t *testing.T) {
	local := NewMemoryStorage()
	session := NewMemoryStorage()
	sm := NewSessionManager(local, DefaultSessionTimeout)

	vi := NewVisitorIdentity(local, session, StaticSignalProvider{testSignals()}, sm)
	first := vi.GetVisitorInfo()

	// A different device profile invalidates the cached fingerprint and
	// silently replaces the stored record.
	session.Remove(KeyFingerprint)
	changed := testSignals()
	changed.ScreenWidth = 375
	changed.ScreenHeight = 812
	vi.provider = StaticSignalProvider{changed}

	second := vi.GetVisitorInfo()
	assert.NotEqual(t, first.VisitorID, second.VisitorID)
	assert.True(t, second.IsNewVisitor)
}

func TestVisitorIdentity_DerivedDeviceFields(t *testing.T) {
	vi, _, _ := newTestIdentity()

	info := vi.GetVisitorInfo()
	assert.Equal(t, "desktop", info.DeviceType)
	assert.Equal(t, "1440x900", info.ScreenSize)
	assert.Equal(t, "en-IE", info.Language)
	assert.Equal(t, "Europe/Dublin", info.Timezone)
}
