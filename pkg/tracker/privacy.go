package tracker

import (
	"encoding/json"
	"sync"
	"time"
)

// ConsentState is the banner-driven part of the privacy state machine.
type ConsentState string

const (
	ConsentUnset   ConsentState = "unset"
	ConsentGranted ConsentState = "granted"
	ConsentDenied  ConsentState = "denied"
)

// ConsentVersion invalidates stored consent when the policy text changes.
const ConsentVersion = 2

// PrivacyEvent names a privacy state change delivered to listeners.
type PrivacyEvent string

const (
	EventConsentGranted PrivacyEvent = "consent-granted"
	EventConsentDenied  PrivacyEvent = "consent-denied"
	EventOptedOut       PrivacyEvent = "opted-out"
)

// storedConsent is the versioned record kept in local storage.
type storedConsent struct {
	Version   int          `json:"version"`
	State     ConsentState `json:"state"`
	Analytics bool         `json:"analytics"`
	Date      time.Time    `json:"date"`
}

// ConsentSyncer pushes a consent decision to the server. The push is
// best effort: local state never waits on it.
type ConsentSyncer interface {
	SyncConsent(visitorID string, granted bool, consentType string)
}

// PrivacyManager decides whether tracking is allowed. States: unset →
// {granted, denied}; opt-out is a stronger terminal override, invocable
// at any time including after consent was granted.
type PrivacyManager struct {
	mu        sync.Mutex
	local     Storage
	session   Storage
	listeners []func(PrivacyEvent)

	// HonorDNT respects a host-signaled Do-Not-Track independent of the
	// banner flow.
	HonorDNT bool
	// DNTSet probes the host's DNT signal. Nil means not set.
	DNTSet func() bool
	// ConsentRequired gates tracking on an explicit grant. When false,
	// tracking runs unless denied by DNT or opt-out.
	ConsentRequired bool
	// Syncer receives async consent notifications. Optional.
	Syncer ConsentSyncer
	// VisitorID supplies the id attached to server consent syncs.
	VisitorID func() string

	now func() time.Time
}

func NewPrivacyManager(local, session Storage) *PrivacyManager {
	return &PrivacyManager{
		local:           local,
		session:         session,
		ConsentRequired: true,
		HonorDNT:        true,
		now:             time.Now,
	}
}

// ConsentState returns the current banner state. A stored record with a
// stale version is cleared and treated as unset.
func (pm *PrivacyManager) ConsentState() ConsentState {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.consentLocked().State
}

func (pm *PrivacyManager) consentLocked() storedConsent {
	raw, ok := pm.local.Get(KeyConsent)
	if !ok {
		return storedConsent{State: ConsentUnset}
	}

	var record storedConsent
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record.Version != ConsentVersion {
		pm.local.Remove(KeyConsent)
		return storedConsent{State: ConsentUnset}
	}
	return record
}

// Allowed reports whether tracking may run right now.
func (pm *PrivacyManager) Allowed() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.optedOutLocked() {
		return false
	}
	if pm.HonorDNT && pm.DNTSet != nil && pm.DNTSet() {
		return false
	}
	if !pm.ConsentRequired {
		return true
	}

	record := pm.consentLocked()
	return record.State == ConsentGranted && record.Analytics
}

// OptedOut reports the terminal opt-out flag.
func (pm *PrivacyManager) OptedOut() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.optedOutLocked()
}

func (pm *PrivacyManager) optedOutLocked() bool {
	v, ok := pm.local.Get(KeyOptOut)
	return ok && v == "1"
}

// GrantConsent persists the grant locally, then notifies the server
// asynchronously. Store first, sync best effort.
func (pm *PrivacyManager) GrantConsent(consentType string) {
	pm.setConsent(ConsentGranted, true, consentType, EventConsentGranted)
}

// DenyConsent persists the denial locally, then notifies the server.
func (pm *PrivacyManager) DenyConsent() {
	pm.setConsent(ConsentDenied, false, "none", EventConsentDenied)
}

func (pm *PrivacyManager) setConsent(state ConsentState, analytics bool, consentType string, event PrivacyEvent) {
	pm.mu.Lock()

	record := storedConsent{
		Version:   ConsentVersion,
		State:     state,
		Analytics: analytics,
		Date:      pm.now(),
	}
	if raw, err := json.Marshal(record); err == nil {
		pm.local.Set(KeyConsent, string(raw))
	}

	syncer := pm.Syncer
	visitorID := ""
	if pm.VisitorID != nil {
		visitorID = pm.VisitorID()
	}
	listeners := append([]func(PrivacyEvent){}, pm.listeners...)
	pm.mu.Unlock()

	if syncer != nil && visitorID != "" {
		go syncer.SyncConsent(visitorID, analytics, consentType)
	}
	for _, l := range listeners {
		l(event)
	}
}

// OptOut clears every analytics storage key and flags the terminal
// opt-out. Independent of the banner flow.
func (pm *PrivacyManager) OptOut() {
	pm.mu.Lock()

	pm.local.Remove(KeyVisitor)
	pm.local.Remove(KeyConsent)
	pm.local.Remove(KeySession)
	pm.session.Remove(KeyFingerprint)
	pm.session.Remove(KeySession)
	pm.local.Set(KeyOptOut, "1")

	listeners := append([]func(PrivacyEvent){}, pm.listeners...)
	pm.mu.Unlock()

	for _, l := range listeners {
		l(EventOptedOut)
	}
}

// OnChange registers a listener fired on every privacy state change, the
// Go counterpart of the DOM custom events dependent components react to.
func (pm *PrivacyManager) OnChange(fn func(PrivacyEvent)) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.listeners = append(pm.listeners, fn)
}
