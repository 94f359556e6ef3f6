package tracker

import (
	"encoding/json"
	"time"
)

// Config assembles a Client. Zero values fall back to sane defaults; the
// zero Config yields an in-memory, consent-gated client pointed at
// localhost.
type Config struct {
	// Endpoint is the analytics server base URL, e.g. "https://example.com".
	Endpoint string
	// Transport overrides the HTTP transport. Mostly for tests.
	Transport Transport

	Signals        DeviceSignalProvider
	LocalStorage   Storage
	SessionStorage Storage

	BatchSize      int
	FlushInterval  time.Duration
	SessionTimeout time.Duration

	// ConsentNotRequired disables the explicit-grant gate (tracking still
	// honors DNT and opt-out).
	ConsentNotRequired bool
	HonorDNT           bool
	// DNTSet probes the host's Do-Not-Track signal.
	DNTSet func() bool

	// Referrer and UTM context captured at client construction, attached
	// to sessions the client creates.
	Referrer    string
	UtmSource   string
	UtmMedium   string
	UtmCampaign string
}

// Client is the assembled tracking SDK. All methods are safe to call from
// host code: SDK failures are swallowed at the boundary, never propagated.
type Client struct {
	Privacy  *PrivacyManager
	Sessions *SessionManager
	Identity *VisitorIdentity
	Events   *EventTracker
	Errors   *ErrorTracker

	tracker *AnalyticsTracker
}

// NewClient wires the full pipeline: signals → identity → sessions →
// privacy gate → batching transport.
func NewClient(cfg Config) *Client {
	if cfg.Signals == nil {
		cfg.Signals = NoopSignalProvider{}
	}
	if cfg.LocalStorage == nil {
		cfg.LocalStorage = NewMemoryStorage()
	}
	if cfg.SessionStorage == nil {
		cfg.SessionStorage = NewMemoryStorage()
	}
	if cfg.Transport == nil {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:3000"
		}
		cfg.Transport = NewHTTPTransport(endpoint)
	}

	sessions := NewSessionManager(cfg.LocalStorage, cfg.SessionTimeout)
	sessions.Referrer = cfg.Referrer
	sessions.UtmSource = cfg.UtmSource
	sessions.UtmMedium = cfg.UtmMedium
	sessions.UtmCampaign = cfg.UtmCampaign

	identity := NewVisitorIdentity(cfg.LocalStorage, cfg.SessionStorage, cfg.Signals, sessions)

	privacy := NewPrivacyManager(cfg.LocalStorage, cfg.SessionStorage)
	privacy.ConsentRequired = !cfg.ConsentNotRequired
	privacy.HonorDNT = cfg.HonorDNT
	privacy.DNTSet = cfg.DNTSet
	privacy.Syncer = &transportSyncer{transport: cfg.Transport}
	privacy.VisitorID = func() string {
		return identity.GetVisitorInfo().VisitorID
	}

	tracker := NewAnalyticsTracker(cfg.Transport, privacy, identity, cfg.BatchSize, cfg.FlushInterval)

	events := NewEventTracker(func() string {
		sess := sessions.Current()
		if n := len(sess.Pages); n > 0 {
			return sess.Pages[n-1].Path
		}
		return ""
	})

	return &Client{
		Privacy:  privacy,
		Sessions: sessions,
		Identity: identity,
		Events:   events,
		Errors:   NewErrorTracker(tracker, events),
		tracker:  tracker,
	}
}

// PageView records a navigation: the session page sequence advances and a
// pageview event is queued (subject to the privacy gate).
func (c *Client) PageView(path, title, referrer string) {
	defer swallowPanic()

	c.Sessions.RecordPageView(path, title)
	c.tracker.TrackPageView(path, title, referrer)
}

// Interaction records a click/scroll/keydown/touch against the session.
func (c *Client) Interaction() {
	defer swallowPanic()
	c.Sessions.RecordInteraction()
}

// ScrollDepth records the current page's scroll progress.
func (c *Client) ScrollDepth(percent int) {
	defer swallowPanic()
	c.Sessions.RecordScrollDepth(percent)
}

// TrackCourse queues a course interaction event.
func (c *Client) TrackCourse(p CoursePayload) { c.track(c.Events.Course(p)) }

// TrackBooking queues a booking funnel event.
func (c *Client) TrackBooking(p BookingPayload) { c.track(c.Events.Booking(p)) }

// TrackAudio queues a meditation audio event.
func (c *Client) TrackAudio(p AudioPayload) { c.track(c.Events.Audio(p)) }

// TrackContact queues a contact form event.
func (c *Client) TrackContact(p ContactPayload) { c.track(c.Events.Contact(p)) }

// TrackNavigation queues an outbound link / download event.
func (c *Client) TrackNavigation(p NavigationPayload) { c.track(c.Events.Navigation(p)) }

// TrackConversion queues a goal completion event.
func (c *Client) TrackConversion(p ConversionPayload) { c.track(c.Events.Conversion(p)) }

// TrackEvent queues a custom event of any enumerated kind.
func (c *Client) TrackEvent(kind EventKind, name, element, value string, metadata json.RawMessage) {
	c.track(c.Events.Custom(kind, name, element, value, metadata))
}

func (c *Client) track(ev Event) {
	defer swallowPanic()
	c.tracker.Track(ev)
}

// Flush sends everything currently queued.
func (c *Client) Flush() {
	c.tracker.Flush()
}

// QueueLen reports pending events. Exposed for tests and diagnostics.
func (c *Client) QueueLen() int {
	return c.tracker.QueueLen()
}

// Close ends the session and drains the queue. The unload analog.
func (c *Client) Close() {
	defer swallowPanic()

	c.Errors.StopHeapSampling()
	c.Sessions.EndSession()
	c.tracker.Close()
}

// transportSyncer adapts Transport to the PrivacyManager's consent sync
// hook. Failures are dropped; local consent state never waits on the
// server.
type transportSyncer struct {
	transport Transport
}

func (s *transportSyncer) SyncConsent(visitorID string, granted bool, consentType string) {
	defer swallowPanic()
	_ = s.transport.SendConsent(visitorID, granted, consentType)
}
