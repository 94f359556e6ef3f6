package tracker

import (
	"fmt"
	"strconv"
	"strings"
)

// SignalUnavailable is substituted for any device signal the host cannot
// provide. Fingerprinting degrades, it never blocks or fails.
const SignalUnavailable = "unavailable"

// DeviceSignals is the fixed set of rendering/hardware signals the
// fingerprint is derived from. Zero values degrade to SignalUnavailable.
type DeviceSignals struct {
	UserAgent           string
	Language            string
	ScreenWidth         int
	ScreenHeight        int
	ColorDepth          int
	TimezoneOffsetMins  int
	CanvasSignature     string
	WebGLVendor         string
	WebGLRenderer       string
	HardwareConcurrency int
	DeviceMemoryGB      int
	Timezone            string
}

// DeviceSignalProvider supplies device signals from the host environment.
// Implementations must never perform blocking I/O: fingerprinting sits on
// the page-render path.
type DeviceSignalProvider interface {
	Signals() DeviceSignals
}

// StaticSignalProvider returns a fixed signal set. Suitable for embedded
// hosts that probe their environment once at startup, and for tests.
type StaticSignalProvider struct {
	DeviceSignals
}

func (p StaticSignalProvider) Signals() DeviceSignals { return p.DeviceSignals }

// NoopSignalProvider yields only sentinel values, for hosts with no device
// introspection at all. Every caller gets the same fingerprint, which is
// the documented degradation mode.
type NoopSignalProvider struct{}

func (NoopSignalProvider) Signals() DeviceSignals { return DeviceSignals{} }

// Fingerprint derives a stable, non-cryptographic hash from the ordered
// signal list. Stability across restarts on the same device is the only
// requirement; collisions between devices are a documented imprecision.
func Fingerprint(s DeviceSignals) string {
	parts := []string{
		orUnavailable(s.UserAgent),
		orUnavailable(s.Language),
		dimension(s.ScreenWidth, s.ScreenHeight),
		intSignal(s.ColorDepth),
		strconv.Itoa(s.TimezoneOffsetMins),
		orUnavailable(s.CanvasSignature),
		orUnavailable(s.WebGLVendor),
		orUnavailable(s.WebGLRenderer),
		intSignal(s.HardwareConcurrency),
		intSignal(s.DeviceMemoryGB),
	}

	return rollingHash(strings.Join(parts, "|"))
}

// rollingHash is djb2 over the signal string, rendered as hex. Not
// cryptographic; only determinism matters.
func rollingHash(s string) string {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return fmt.Sprintf("%08x", h)
}

func orUnavailable(s string) string {
	if s == "" {
		return SignalUnavailable
	}
	return s
}

func intSignal(v int) string {
	if v == 0 {
		return SignalUnavailable
	}
	return strconv.Itoa(v)
}

func dimension(w, h int) string {
	if w == 0 || h == 0 {
		return SignalUnavailable
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// cachedFingerprint computes the fingerprint once per browsing session and
// reuses the stored value afterwards.
func cachedFingerprint(provider DeviceSignalProvider, session Storage) string {
	if fp, ok := session.Get(KeyFingerprint); ok && fp != "" {
		return fp
	}

	fp := Fingerprint(safeSignals(provider))
	session.Set(KeyFingerprint, fp)
	return fp
}

// safeSignals shields the SDK from a panicking provider.
func safeSignals(provider DeviceSignalProvider) (s DeviceSignals) {
	defer func() {
		if r := recover(); r != nil {
			s = DeviceSignals{}
		}
	}()
	if provider == nil {
		return DeviceSignals{}
	}
	return provider.Signals()
}

// DeviceTypeFor classifies the device from screen width the same way the
// site's responsive breakpoints do.
func DeviceTypeFor(s DeviceSignals) string {
	switch {
	case s.ScreenWidth == 0:
		return "desktop"
	case s.ScreenWidth < 768:
		return "mobile"
	case s.ScreenWidth < 1024:
		return "tablet"
	default:
		return "desktop"
	}
}

// ScreenSizeString renders the screen dimensions for the wire format.
func ScreenSizeString(s DeviceSignals) string {
	if s.ScreenWidth == 0 || s.ScreenHeight == 0 {
		return SignalUnavailable
	}
	return fmt.Sprintf("%dx%d", s.ScreenWidth, s.ScreenHeight)
}
