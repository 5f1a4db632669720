package gesture

const (
	minSensitivity       = 0.1
	maxSensitivity       = 5.0
	minScrollSensitivity = 0.1
	maxScrollSensitivity = 3.0
)

// Settings are the user preferences applied on every call.
type Settings struct {
	Sensitivity       float32
	ScrollSensitivity float32
	// Gestures enables taps, double taps, long press and two-finger tap.
	Gestures bool
}

// DefaultSettings returns unit sensitivities with gestures enabled.
func DefaultSettings() Settings {
	return Settings{Sensitivity: 1, ScrollSensitivity: 1, Gestures: true}
}

// ClampSensitivity bounds a cursor sensitivity to [0.1, 5.0].
func ClampSensitivity(v float32) float32 {
	return clamp(v, minSensitivity, maxSensitivity)
}

// ClampScrollSensitivity bounds a scroll sensitivity to [0.1, 3.0].
func ClampScrollSensitivity(v float32) float32 {
	return clamp(v, minScrollSensitivity, maxScrollSensitivity)
}

func (s Settings) clamped() Settings {
	s.Sensitivity = ClampSensitivity(s.Sensitivity)
	s.ScrollSensitivity = ClampScrollSensitivity(s.ScrollSensitivity)
	return s
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
