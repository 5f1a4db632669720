// Package gesture classifies raw multi-touch samples into control intents.
package gesture

// Kind identifies the kind of control intent.
type Kind string

const (
	// KindMove moves the cursor by a relative delta.
	KindMove Kind = "move"
	// KindScroll scrolls by a relative delta.
	KindScroll Kind = "scroll"
	// KindLeftClick performs a left click.
	KindLeftClick Kind = "left_click"
	// KindRightClick performs a right click.
	KindRightClick Kind = "right_click"
	// KindDoubleClick performs a double click.
	KindDoubleClick Kind = "double_click"
	// KindKey presses or releases a key.
	KindKey Kind = "key"
	// KindText types literal text.
	KindText Kind = "text"
	// KindCombo sends a key combination.
	KindCombo Kind = "combo"
)

// Phase is the phase of a key event.
type Phase string

const (
	// PhasePress is a key press.
	PhasePress Phase = "press"
	// PhaseRelease is a key release.
	PhaseRelease Phase = "release"
)

// Intent is a classified control action. Only the fields relevant to Kind are set.
type Intent struct {
	Kind  Kind
	DX    float32
	DY    float32
	X     float32
	Y     float32
	Key   string
	Phase Phase
	Text  string
	Combo string
}

// KeyIntent returns a key press or release intent.
func KeyIntent(key string, phase Phase) Intent {
	return Intent{Kind: KindKey, Key: key, Phase: phase}
}

// TextIntent returns a text input intent.
func TextIntent(text string) Intent {
	return Intent{Kind: KindText, Text: text}
}

// ComboIntent returns a key combination intent.
func ComboIntent(combo string) Intent {
	return Intent{Kind: KindCombo, Combo: combo}
}
