// Package prefs remembers the last PC target and the user's settings between runs.
package prefs

// Prefs stores user choices. Unset fields fall back to the built-in defaults.
type Prefs struct {
	Host              string   `json:"host,omitempty"`
	Port              int      `json:"port,omitempty"`
	Sensitivity       *float32 `json:"sensitivity,omitempty"`
	ScrollSensitivity *float32 `json:"scrollSensitivity,omitempty"`
	Gestures          *bool    `json:"gestures,omitempty"`
	Scrolling         *bool    `json:"scrolling,omitempty"`
	RightClick        *bool    `json:"rightClick,omitempty"`
	DoubleClick       *bool    `json:"doubleClick,omitempty"`
}

// Empty reports whether nothing has been remembered.
func (p Prefs) Empty() bool {
	return p == Prefs{}
}
