package gesture

// Action identifies a touch frame type.
type Action int

const (
	// ActionDown is a pointer touching the surface.
	ActionDown Action = iota
	// ActionMove carries updated positions for one or more pointers.
	ActionMove
	// ActionUp is a pointer leaving the surface.
	ActionUp
	// ActionCancel aborts the whole gesture.
	ActionCancel
)

// PointerSample is the position of one pointer at a given time.
type PointerSample struct {
	ID     int
	X      float32
	Y      float32
	TimeMs int64
}

// Event is one touch frame. Down and Up carry the acting pointer, Move carries
// every pointer that moved in the frame, Cancel carries nothing.
type Event struct {
	Action  Action
	Samples []PointerSample
}

// Down builds a pointer-down event.
func Down(id int, x, y float32, timeMs int64) Event {
	return Event{Action: ActionDown, Samples: []PointerSample{{ID: id, X: x, Y: y, TimeMs: timeMs}}}
}

// Move builds a pointer-move event.
func Move(samples ...PointerSample) Event {
	return Event{Action: ActionMove, Samples: samples}
}

// Up builds a pointer-up event.
func Up(id int, x, y float32, timeMs int64) Event {
	return Event{Action: ActionUp, Samples: []PointerSample{{ID: id, X: x, Y: y, TimeMs: timeMs}}}
}

// Cancel builds a cancel event.
func Cancel() Event {
	return Event{Action: ActionCancel}
}

// time returns the latest sample timestamp of the frame.
func (ev Event) time() int64 {
	var t int64
	for i, s := range ev.Samples {
		if i == 0 || s.TimeMs > t {
			t = s.TimeMs
		}
	}
	return t
}
