// Package gesture classifies raw multi-touch samples into control intents.
package gesture

import "math"

const (
	longPressMs    int64 = 500
	doubleTapMs    int64 = 300
	quickReleaseMs int64 = 200

	movementThreshold = 1.0
	scrollThreshold   = 10.0
	smoothingFactor   = 0.8
)

type point struct {
	x float32
	y float32
}

// Engine turns pointer events into intents. It is not safe for concurrent use;
// drive it from a single input loop.
type Engine struct {
	pointers map[int]point
	order    []int
	peak     int

	moved          bool
	dragged        bool
	scrolling      bool
	anchor         point
	lastPos        point
	lastEventMs    int64
	smoothX        float32
	smoothY        float32
	spread         float32
	longPress      deadline
	longPressFired bool

	tapCount     int
	lastTapMs    int64
	tapped       bool
	pendingClick deadline
	clickPos     point
}

// New returns an idle engine.
func New() *Engine {
	return &Engine{pointers: make(map[int]point)}
}

// Handle processes one touch frame. Deadlines that elapsed before the frame
// are fired first so intents keep their real order.
func (e *Engine) Handle(ev Event, s Settings) []Intent {
	if ev.Action == ActionCancel {
		e.Reset()
		return nil
	}
	if len(ev.Samples) == 0 {
		return nil
	}
	s = s.clamped()
	now := ev.time()
	out := e.Advance(now)

	switch ev.Action {
	case ActionDown:
		out = append(out, e.down(ev.Samples[0], s)...)
	case ActionMove:
		out = append(out, e.move(ev.Samples, now, s)...)
	case ActionUp:
		out = append(out, e.up(ev.Samples[0], now, s)...)
	}
	return out
}

// Advance fires every deadline due at nowMs, earliest first.
func (e *Engine) Advance(nowMs int64) []Intent {
	var out []Intent
	for {
		lp := e.longPress.due(nowMs)
		pc := e.pendingClick.due(nowMs)
		switch {
		case lp && (!pc || e.longPress.at <= e.pendingClick.at):
			e.longPress.cancel()
			e.longPressFired = true
			out = append(out, Intent{Kind: KindRightClick, X: e.lastPos.x, Y: e.lastPos.y})
		case pc:
			e.pendingClick.cancel()
			e.tapCount = 0
			out = append(out, Intent{Kind: KindLeftClick, X: e.clickPos.x, Y: e.clickPos.y})
		default:
			return out
		}
	}
}

// NextDeadline returns the earliest armed deadline, if any.
func (e *Engine) NextDeadline() (int64, bool) {
	switch {
	case e.longPress.armed && e.pendingClick.armed:
		return min(e.longPress.at, e.pendingClick.at), true
	case e.longPress.armed:
		return e.longPress.at, true
	case e.pendingClick.armed:
		return e.pendingClick.at, true
	default:
		return 0, false
	}
}

// Reset discards all gesture and tap state and cancels pending deadlines.
func (e *Engine) Reset() {
	e.resetStroke()
	e.pendingClick.cancel()
	e.tapCount = 0
	e.tapped = false
}

// ActivePointers returns the number of pointers currently down.
func (e *Engine) ActivePointers() int {
	return len(e.order)
}

// down registers a new pointer.
func (e *Engine) down(p PointerSample, s Settings) []Intent {
	pos := point{p.X, p.Y}
	if _, ok := e.pointers[p.ID]; ok {
		e.pointers[p.ID] = pos
		return nil
	}
	e.pointers[p.ID] = pos
	e.order = append(e.order, p.ID)
	e.peak = max(e.peak, len(e.order))
	e.lastEventMs = p.TimeMs
	e.lastPos = pos

	switch len(e.order) {
	case 1:
		e.moved = false
		e.dragged = false
		e.scrolling = false
		e.longPressFired = false
		e.anchor = pos
		e.smoothX, e.smoothY = 0, 0
		if s.Gestures {
			e.longPress.arm(p.TimeMs + longPressMs)
		}
	case 2:
		e.longPress.cancel()
		e.spread = e.distance()
	default:
		e.longPress.cancel()
	}
	return nil
}

// move updates tracked pointers and emits move or scroll intents.
func (e *Engine) move(samples []PointerSample, now int64, s Settings) []Intent {
	var prevX, prevY float32
	twoFinger := len(e.order) == 2
	if twoFinger {
		prevX, prevY = e.midpoint()
	}

	var single *PointerSample
	known := false
	for i := range samples {
		p := samples[i]
		if _, ok := e.pointers[p.ID]; !ok {
			continue
		}
		known = true
		if len(e.order) == 1 {
			single = &samples[i]
		}
		e.pointers[p.ID] = point{p.X, p.Y}
	}
	if !known {
		return nil
	}

	var out []Intent
	switch {
	case single != nil:
		out = e.moveOne(*single, now, s)
	case twoFinger:
		out = e.moveTwo(prevX, prevY, s)
	}
	e.lastEventMs = now
	return out
}

// moveOne handles a single-finger stroke: noise gate, smoothing, acceleration.
func (e *Engine) moveOne(p PointerSample, now int64, s Settings) []Intent {
	pos := point{p.X, p.Y}
	e.lastPos = pos
	rawX := p.X - e.anchor.x
	rawY := p.Y - e.anchor.y
	if !e.moved {
		if hypot(rawX, rawY) < movementThreshold {
			return nil
		}
		e.moved = true
		e.longPress.cancel()
	}

	elapsed := max(now-e.lastEventMs, 1)
	e.smoothX = smoothingFactor*e.smoothX + (1-smoothingFactor)*rawX
	e.smoothY = smoothingFactor*e.smoothY + (1-smoothingFactor)*rawY
	speed := hypot(rawX, rawY) / (float32(elapsed) / 1000)
	gain := accelerate(speed) * s.Sensitivity
	e.anchor = pos
	e.dragged = true

	return []Intent{{Kind: KindMove, DX: e.smoothX * gain, DY: e.smoothY * gain}}
}

// moveTwo emits a scroll when the two-finger midpoint jumps past the threshold.
func (e *Engine) moveTwo(prevX, prevY float32, s Settings) []Intent {
	x, y := e.midpoint()
	e.lastPos = point{x, y}
	e.spread = e.distance()
	dx := x - prevX
	dy := y - prevY
	if abs32(dx) <= scrollThreshold && abs32(dy) <= scrollThreshold {
		return nil
	}
	e.scrolling = true
	return []Intent{{Kind: KindScroll, DX: dx * s.ScrollSensitivity, DY: dy * s.ScrollSensitivity}}
}

// up removes a pointer and resolves taps once the surface is clear.
func (e *Engine) up(p PointerSample, now int64, s Settings) []Intent {
	if _, ok := e.pointers[p.ID]; !ok {
		return nil
	}
	delete(e.pointers, p.ID)
	e.order = removeID(e.order, p.ID)
	if len(e.order) == 0 {
		e.lastPos = point{p.X, p.Y}
	}

	switch len(e.order) {
	case 0:
		out := e.release(now, s)
		e.resetStroke()
		return out
	case 1:
		// The remaining finger drives the cursor from where it is once it
		// clears the noise gate. The stroke peaked at two, so it cannot tap.
		e.anchor = e.pointers[e.order[0]]
		e.smoothX, e.smoothY = 0, 0
		e.moved = false
	}
	return nil
}

// release classifies the finished stroke.
func (e *Engine) release(now int64, s Settings) []Intent {
	e.longPress.cancel()
	if !s.Gestures || e.scrolling {
		return nil
	}
	switch {
	case e.peak == 1 && !e.moved && !e.longPressFired:
		return e.tap(now)
	case e.peak == 2 && !e.dragged && now-e.lastEventMs < quickReleaseMs:
		return []Intent{{Kind: KindRightClick, X: e.lastPos.x, Y: e.lastPos.y}}
	default:
		return nil
	}
}

// tap counts taps inside the double-tap window and defers single clicks.
func (e *Engine) tap(now int64) []Intent {
	if e.tapped && now-e.lastTapMs < doubleTapMs {
		e.tapCount++
	} else {
		e.tapCount = 1
	}
	e.lastTapMs = now
	e.tapped = true

	if e.tapCount >= 2 {
		e.tapCount = 0
		e.pendingClick.cancel()
		return []Intent{{Kind: KindDoubleClick, X: e.lastPos.x, Y: e.lastPos.y}}
	}
	e.clickPos = e.lastPos
	e.pendingClick.arm(now + doubleTapMs)
	return nil
}

// resetStroke clears per-stroke context. Tap state survives.
func (e *Engine) resetStroke() {
	clear(e.pointers)
	e.order = e.order[:0]
	e.peak = 0
	e.moved = false
	e.dragged = false
	e.scrolling = false
	e.longPressFired = false
	e.smoothX, e.smoothY = 0, 0
	e.spread = 0
	e.longPress.cancel()
}

// midpoint returns the center of the first two pointers.
func (e *Engine) midpoint() (float32, float32) {
	a := e.pointers[e.order[0]]
	b := e.pointers[e.order[1]]
	return (a.x + b.x) / 2, (a.y + b.y) / 2
}

// distance returns the gap between the first two pointers. Tracked, not yet used.
func (e *Engine) distance() float32 {
	a := e.pointers[e.order[0]]
	b := e.pointers[e.order[1]]
	return hypot(b.x-a.x, b.y-a.y)
}

// accelerate maps pointer speed in px/s to a gain.
func accelerate(speed float32) float32 {
	switch {
	case speed < 10:
		return 0.5
	case speed < 50:
		return 1.0
	case speed < 200:
		return 2.0
	default:
		return 3.0
	}
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func hypot(x, y float32) float32 {
	return float32(math.Hypot(float64(x), float64(y)))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
