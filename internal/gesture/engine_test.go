package gesture

import (
	"math"
	"testing"
)

func kinds(intents []Intent) []Kind {
	out := make([]Kind, 0, len(intents))
	for _, in := range intents {
		out = append(out, in.Kind)
	}
	return out
}

func count(intents []Intent, k Kind) int {
	n := 0
	for _, in := range intents {
		if in.Kind == k {
			n++
		}
	}
	return n
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

// TestSingleTap_LeftClickAfterWindow verifies a lone tap clicks once the double-tap window expires.
func TestSingleTap_LeftClickAfterWindow(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 100, 100, 1000), s)...)
	got = append(got, e.Handle(Up(1, 100, 100, 1050), s)...)
	if len(got) != 0 {
		t.Fatalf("expected no intents before the window expires, got %v", kinds(got))
	}

	at, ok := e.NextDeadline()
	if !ok || at != 1350 {
		t.Fatalf("expected deadline at 1350, got %d (armed=%v)", at, ok)
	}
	if out := e.Advance(1349); len(out) != 0 {
		t.Fatalf("expected nothing before deadline, got %v", kinds(out))
	}
	out := e.Advance(1350)
	if len(out) != 1 || out[0].Kind != KindLeftClick {
		t.Fatalf("expected one left click, got %v", kinds(out))
	}
	if out[0].X != 100 || out[0].Y != 100 {
		t.Fatalf("expected click at (100,100), got (%v,%v)", out[0].X, out[0].Y)
	}
	if out := e.Advance(5000); len(out) != 0 {
		t.Fatalf("expected no further intents, got %v", kinds(out))
	}
}

// TestDoubleTap_NoSpuriousLeftClick verifies two quick taps yield one double click and no left click.
func TestDoubleTap_NoSpuriousLeftClick(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 50, 50, 0), s)...)
	got = append(got, e.Handle(Up(1, 50, 50, 40), s)...)
	got = append(got, e.Handle(Down(2, 50, 50, 150), s)...)
	got = append(got, e.Handle(Up(2, 50, 50, 200), s)...)
	got = append(got, e.Advance(10_000)...)

	if count(got, KindDoubleClick) != 1 || count(got, KindLeftClick) != 0 {
		t.Fatalf("expected exactly one double click, got %v", kinds(got))
	}
	if _, ok := e.NextDeadline(); ok {
		t.Fatalf("expected no pending deadline after double click")
	}
}

// TestSecondTapAfterWindow_TwoLeftClicks verifies taps further apart than the window stay single clicks.
func TestSecondTapAfterWindow_TwoLeftClicks(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 0, 0, 0), s)...)
	got = append(got, e.Handle(Up(1, 0, 0, 10), s)...)
	got = append(got, e.Handle(Down(1, 0, 0, 400), s)...)
	got = append(got, e.Handle(Up(1, 0, 0, 420), s)...)
	got = append(got, e.Advance(10_000)...)

	if count(got, KindLeftClick) != 2 || count(got, KindDoubleClick) != 0 {
		t.Fatalf("expected two left clicks, got %v", kinds(got))
	}
}

// TestLongPress_EmitsRightClick verifies holding still past the timeout right-clicks once.
func TestLongPress_EmitsRightClick(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 10, 20, 0), s)
	// Sub-threshold jitter does not cancel the long press.
	if out := e.Handle(Move(PointerSample{ID: 1, X: 10.5, Y: 20, TimeMs: 100}), s); len(out) != 0 {
		t.Fatalf("expected jitter to be absorbed, got %v", kinds(out))
	}
	out := e.Advance(500)
	if len(out) != 1 || out[0].Kind != KindRightClick {
		t.Fatalf("expected right click from long press, got %v", kinds(out))
	}

	out = e.Handle(Up(1, 10.5, 20, 800), s)
	out = append(out, e.Advance(10_000)...)
	if len(out) != 0 {
		t.Fatalf("expected release after long press to stay silent, got %v", kinds(out))
	}
}

// TestLongPress_CancelledByMovement verifies movement past the threshold suppresses the long press.
func TestLongPress_CancelledByMovement(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 0, 0, 0), s)...)
	got = append(got, e.Handle(Move(PointerSample{ID: 1, X: 5, Y: 0, TimeMs: 100}), s)...)
	got = append(got, e.Advance(600)...)
	got = append(got, e.Handle(Up(1, 5, 0, 700), s)...)
	got = append(got, e.Advance(10_000)...)

	if count(got, KindRightClick) != 0 || count(got, KindLeftClick) != 0 {
		t.Fatalf("expected no clicks, got %v", kinds(got))
	}
}

// TestMove_EmitsSmoothedAcceleratedDelta verifies the smoothing and acceleration path.
func TestMove_EmitsSmoothedAcceleratedDelta(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 100, 100, 1000), s)...)
	got = append(got, e.Handle(Move(PointerSample{ID: 1, X: 105, Y: 100, TimeMs: 1100}), s)...)
	got = append(got, e.Handle(Up(1, 105, 100, 1100), s)...)
	got = append(got, e.Advance(10_000)...)

	if count(got, KindMove) != 1 {
		t.Fatalf("expected one move, got %v", kinds(got))
	}
	if count(got, KindLeftClick)+count(got, KindRightClick)+count(got, KindDoubleClick) != 0 {
		t.Fatalf("expected no clicks, got %v", kinds(got))
	}
	// raw 5px over 100ms = 50px/s -> gain 2.0; smoothed = 0.2*5 = 1.0.
	mv := got[0]
	if !near(mv.DX, 2.0) || mv.DY != 0 {
		t.Fatalf("expected move (2,0), got (%v,%v)", mv.DX, mv.DY)
	}
}

// TestMove_SensitivityScales verifies sensitivity multiplies the emitted delta and is clamped.
func TestMove_SensitivityScales(t *testing.T) {
	e := New()
	s := Settings{Sensitivity: 50, ScrollSensitivity: 1, Gestures: true}

	e.Handle(Down(1, 0, 0, 0), s)
	out := e.Handle(Move(PointerSample{ID: 1, X: 5, Y: 0, TimeMs: 100}), s)
	if len(out) != 1 || !near(out[0].DX, 2.0*5.0) {
		t.Fatalf("expected clamped sensitivity 5 to give dx=10, got %+v", out)
	}
}

// TestMove_SubThresholdIgnored verifies noise below the movement threshold emits nothing.
func TestMove_SubThresholdIgnored(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 0, 0, 0), s)
	if out := e.Handle(Move(PointerSample{ID: 1, X: 0.4, Y: 0.4, TimeMs: 16}), s); len(out) != 0 {
		t.Fatalf("expected no intents for noise, got %v", kinds(out))
	}
}

// TestTwoFingerScroll_EmitsScaledScroll verifies midpoint jumps scroll and suppress clicks.
func TestTwoFingerScroll_EmitsScaledScroll(t *testing.T) {
	e := New()
	s := Settings{Sensitivity: 1, ScrollSensitivity: 2, Gestures: true}

	var got []Intent
	got = append(got, e.Handle(Down(1, 100, 100, 0), s)...)
	got = append(got, e.Handle(Down(2, 200, 100, 10), s)...)
	got = append(got, e.Handle(Move(
		PointerSample{ID: 1, X: 100, Y: 85, TimeMs: 20},
		PointerSample{ID: 2, X: 200, Y: 85, TimeMs: 20},
	), s)...)

	if len(got) != 1 || got[0].Kind != KindScroll {
		t.Fatalf("expected one scroll, got %v", kinds(got))
	}
	if !near(got[0].DX, 0) || !near(got[0].DY, -30) {
		t.Fatalf("expected scroll (0,-30), got (%v,%v)", got[0].DX, got[0].DY)
	}

	got = got[:0]
	got = append(got, e.Handle(Up(1, 100, 85, 30), s)...)
	got = append(got, e.Handle(Up(2, 200, 85, 40), s)...)
	got = append(got, e.Advance(10_000)...)
	if len(got) != 0 {
		t.Fatalf("expected no clicks after scrolling, got %v", kinds(got))
	}
}

// TestTwoFingerSmallMove_NoScroll verifies midpoint moves under the threshold do not scroll.
func TestTwoFingerSmallMove_NoScroll(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 100, 100, 0), s)
	e.Handle(Down(2, 200, 100, 10), s)
	out := e.Handle(Move(
		PointerSample{ID: 1, X: 100, Y: 95, TimeMs: 20},
		PointerSample{ID: 2, X: 200, Y: 95, TimeMs: 20},
	), s)
	if len(out) != 0 {
		t.Fatalf("expected no scroll, got %v", kinds(out))
	}
}

// TestTwoFingerTap_RightClick verifies a quick two-finger tap right-clicks.
func TestTwoFingerTap_RightClick(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 100, 100, 0), s)...)
	got = append(got, e.Handle(Down(2, 150, 100, 10), s)...)
	got = append(got, e.Handle(Up(2, 150, 100, 80), s)...)
	got = append(got, e.Handle(Up(1, 100, 100, 90), s)...)
	got = append(got, e.Advance(10_000)...)

	if len(got) != 1 || got[0].Kind != KindRightClick {
		t.Fatalf("expected one right click, got %v", kinds(got))
	}
}

// TestTwoFingerSlowRelease_NoClick verifies a slow two-finger release is not a tap.
func TestTwoFingerSlowRelease_NoClick(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 100, 100, 0), s)...)
	got = append(got, e.Handle(Down(2, 150, 100, 10), s)...)
	got = append(got, e.Handle(Up(2, 150, 100, 400), s)...)
	got = append(got, e.Handle(Up(1, 100, 100, 410), s)...)
	got = append(got, e.Advance(10_000)...)

	if len(got) != 0 {
		t.Fatalf("expected no intents, got %v", kinds(got))
	}
}

// TestCancel_DiscardsPendingClick verifies cancel clears context and pending timers.
func TestCancel_DiscardsPendingClick(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 0, 0, 0), s)
	e.Handle(Up(1, 0, 0, 10), s)
	e.Handle(Down(1, 0, 0, 100), s)
	if out := e.Handle(Cancel(), s); len(out) != 0 {
		t.Fatalf("expected cancel to emit nothing, got %v", kinds(out))
	}
	if e.ActivePointers() != 0 {
		t.Fatalf("expected no tracked pointers after cancel")
	}
	if out := e.Advance(10_000); len(out) != 0 {
		t.Fatalf("expected no deferred intents after cancel, got %v", kinds(out))
	}
}

// TestMalformedInput_NoOp verifies unknown pointers and empty frames are ignored.
func TestMalformedInput_NoOp(t *testing.T) {
	e := New()
	s := DefaultSettings()

	if out := e.Handle(Up(7, 0, 0, 0), s); len(out) != 0 {
		t.Fatalf("expected no intents for unknown up, got %v", kinds(out))
	}
	if out := e.Handle(Move(PointerSample{ID: 7, X: 50, Y: 50, TimeMs: 5}), s); len(out) != 0 {
		t.Fatalf("expected no intents for unknown move, got %v", kinds(out))
	}
	if out := e.Handle(Event{Action: ActionMove}, s); len(out) != 0 {
		t.Fatalf("expected no intents for empty frame, got %v", kinds(out))
	}
	e.Handle(Down(1, 0, 0, 10), s)
	e.Handle(Down(1, 0, 0, 20), s)
	if e.ActivePointers() != 1 {
		t.Fatalf("expected duplicate down to keep one pointer, got %d", e.ActivePointers())
	}
}

// TestGesturesDisabled_NoClicks verifies disabling gestures keeps movement but drops clicks.
func TestGesturesDisabled_NoClicks(t *testing.T) {
	e := New()
	s := Settings{Sensitivity: 1, ScrollSensitivity: 1, Gestures: false}

	var got []Intent
	got = append(got, e.Handle(Down(1, 0, 0, 0), s)...)
	got = append(got, e.Handle(Up(1, 0, 0, 10), s)...)
	got = append(got, e.Handle(Down(1, 0, 0, 100), s)...)
	got = append(got, e.Handle(Move(PointerSample{ID: 1, X: 10, Y: 0, TimeMs: 150}), s)...)
	got = append(got, e.Advance(10_000)...)

	if count(got, KindMove) != 1 || len(got) != 1 {
		t.Fatalf("expected only a move, got %v", kinds(got))
	}
}

// TestLateEvent_FlushesDueDeadlines verifies overdue timers fire before the next frame.
func TestLateEvent_FlushesDueDeadlines(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 0, 0, 0), s)
	e.Handle(Up(1, 0, 0, 10), s)
	out := e.Handle(Down(1, 0, 0, 900), s)
	if len(out) != 1 || out[0].Kind != KindLeftClick {
		t.Fatalf("expected overdue left click before the new stroke, got %v", kinds(out))
	}
}

// TestRemainingFinger_DrivesCursor verifies lifting one of two fingers rebases the cursor stroke.
func TestRemainingFinger_DrivesCursor(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 0, 0, 0), s)
	e.Handle(Down(2, 100, 0, 10), s)
	e.Handle(Up(1, 0, 0, 20), s)
	out := e.Handle(Move(PointerSample{ID: 2, X: 110, Y: 0, TimeMs: 120}), s)
	if len(out) != 1 || out[0].Kind != KindMove || out[0].DX <= 0 {
		t.Fatalf("expected a positive move from the remaining finger, got %+v", out)
	}
	out = e.Handle(Up(2, 110, 0, 130), s)
	out = append(out, e.Advance(10_000)...)
	if len(out) != 0 {
		t.Fatalf("expected no click after dragging, got %v", kinds(out))
	}
}

// TestTwoFingerTap_StaggeredLift verifies jitter on the last finger does not cancel a two-finger tap.
func TestTwoFingerTap_StaggeredLift(t *testing.T) {
	e := New()
	s := DefaultSettings()

	var got []Intent
	got = append(got, e.Handle(Down(1, 100, 100, 0), s)...)
	got = append(got, e.Handle(Down(2, 160, 100, 10), s)...)
	got = append(got, e.Handle(Up(2, 160, 100, 60), s)...)
	got = append(got, e.Handle(Move(PointerSample{ID: 1, X: 100.3, Y: 100, TimeMs: 70}), s)...)
	got = append(got, e.Handle(Move(PointerSample{ID: 1, X: 100.3, Y: 100, TimeMs: 80}), s)...)
	got = append(got, e.Handle(Up(1, 100.3, 100, 90), s)...)
	got = append(got, e.Advance(10_000)...)

	if len(got) != 1 || got[0].Kind != KindRightClick {
		t.Fatalf("expected one two-finger right click, got %v", kinds(got))
	}
}

// TestRemainingFinger_SubThresholdIgnored verifies the noise gate applies again after a finger lifts.
func TestRemainingFinger_SubThresholdIgnored(t *testing.T) {
	e := New()
	s := DefaultSettings()

	e.Handle(Down(1, 0, 0, 0), s)
	e.Handle(Down(2, 100, 0, 10), s)
	e.Handle(Up(1, 0, 0, 20), s)
	if out := e.Handle(Move(PointerSample{ID: 2, X: 100.5, Y: 0.5, TimeMs: 30}), s); len(out) != 0 {
		t.Fatalf("expected sub-threshold jitter to be absorbed, got %v", kinds(out))
	}
}

// TestAccelerate_Curve verifies the speed to gain table.
func TestAccelerate_Curve(t *testing.T) {
	cases := []struct {
		speed float32
		want  float32
	}{
		{0, 0.5}, {9.9, 0.5}, {10, 1}, {49, 1}, {50, 2}, {199, 2}, {200, 3}, {5000, 3},
	}
	for _, c := range cases {
		if got := accelerate(c.speed); got != c.want {
			t.Fatalf("accelerate(%v) = %v, want %v", c.speed, got, c.want)
		}
	}
}

// TestClampSensitivity verifies sensitivity bounds.
func TestClampSensitivity(t *testing.T) {
	if ClampSensitivity(0) != 0.1 || ClampSensitivity(9) != 5 || ClampSensitivity(1.5) != 1.5 {
		t.Fatalf("unexpected cursor clamp")
	}
	if ClampScrollSensitivity(0) != 0.1 || ClampScrollSensitivity(9) != 3 {
		t.Fatalf("unexpected scroll clamp")
	}
}
