package liveness

import (
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// face builds landmarks with both eyes at the given aspect ratio and the nose at noseX.
func face(ear, noseX float64) Landmarks {
	return Landmarks{
		LeftEye:  eyeWithEAR(ear, 0, 0),
		RightEye: eyeWithEAR(ear, 30, 0),
		NoseTip:  []Point{{X: noseX, Y: 20}},
	}
}

// sequence returns a picker that hands out dirs in order and repeats the last one.
func sequence(dirs ...Direction) DirectionPicker {
	i := 0
	return func() Direction {
		d := dirs[min(i, len(dirs)-1)]
		i++
		return d
	}
}

// driver feeds observations with increasing frame numbers.
type driver struct {
	t       *testing.T
	tracker *Tracker
	frame   uint64
}

func (d *driver) step(l Landmarks) Result {
	d.t.Helper()
	d.frame++
	res, err := d.tracker.Step(Observation{Landmarks: l, Frame: d.frame}, false)
	if err != nil {
		d.t.Fatalf("Step() frame %d error = %v", d.frame, err)
	}
	return res
}

// blink runs closed frames followed by one open frame at noseX.
func (d *driver) blink(closed int, noseX float64) Result {
	d.t.Helper()
	for range closed {
		d.step(face(0.10, noseX))
	}
	return d.step(face(0.40, noseX))
}

func TestTracker_BlinkThenRightTurnVerifies(t *testing.T) {
	d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(Right))}

	for i := range 3 {
		res := d.step(face(0.10, 100))
		if res.Status != constants.StatusBlinkToVerify {
			t.Errorf("closed frame %d status = %q, want %q", i, res.Status, constants.StatusBlinkToVerify)
		}
	}
	if d.tracker.BlinkCounter() != 3 {
		t.Fatalf("BlinkCounter() = %d, want 3", d.tracker.BlinkCounter())
	}

	res := d.step(face(0.40, 100))
	if !res.BlinkConfirmed {
		t.Fatal("expected blink to be confirmed on the open-eye frame")
	}
	want := State{Phase: AwaitingHeadTurn, Direction: Right}
	if d.tracker.State() != want {
		t.Fatalf("State() = %v, want %v", d.tracker.State(), want)
	}
	if d.tracker.BlinkCounter() != 0 || d.tracker.ChallengeCounter() != 0 {
		t.Errorf("counters = (%d, %d), want (0, 0)", d.tracker.BlinkCounter(), d.tracker.ChallengeCounter())
	}
	if d.tracker.ReferenceNoseX() != 100 {
		t.Errorf("ReferenceNoseX() = %v, want 100", d.tracker.ReferenceNoseX())
	}

	res = d.step(face(0.40, 105))
	if res.Status != "Turn head to the right" || res.VerifiedNow {
		t.Errorf("small move result = %+v, want pending right turn", res)
	}

	res = d.step(face(0.40, 115))
	if !res.VerifiedNow {
		t.Fatal("expected verification on +15px right turn")
	}
	if res.Status != constants.StatusLivenessVerified {
		t.Errorf("status = %q, want %q", res.Status, constants.StatusLivenessVerified)
	}
	if d.tracker.State().Phase != Verified {
		t.Errorf("State() = %v, want verified", d.tracker.State())
	}

	// Verified is sticky and only signals once.
	res = d.step(face(0.10, 40))
	if res.VerifiedNow || res.Status != constants.StatusLivenessVerified {
		t.Errorf("after verification result = %+v", res)
	}
}

func TestTracker_TurnDirection(t *testing.T) {
	tests := []struct {
		name     string
		dir      Direction
		noseX    float64
		verified bool
	}{
		{name: "left turn accepted", dir: Left, noseX: 85, verified: true},
		{name: "left challenge ignores right turn", dir: Left, noseX: 115, verified: false},
		{name: "right challenge ignores left turn", dir: Right, noseX: 85, verified: false},
		{name: "exactly threshold is not enough", dir: Right, noseX: 110, verified: false},
		{name: "just past threshold", dir: Right, noseX: 110.5, verified: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(tt.dir))}
			d.blink(2, 100)

			res := d.step(face(0.40, tt.noseX))
			if res.VerifiedNow != tt.verified {
				t.Errorf("VerifiedNow = %v, want %v (result %+v)", res.VerifiedNow, tt.verified, res)
			}
			if !tt.verified && res.Status != "Turn head to the "+tt.dir.String() {
				t.Errorf("status = %q", res.Status)
			}
		})
	}
}

func TestTracker_AlreadyMarkedShortCircuits(t *testing.T) {
	for _, setup := range []struct {
		name string
		prep func(d *driver)
	}{
		{name: "fresh tracker", prep: func(*driver) {}},
		{name: "mid blink", prep: func(d *driver) { d.step(face(0.1, 100)) }},
		{name: "mid head turn", prep: func(d *driver) { d.blink(2, 100) }},
	} {
		t.Run(setup.name, func(t *testing.T) {
			d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(Left))}
			setup.prep(d)

			// No landmarks at all: the fast path must not look at them.
			res, err := d.tracker.Step(Observation{Frame: 99}, true)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if res.Status != constants.StatusAttendanceMarked || res.VerifiedNow {
				t.Errorf("result = %+v, want Attendance Marked without verification", res)
			}
			if d.tracker.State().Phase != Verified {
				t.Errorf("State() = %v, want verified", d.tracker.State())
			}
		})
	}
}

func TestTracker_NoBlinkNeverLeavesAwaitingBlink(t *testing.T) {
	d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(Right))}

	// Single closed frames separated by open ones never reach EARConsecFrames.
	for range 50 {
		d.step(face(0.10, 100))
		res := d.step(face(0.40, 100))
		if res.BlinkConfirmed {
			t.Fatal("blink confirmed from a single closed frame")
		}
	}
	// Eyes always open.
	for range 50 {
		d.step(face(0.30, 130))
	}
	if d.tracker.State().Phase != AwaitingBlink {
		t.Errorf("State() = %v, want awaiting_blink", d.tracker.State())
	}
}

func TestTracker_EARAtThresholdCountsAsOpen(t *testing.T) {
	d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(Right))}
	d.step(face(0.10, 100))
	d.step(face(0.10, 100))

	res := d.step(face(constants.EARThreshold, 100))
	if !res.BlinkConfirmed {
		t.Errorf("EAR equal to threshold should end the blink, got %+v", res)
	}
}

func TestTracker_TimeoutResetsAndRestarts(t *testing.T) {
	d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(Right, Left))}
	d.blink(3, 100)

	for i := 1; i <= constants.ChallengeTimeoutFrames; i++ {
		res := d.step(face(0.40, 100))
		if res.TimedOut {
			t.Fatalf("timed out early at challenge frame %d", i)
		}
	}
	if d.tracker.ChallengeCounter() != constants.ChallengeTimeoutFrames {
		t.Fatalf("ChallengeCounter() = %d, want %d", d.tracker.ChallengeCounter(), constants.ChallengeTimeoutFrames)
	}

	res := d.step(face(0.40, 100))
	if !res.TimedOut {
		t.Fatalf("expected timeout on frame %d, got %+v", constants.ChallengeTimeoutFrames+1, res)
	}
	if res.Status != "" || res.VerifiedNow {
		t.Errorf("timed out frame must not draw or verify, got %+v", res)
	}
	if d.tracker.State().Phase != AwaitingBlink {
		t.Fatalf("State() = %v, want awaiting_blink", d.tracker.State())
	}
	if d.tracker.BlinkCounter() != 0 || d.tracker.ChallengeCounter() != 0 {
		t.Errorf("counters = (%d, %d), want (0, 0)", d.tracker.BlinkCounter(), d.tracker.ChallengeCounter())
	}

	// A turn now must not count: a new blink is needed first.
	res = d.step(face(0.40, 130))
	if res.VerifiedNow || d.tracker.State().Phase != AwaitingBlink {
		t.Fatalf("turn without blink changed state: %+v, %v", res, d.tracker.State())
	}

	res = d.blink(2, 50)
	if !res.BlinkConfirmed {
		t.Fatal("expected a fresh blink to restart the challenge")
	}
	want := State{Phase: AwaitingHeadTurn, Direction: Left}
	if d.tracker.State() != want {
		t.Errorf("State() = %v, want %v", d.tracker.State(), want)
	}
	if d.tracker.ReferenceNoseX() != 50 {
		t.Errorf("ReferenceNoseX() = %v, want fresh value 50", d.tracker.ReferenceNoseX())
	}
	if d.tracker.ChallengeCounter() != 0 {
		t.Errorf("ChallengeCounter() = %d, want 0", d.tracker.ChallengeCounter())
	}
}

func TestTracker_WallClockTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChallengeTimeout = 2 * time.Second
	tr := NewTracker(cfg, sequence(Right))
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	step := func(frame uint64, at time.Duration, l Landmarks) Result {
		t.Helper()
		res, err := tr.Step(Observation{Landmarks: l, Frame: frame, At: start.Add(at)}, false)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		return res
	}

	step(1, 0, face(0.1, 100))
	step(2, 30*time.Millisecond, face(0.1, 100))
	step(3, 60*time.Millisecond, face(0.4, 100))

	// Far more frames than the frame limit, but inside the wall-clock window.
	for i := range uint64(200) {
		if res := step(4+i, 60*time.Millisecond+time.Duration(i)*time.Millisecond, face(0.4, 100)); res.TimedOut {
			t.Fatalf("timed out at frame %d inside the time window", 4+i)
		}
	}

	res := step(300, 2100*time.Millisecond, face(0.4, 100))
	if !res.TimedOut {
		t.Errorf("expected wall-clock timeout, got %+v", res)
	}
}

func TestTracker_MalformedObservationLeavesStateUntouched(t *testing.T) {
	d := &driver{t: t, tracker: NewTracker(DefaultConfig(), sequence(Right))}
	d.step(face(0.1, 100))

	bad := []Landmarks{
		{LeftEye: eyeWithEAR(0.1, 0, 0)[:4], RightEye: eyeWithEAR(0.1, 30, 0), NoseTip: []Point{{X: 1}}},
		{LeftEye: eyeWithEAR(0.1, 0, 0), RightEye: eyeWithEAR(0.1, 30, 0)},
		{LeftEye: make([]Point, 6), RightEye: eyeWithEAR(0.1, 30, 0), NoseTip: []Point{{X: 1}}},
	}
	for i, l := range bad {
		_, err := d.tracker.Step(Observation{Landmarks: l, Frame: 50}, false)
		if !errors.Is(err, ErrMalformedDetection) {
			t.Errorf("case %d: error = %v, want ErrMalformedDetection", i, err)
		}
	}
	if d.tracker.BlinkCounter() != 1 {
		t.Errorf("BlinkCounter() = %d, want 1", d.tracker.BlinkCounter())
	}
	if d.tracker.LastSeen() != 1 {
		t.Errorf("LastSeen() = %d, want 1", d.tracker.LastSeen())
	}

	// Malformed frames during a challenge do not advance the timeout counter.
	d.blink(1, 100)
	if d.tracker.State().Phase != AwaitingHeadTurn {
		t.Fatalf("State() = %v, want awaiting head turn", d.tracker.State())
	}
	_, err := d.tracker.Step(Observation{Landmarks: Landmarks{}, Frame: 60}, false)
	if !errors.Is(err, ErrMalformedDetection) {
		t.Fatalf("error = %v, want ErrMalformedDetection", err)
	}
	if d.tracker.ChallengeCounter() != 0 {
		t.Errorf("ChallengeCounter() = %d, want 0", d.tracker.ChallengeCounter())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{State{Phase: AwaitingBlink}, "awaiting_blink"},
		{State{Phase: AwaitingHeadTurn, Direction: Left}, "awaiting_head_turn_left"},
		{State{Phase: AwaitingHeadTurn, Direction: Right}, "awaiting_head_turn_right"},
		{State{Phase: Verified}, "verified"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State.String() = %q, want %q", got, tt.expected)
		}
	}
}
