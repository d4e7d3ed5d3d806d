package liveness

import (
	"math/rand/v2"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Config holds the challenge thresholds.
type Config struct {
	EARThreshold           float64       `yaml:"ear_threshold"`
	EARConsecFrames        int           `yaml:"ear_consec_frames"`
	HeadTurnPixelThreshold float64       `yaml:"head_turn_pixel_threshold"`
	ChallengeTimeoutFrames int           `yaml:"challenge_timeout_frames"`
	ChallengeTimeout       time.Duration `yaml:"challenge_timeout"`  // wall-clock limit, 0 = frame count only
	IdleEvictFrames        uint64        `yaml:"idle_evict_frames"` // 0 = trackers live for the whole run
}

// DefaultConfig returns the thresholds the challenge was tuned with.
func DefaultConfig() Config {
	return Config{
		EARThreshold:           constants.EARThreshold,
		EARConsecFrames:        constants.EARConsecFrames,
		HeadTurnPixelThreshold: constants.HeadTurnPixelThreshold,
		ChallengeTimeoutFrames: constants.ChallengeTimeoutFrames,
	}
}

// DirectionPicker chooses the side of the next head-turn challenge.
type DirectionPicker func() Direction

// RandomDirection picks left or right with equal probability.
func RandomDirection() Direction {
	if rand.IntN(2) == 1 {
		return Right
	}
	return Left
}

// Tracker is the challenge state machine for one identity.
type Tracker struct {
	cfg  Config
	pick DirectionPicker

	state            State
	blinkCounter     int
	challengeCounter int
	referenceNoseX   float64
	challengeStarted time.Time
	lastSeen         uint64
}

// NewTracker creates a tracker in AwaitingBlink.
// A nil picker falls back to RandomDirection.
func NewTracker(cfg Config, pick DirectionPicker) *Tracker {
	if pick == nil {
		pick = RandomDirection
	}
	return &Tracker{cfg: cfg, pick: pick}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// BlinkCounter returns the number of consecutive closed-eye frames seen so far.
func (t *Tracker) BlinkCounter() int {
	return t.blinkCounter
}

// ChallengeCounter returns the frames elapsed in the current head-turn challenge.
func (t *Tracker) ChallengeCounter() int {
	return t.challengeCounter
}

// ReferenceNoseX returns the nose position recorded when the head-turn challenge started.
func (t *Tracker) ReferenceNoseX() float64 {
	return t.referenceNoseX
}

// LastSeen returns the frame sequence number of the last observation.
func (t *Tracker) LastSeen() uint64 {
	return t.lastSeen
}

// Reset puts the tracker back into AwaitingBlink with cleared counters.
func (t *Tracker) Reset() {
	t.state = State{Phase: AwaitingBlink}
	t.blinkCounter = 0
	t.challengeCounter = 0
	t.referenceNoseX = 0
	t.challengeStarted = time.Time{}
}

// Step advances the tracker by one frame.
//
// alreadyMarked short-circuits any state to Verified. A malformed observation
// returns an error and leaves the tracker untouched.
func (t *Tracker) Step(obs Observation, alreadyMarked bool) (Result, error) {
	if alreadyMarked {
		t.enter(State{Phase: Verified})
		t.lastSeen = obs.Frame
		return Result{Status: constants.StatusAttendanceMarked}, nil
	}

	if t.state.Phase == Verified {
		t.lastSeen = obs.Frame
		return Result{Status: constants.StatusLivenessVerified}, nil
	}

	if err := obs.Landmarks.Validate(); err != nil {
		return Result{}, err
	}

	if t.state.Phase == AwaitingBlink {
		ear, err := AverageEAR(obs.Landmarks)
		if err != nil {
			return Result{}, err
		}
		t.lastSeen = obs.Frame
		return t.stepBlink(obs, ear), nil
	}

	t.lastSeen = obs.Frame
	return t.stepHeadTurn(obs), nil
}

func (t *Tracker) stepBlink(obs Observation, ear float64) Result {
	res := Result{Status: constants.StatusBlinkToVerify}

	if ear < t.cfg.EARThreshold {
		t.blinkCounter++
		return res
	}

	if t.blinkCounter >= t.cfg.EARConsecFrames {
		t.enter(State{Phase: AwaitingHeadTurn, Direction: t.pick()})
		t.referenceNoseX = obs.Landmarks.NoseX()
		t.challengeStarted = obs.At
		res.BlinkConfirmed = true
	}
	t.blinkCounter = 0

	return res
}

func (t *Tracker) stepHeadTurn(obs Observation) Result {
	t.challengeCounter++
	if t.expired(obs) {
		t.Reset()
		return Result{TimedOut: true}
	}

	dir := t.state.Direction
	deltaX := obs.Landmarks.NoseX() - t.referenceNoseX
	turned := (dir == Right && deltaX > t.cfg.HeadTurnPixelThreshold) ||
		(dir == Left && deltaX < -t.cfg.HeadTurnPixelThreshold)

	if turned {
		t.enter(State{Phase: Verified})
		return Result{Status: constants.StatusLivenessVerified, VerifiedNow: true}
	}

	return Result{Status: "Turn head to the " + dir.String()}
}

// expired reports whether the open head-turn challenge ran out of time.
// The wall-clock limit applies only when configured and both timestamps are known.
func (t *Tracker) expired(obs Observation) bool {
	if t.cfg.ChallengeTimeout > 0 && !obs.At.IsZero() && !t.challengeStarted.IsZero() {
		return obs.At.Sub(t.challengeStarted) > t.cfg.ChallengeTimeout
	}
	return t.challengeCounter > t.cfg.ChallengeTimeoutFrames
}

// enter switches state, clearing counters that belong to the previous one.
func (t *Tracker) enter(s State) {
	t.state = s
	t.blinkCounter = 0
	t.challengeCounter = 0
	if s.Phase != AwaitingHeadTurn {
		t.challengeStarted = time.Time{}
	}
}
