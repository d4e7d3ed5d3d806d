// Package liveness decides whether a recognised face belongs to a live person.
// Each identity walks through a blink challenge followed by a randomly chosen
// head-turn challenge, driven one video frame at a time.
package liveness

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedDetection is returned when a detection lacks the landmarks
	// needed for evaluation. The face is skipped for that frame.
	ErrMalformedDetection = errors.New("malformed detection")

	// ErrDegenerateEye is returned for an eye contour with zero width.
	ErrDegenerateEye = fmt.Errorf("%w: zero-width eye contour", ErrMalformedDetection)
)

// EyePoints is the number of contour points per eye, ordered p0..p5 with
// p0/p3 at the corners and p1,p2,p4,p5 on the lids.
const EyePoints = 6

// Point is a 2D landmark in detection frame coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks holds the landmark groups the challenges look at.
type Landmarks struct {
	LeftEye  []Point `json:"left_eye"`
	RightEye []Point `json:"right_eye"`
	NoseTip  []Point `json:"nose_tip"`
}

// Validate checks that every group needed by the tracker is present.
func (l Landmarks) Validate() error {
	if len(l.LeftEye) != EyePoints {
		return fmt.Errorf("%w: left eye has %d points, want %d", ErrMalformedDetection, len(l.LeftEye), EyePoints)
	}
	if len(l.RightEye) != EyePoints {
		return fmt.Errorf("%w: right eye has %d points, want %d", ErrMalformedDetection, len(l.RightEye), EyePoints)
	}
	if len(l.NoseTip) == 0 {
		return fmt.Errorf("%w: missing nose tip", ErrMalformedDetection)
	}
	return nil
}

// NoseX returns the horizontal coordinate of the first nose tip point.
func (l Landmarks) NoseX() float64 {
	return l.NoseTip[0].X
}

// Observation is what a tracker sees of its face in one frame.
type Observation struct {
	Landmarks Landmarks
	Frame     uint64    // frame sequence number
	At        time.Time // capture time, optional
}

// Direction is the side a head-turn challenge asks for.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Right {
		return "right"
	}
	return "left"
}

// Phase is the stage of the challenge a tracker is in.
type Phase int

const (
	AwaitingBlink Phase = iota
	AwaitingHeadTurn
	Verified
)

// State is the tracker state. Direction is only meaningful in AwaitingHeadTurn.
type State struct {
	Phase     Phase
	Direction Direction
}

func (s State) String() string {
	switch s.Phase {
	case AwaitingHeadTurn:
		return "awaiting_head_turn_" + s.Direction.String()
	case Verified:
		return "verified"
	default:
		return "awaiting_blink"
	}
}

// Result is the outcome of a single Step.
type Result struct {
	Status         string // text to show next to the face, empty when nothing should be drawn
	VerifiedNow    bool   // the head-turn challenge was passed on this frame
	BlinkConfirmed bool   // a blink completed and a head-turn challenge started
	TimedOut       bool   // the head-turn challenge expired and the tracker was reset
}
