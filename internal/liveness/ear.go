package liveness

import (
	"fmt"
	"math"
)

// distance returns the Euclidean distance between two points.
func distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EyeAspectRatio computes the eye aspect ratio of a 6-point eye contour.
// EAR = (||p1-p5|| + ||p2-p4||) / (2 * ||p0-p3||)
// Open eyes sit around 0.3, a closed eye drops towards 0.
func EyeAspectRatio(eye []Point) (float64, error) {
	if len(eye) != EyePoints {
		return 0, fmt.Errorf("%w: eye has %d points, want %d", ErrMalformedDetection, len(eye), EyePoints)
	}

	a := distance(eye[1], eye[5])
	b := distance(eye[2], eye[4])
	c := distance(eye[0], eye[3])
	if c == 0 {
		return 0, ErrDegenerateEye
	}

	return (a + b) / (2.0 * c), nil
}

// AverageEAR returns the mean eye aspect ratio of both eyes.
func AverageEAR(l Landmarks) (float64, error) {
	left, err := EyeAspectRatio(l.LeftEye)
	if err != nil {
		return 0, fmt.Errorf("left eye: %w", err)
	}
	right, err := EyeAspectRatio(l.RightEye)
	if err != nil {
		return 0, fmt.Errorf("right eye: %w", err)
	}
	return (left + right) / 2.0, nil
}
