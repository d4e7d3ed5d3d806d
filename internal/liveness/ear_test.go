package liveness

import (
	"errors"
	"math"
	"testing"
)

// eyeWithEAR builds a 10px wide eye contour whose aspect ratio is ear.
func eyeWithEAR(ear, dx, dy float64) []Point {
	h := ear * 10
	return []Point{
		{X: 0 + dx, Y: 0 + dy},
		{X: 3 + dx, Y: -h/2 + dy},
		{X: 7 + dx, Y: -h/2 + dy},
		{X: 10 + dx, Y: 0 + dy},
		{X: 7 + dx, Y: h/2 + dy},
		{X: 3 + dx, Y: h/2 + dy},
	}
}

func TestEyeAspectRatio(t *testing.T) {
	tests := []struct {
		name     string
		eye      []Point
		expected float64
	}{
		{
			name:     "open eye",
			eye:      eyeWithEAR(0.3, 0, 0),
			expected: 0.3,
		},
		{
			name:     "closed eye",
			eye:      eyeWithEAR(0, 0, 0),
			expected: 0,
		},
		{
			name: "canonical hexagon",
			eye: []Point{
				{X: 0, Y: 0}, {X: 1, Y: -1}, {X: 2, Y: -1},
				{X: 3, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1},
			},
			expected: 4.0 / 6.0, // (2 + 2) / (2 * 3)
		},
		{
			name: "asymmetric lids",
			eye: []Point{
				{X: 0, Y: 0}, {X: 1, Y: -1}, {X: 3, Y: -2},
				{X: 4, Y: 0}, {X: 3, Y: 2}, {X: 1, Y: 1},
			},
			expected: (2.0 + 4.0) / 8.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EyeAspectRatio(tt.eye)
			if err != nil {
				t.Fatalf("EyeAspectRatio() error = %v", err)
			}
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("EyeAspectRatio() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestEyeAspectRatio_TranslationInvariant(t *testing.T) {
	base, err := EyeAspectRatio(eyeWithEAR(0.27, 0, 0))
	if err != nil {
		t.Fatalf("EyeAspectRatio() error = %v", err)
	}

	offsets := [][2]float64{{5, 5}, {-120, 40}, {640.5, 480.25}, {0, -1000}}
	for _, off := range offsets {
		got, err := EyeAspectRatio(eyeWithEAR(0.27, off[0], off[1]))
		if err != nil {
			t.Fatalf("EyeAspectRatio(offset %v) error = %v", off, err)
		}
		if math.Abs(got-base) > 1e-9 {
			t.Errorf("EyeAspectRatio(offset %v) = %v, want %v", off, got, base)
		}
	}
}

func TestEyeAspectRatio_Errors(t *testing.T) {
	tests := []struct {
		name      string
		eye       []Point
		wantCause error
	}{
		{
			name:      "too few points",
			eye:       eyeWithEAR(0.3, 0, 0)[:5],
			wantCause: ErrMalformedDetection,
		},
		{
			name:      "empty",
			eye:       nil,
			wantCause: ErrMalformedDetection,
		},
		{
			name: "zero width",
			eye: []Point{
				{X: 5, Y: 5}, {X: 4, Y: 4}, {X: 6, Y: 4},
				{X: 5, Y: 5}, {X: 6, Y: 6}, {X: 4, Y: 6},
			},
			wantCause: ErrDegenerateEye,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EyeAspectRatio(tt.eye)
			if !errors.Is(err, tt.wantCause) {
				t.Fatalf("EyeAspectRatio() error = %v, want %v", err, tt.wantCause)
			}
			if !errors.Is(err, ErrMalformedDetection) {
				t.Errorf("error %v should count as a malformed detection", err)
			}
		})
	}
}

func TestAverageEAR(t *testing.T) {
	l := Landmarks{
		LeftEye:  eyeWithEAR(0.2, 0, 0),
		RightEye: eyeWithEAR(0.4, 30, 0),
		NoseTip:  []Point{{X: 15, Y: 20}},
	}

	got, err := AverageEAR(l)
	if err != nil {
		t.Fatalf("AverageEAR() error = %v", err)
	}
	if math.Abs(got-0.3) > 1e-9 {
		t.Errorf("AverageEAR() = %v, want 0.3", got)
	}
}
