package facematch

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/faceservice"
	"github.com/kozaktomas/face-attendance/internal/liveness"
)

// Recognizer detects faces in frames through the face-analysis service and
// names them with the gallery.
type Recognizer struct {
	analyzer FaceAnalyzer
	gallery  *Gallery
	scale    float64
}

// NewRecognizer creates a recognizer that shrinks frames by scale before detection.
// A scale outside (0, 1] selects the default.
func NewRecognizer(analyzer FaceAnalyzer, gallery *Gallery, scale float64) *Recognizer {
	if scale <= 0 || scale > 1 {
		scale = constants.DefaultDetectionScale
	}
	return &Recognizer{analyzer: analyzer, gallery: gallery, scale: scale}
}

// Scale returns the factor frames are shrunk by. Boxes and landmarks of the
// returned detections are in the shrunk frame's coordinates.
func (r *Recognizer) Scale() float64 {
	return r.scale
}

// Detect returns the faces of frame in the order the service reported them.
// Overlapping detections of the same person are collapsed into one.
func (r *Recognizer) Detect(ctx context.Context, frame capture.Frame) ([]Detection, error) {
	small := faceservice.Downscale(frame.Image, r.scale)
	data, err := faceservice.EncodeJPEG(small)
	if err != nil {
		return nil, err
	}

	resp, err := r.analyzer.ComputeFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("face analysis of frame %d: %w", frame.Seq, err)
	}

	detections := make([]Detection, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		detections = append(detections, r.toDetection(face))
	}
	return dropOverlappingDuplicates(detections), nil
}

// dropOverlappingDuplicates keeps one detection per known label among boxes
// overlapping by at least DuplicateIoUThreshold, preferring the closer match.
func dropOverlappingDuplicates(dets []Detection) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		dup := -1
		if d.Known {
			for i, kept := range out {
				if kept.Known && kept.Label == d.Label && ComputeIoU(kept.Box, d.Box) >= constants.DuplicateIoUThreshold {
					dup = i
					break
				}
			}
		}
		switch {
		case dup < 0:
			out = append(out, d)
		case d.Distance < out[dup].Distance:
			out[dup] = d
		}
	}
	return out
}

func (r *Recognizer) toDetection(face faceservice.FaceDetection) Detection {
	d := Detection{
		Label: Unknown,
		Landmarks: liveness.Landmarks{
			LeftEye:  toPoints(face.Landmarks.LeftEye),
			RightEye: toPoints(face.Landmarks.RightEye),
			NoseTip:  toPoints(face.Landmarks.NoseTip),
		},
	}
	// A bad box only affects drawing, the landmarks decide the rest.
	if box, err := BoxFromTRBL(face.BBox); err == nil {
		d.Box = box
	}

	if m, ok := r.gallery.Match(face.Embedding); ok {
		d.Label = m.Label
		d.Known = true
		d.Distance = m.Distance
	}
	return d
}

// toPoints converts [x, y] pairs. Any malformed pair drops the whole group so
// the tracker rejects the detection.
func toPoints(pairs [][]float64) []liveness.Point {
	if len(pairs) == 0 {
		return nil
	}
	points := make([]liveness.Point, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return nil
		}
		points = append(points, liveness.Point{X: p[0], Y: p[1]})
	}
	return points
}
