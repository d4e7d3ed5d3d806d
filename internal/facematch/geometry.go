package facematch

import (
	"fmt"
	"image"
	"math"
)

// Box is a face bounding box in pixels.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// BoxFromTRBL converts a [top, right, bottom, left] bbox as returned by the
// face-analysis service.
func BoxFromTRBL(bbox []float64) (Box, error) {
	if len(bbox) != 4 {
		return Box{}, fmt.Errorf("bbox has %d values, want 4", len(bbox))
	}
	return Box{
		Top:    int(math.Round(bbox[0])),
		Right:  int(math.Round(bbox[1])),
		Bottom: int(math.Round(bbox[2])),
		Left:   int(math.Round(bbox[3])),
	}, nil
}

// Scale multiplies every coordinate by factor. Used to map boxes found on a
// downscaled frame back onto the full frame.
func (b Box) Scale(factor float64) Box {
	scale := func(v int) int { return int(math.Round(float64(v) * factor)) }
	return Box{
		Top:    scale(b.Top),
		Right:  scale(b.Right),
		Bottom: scale(b.Bottom),
		Left:   scale(b.Left),
	}
}

// Rect returns the box as an image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// ComputeIoU calculates Intersection over Union between two boxes.
func ComputeIoU(a, b Box) float64 {
	ra, rb := a.Rect(), b.Rect()
	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(ra.Dx()*ra.Dy()+rb.Dx()*rb.Dy()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}
