// Package facematch turns face-analysis results into recognised detections by
// matching face embeddings against a gallery of known people.
package facematch

import (
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/liveness"
)

// Unknown is the label given to faces that match nobody in the gallery.
const Unknown = constants.UnknownIdentity

// Detection is one face found in a frame.
type Detection struct {
	Label     string             // gallery label, or Unknown
	Known     bool               // false when no gallery entry was close enough
	Distance  float64            // distance to the matched reference, 0 when unknown
	Box       Box                // detection frame coordinates
	Landmarks liveness.Landmarks // detection frame coordinates
}
