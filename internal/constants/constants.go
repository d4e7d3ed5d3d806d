// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Liveness challenge constants
const (
	// EARThreshold is the eye aspect ratio below which an eye counts as closed
	EARThreshold = 0.25

	// EARConsecFrames is the number of consecutive closed-eye frames that make a blink
	EARConsecFrames = 2

	// HeadTurnPixelThreshold is the horizontal nose movement (detection frame pixels)
	// required to accept a head turn
	HeadTurnPixelThreshold = 10

	// ChallengeTimeoutFrames is how many frames a head-turn challenge may stay open
	// (~2.3s at 30fps)
	ChallengeTimeoutFrames = 70
)

// Face matching constants
const (
	// DefaultMatchTolerance is the maximum Euclidean distance between a face
	// embedding and a gallery reference for the face to count as that person
	DefaultMatchTolerance = 0.6

	// DefaultDetectionScale is the factor frames are shrunk by before detection
	DefaultDetectionScale = 0.25

	// GallerySearchK is the number of HNSW neighbours inspected per match
	GallerySearchK = 4

	// DuplicateIoUThreshold is the box overlap above which two detections of
	// the same person in one frame are treated as one face
	DuplicateIoUThreshold = 0.5

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16
)

// Ledger constants
const (
	// DefaultAttendanceFile is the CSV ledger used when no SQL backend is configured
	DefaultAttendanceFile = "attendance.csv"

	// DefaultKnownFacesDir holds one reference image per known person
	DefaultKnownFacesDir = "known_faces"
)

// Display labels
const (
	// UnknownIdentity is shown for faces that match nobody in the gallery
	UnknownIdentity = "Unauthorized"

	StatusAttendanceMarked = "Attendance Marked"
	StatusLivenessVerified = "Liveness Verified"
	StatusBlinkToVerify    = "Blink to verify"
)
