package faceservice

// FaceLandmarks are the landmark groups returned per face, as [x, y] pairs in
// the coordinates of the posted image.
type FaceLandmarks struct {
	LeftEye  [][]float64 `json:"left_eye"`
	RightEye [][]float64 `json:"right_eye"`
	NoseTip  [][]float64 `json:"nose_tip"`
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int           `json:"face_index"`
	BBox      []float64     `json:"bbox"` // [top, right, bottom, left]
	Embedding []float32     `json:"embedding"`
	Landmarks FaceLandmarks `json:"landmarks"`
}

// FaceResponse represents the response from the face endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}
