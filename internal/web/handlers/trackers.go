package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/liveness"
)

// TrackerReader exposes the liveness trackers of a running loop.
type TrackerReader interface {
	Snapshot() []liveness.TrackerStatus
}

// TrackersHandler serves the state of every liveness tracker.
type TrackersHandler struct {
	reader TrackerReader
}

// NewTrackersHandler creates a new trackers handler. reader may be nil.
func NewTrackersHandler(reader TrackerReader) *TrackersHandler {
	return &TrackersHandler{reader: reader}
}

// TrackersResponse lists tracker states sorted by identity.
type TrackersResponse struct {
	Running  bool                     `json:"running"`
	Trackers []liveness.TrackerStatus `json:"trackers"`
}

// List returns the tracker states. Without a running loop the list is empty.
func (h *TrackersHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := TrackersResponse{Trackers: []liveness.TrackerStatus{}}
	if h.reader != nil {
		resp.Running = true
		resp.Trackers = append(resp.Trackers, h.reader.Snapshot()...)
	}
	respondJSON(w, http.StatusOK, resp)
}
