package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceReader reads recorded attendance.
type AttendanceReader interface {
	Today() time.Time
	RecordsForDate(ctx context.Context, date string) ([]ledger.Record, error)
}

// AttendanceHandler serves the attendance of a day.
type AttendanceHandler struct {
	reader AttendanceReader
	log    logrus.FieldLogger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(reader AttendanceReader, log logrus.FieldLogger) *AttendanceHandler {
	return &AttendanceHandler{reader: reader, log: log}
}

// AttendanceResponse lists the people recorded on a day.
type AttendanceResponse struct {
	Date    string          `json:"date"`
	Count   int             `json:"count"`
	Records []ledger.Record `json:"records"`
}

// List returns the records of ?date=DD-MM-YY, today when omitted.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance ledger not available")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.reader.Today().Format(ledger.DateLayout)
	} else if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected DD-MM-YY")
		return
	}

	records, err := h.reader.RecordsForDate(r.Context(), date)
	if err != nil {
		h.log.WithError(err).WithField("date", sanitizeForLog(date)).Error("Failed to read attendance")
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}

	respondJSON(w, http.StatusOK, AttendanceResponse{
		Date:    date,
		Count:   len(records),
		Records: records,
	})
}
