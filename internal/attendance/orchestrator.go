// Package attendance runs the per-frame loop that recognises faces, drives
// each person's liveness challenge and records verified attendance.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/liveness"
)

// IdentitySource finds and names the faces of a frame.
type IdentitySource interface {
	Detect(ctx context.Context, frame capture.Frame) ([]facematch.Detection, error)
}

// Ledger is the part of the attendance ledger the loop needs.
type Ledger interface {
	AlreadyMarked(name string, date time.Time) bool
	Today() time.Time
	Mark(ctx context.Context, name string) (ledger.MarkResult, error)
}

// Renderer shows a processed frame with its annotations.
type Renderer interface {
	Render(frame capture.Frame, annotations []Annotation) error
}

// Annotation is what gets drawn for one face.
type Annotation struct {
	Label  string        `json:"label"`
	Known  bool          `json:"known"`
	Box    facematch.Box `json:"box"`              // full frame coordinates
	Status string        `json:"status,omitempty"` // tracker status, empty for unknown or malformed faces
	State  string        `json:"state,omitempty"`
}

// Config controls the orchestrator.
type Config struct {
	// DetectionScale is the factor the identity source shrank frames by.
	// Boxes are mapped back by its inverse. 0 or 1 means no scaling.
	DetectionScale float64
	// DegradeOnLedgerError keeps recognising faces after a ledger write
	// failure instead of stopping, with attendance marking disabled.
	DegradeOnLedgerError bool
	// SessionID tags log entries of this run. Generated when nil.
	SessionID uuid.UUID
}

// Stats summarises a run.
type Stats struct {
	Frames     uint64
	Detections uint64
	Unknown    uint64
	Malformed  uint64
	Marked     []ledger.Record
}

// Orchestrator processes frames one at a time.
type Orchestrator struct {
	identities IdentitySource
	ledger     Ledger
	trackers   *liveness.Registry
	cfg        Config
	log        logrus.FieldLogger

	mu             sync.Mutex
	stats          Stats
	markingStopped bool
}

// New creates an orchestrator.
func New(identities IdentitySource, l Ledger, trackers *liveness.Registry, cfg Config, log logrus.FieldLogger) *Orchestrator {
	if cfg.SessionID == uuid.Nil {
		cfg.SessionID = uuid.New()
	}
	return &Orchestrator{
		identities: identities,
		ledger:     l,
		trackers:   trackers,
		cfg:        cfg,
		log:        log.WithField("session", cfg.SessionID.String()),
	}
}

// SessionID returns the id of this run.
func (o *Orchestrator) SessionID() uuid.UUID {
	return o.cfg.SessionID
}

// Trackers returns the tracker registry.
func (o *Orchestrator) Trackers() *liveness.Registry {
	return o.trackers
}

// Stats returns a copy of the run statistics.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	s.Marked = append([]ledger.Record(nil), o.stats.Marked...)
	return s
}

// MarkingStopped reports whether a ledger failure disabled marking.
func (o *Orchestrator) MarkingStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.markingStopped
}

// ProcessFrame handles one frame. Detections are processed in order.
// A returned error wrapping ledger.ErrPersist means a verified person could
// not be recorded; any other error comes from the identity source.
func (o *Orchestrator) ProcessFrame(ctx context.Context, frame capture.Frame) ([]Annotation, error) {
	detections, err := o.identities.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.stats.Frames++
	o.stats.Detections += uint64(len(detections))
	o.mu.Unlock()

	today := o.ledger.Today()
	annotations := make([]Annotation, 0, len(detections))
	var ledgerErr error

	for _, det := range detections {
		ann := Annotation{Label: det.Label, Known: det.Known, Box: o.toFrame(det.Box)}

		if !det.Known {
			ann.Label = facematch.Unknown
			o.count(func(s *Stats) { s.Unknown++ })
			annotations = append(annotations, ann)
			continue
		}

		obs := liveness.Observation{Landmarks: det.Landmarks, Frame: frame.Seq, At: frame.At}
		res, state, err := o.trackers.Step(det.Label, obs, o.ledger.AlreadyMarked(det.Label, today))
		if err != nil {
			if !errors.Is(err, liveness.ErrMalformedDetection) {
				return nil, err
			}
			o.count(func(s *Stats) { s.Malformed++ })
			o.log.WithError(err).WithField("identity", det.Label).Debug("Skipping liveness check for malformed detection")
			annotations = append(annotations, ann)
			continue
		}

		switch {
		case res.TimedOut:
			o.log.WithField("identity", det.Label).Infof("Challenge timed out for %s. Resetting.", det.Label)
			continue
		case res.BlinkConfirmed:
			o.log.WithFields(logrus.Fields{"identity": det.Label, "state": state.String()}).
				Infof("Blink confirmed for %s.", det.Label)
		case res.VerifiedNow:
			o.log.WithField("identity", det.Label).Infof("Head turn confirmed for %s.", det.Label)
			recorded, err := o.mark(ctx, det.Label)
			if err != nil {
				ledgerErr = err
			}
			if !recorded {
				res.Status = constants.StatusBlinkToVerify
				state = liveness.State{Phase: liveness.AwaitingBlink}
			}
		}

		ann.Status = res.Status
		ann.State = state.String()
		annotations = append(annotations, ann)
	}

	if ledgerErr != nil && !o.cfg.DegradeOnLedgerError {
		return annotations, ledgerErr
	}
	return annotations, nil
}

// mark records attendance for name and reports whether the ledger holds a
// record for them. When it does not, the person's tracker is reset so they
// are not shown as verified without a record.
func (o *Orchestrator) mark(ctx context.Context, name string) (bool, error) {
	if o.MarkingStopped() {
		o.log.WithField("identity", name).Warn("Attendance marking is disabled, not recording")
		o.trackers.Reset(name)
		return false, nil
	}

	res, err := o.ledger.Mark(ctx, name)
	if err != nil {
		o.log.WithError(err).WithField("identity", name).Error("Failed to record attendance")
		o.trackers.Reset(name)
		if o.cfg.DegradeOnLedgerError {
			o.mu.Lock()
			o.markingStopped = true
			o.mu.Unlock()
			o.log.Warn("Attendance marking disabled for the rest of the run, recognition continues")
		}
		return false, err
	}

	if res.Newly {
		o.count(func(s *Stats) { s.Marked = append(s.Marked, res.Record) })
		o.log.WithFields(logrus.Fields{"identity": name, "date": res.Record.Date}).
			Infof("Attendance marked for %s at %s", name, res.Record.Time)
	}
	return true, nil
}

func (o *Orchestrator) toFrame(b facematch.Box) facematch.Box {
	if o.cfg.DetectionScale <= 0 || o.cfg.DetectionScale == 1 {
		return b
	}
	return b.Scale(1 / o.cfg.DetectionScale)
}

func (o *Orchestrator) count(fn func(*Stats)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.stats)
}

// Run processes frames from source until the context is cancelled or the
// source ends. A cancelled context and an exhausted source are a clean stop
// and return nil. Source failures are fatal and returned wrapped in
// capture.ErrSourceUnavailable. Ledger failures are returned unless
// degradation is enabled.
func (o *Orchestrator) Run(ctx context.Context, source capture.Source, renderer Renderer) error {
	o.log.Info("Attendance loop started")
	defer func() {
		o.log.WithField("frames", o.Stats().Frames).Info("Attendance loop stopped")
	}()

	for {
		frame, err := source.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			o.log.Info("Frame source exhausted")
			return nil
		case errors.Is(err, capture.ErrSourceUnavailable):
			o.log.WithError(err).Error("Frame source failed")
			return err
		default:
			o.log.WithError(err).Error("Frame source failed")
			return fmt.Errorf("%w: %w", capture.ErrSourceUnavailable, err)
		}

		annotations, err := o.ProcessFrame(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ledger.ErrPersist) {
				return err
			}
			o.log.WithError(err).WithField("frame", frame.Seq).Error("Face detection failed")
			return fmt.Errorf("%w: detecting faces: %w", capture.ErrSourceUnavailable, err)
		}

		if renderer != nil {
			if err := renderer.Render(frame, annotations); err != nil {
				return fmt.Errorf("rendering frame %d: %w", frame.Seq, err)
			}
		}

		if evicted := o.trackers.Evict(frame.Seq); len(evicted) > 0 {
			o.log.WithField("identities", evicted).Debug("Evicted idle trackers")
		}
	}
}
