// Package ledger keeps the date-scoped attendance record.
// A person is recorded at most once per calendar day.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DateLayout is the persisted date format (DD-MM-YY).
	DateLayout = "02-01-06"
	// TimeLayout is the persisted time-of-day format (HH:MM:SS).
	TimeLayout = "15:04:05"
)

// ErrPersist wraps failures of the backing store. The in-memory ledger is
// left unchanged when it is returned.
var ErrPersist = errors.New("persisting attendance record")

// ErrAlreadyRecorded is returned by a Store whose backend already holds a
// record for the same name and day, typically written by another process.
var ErrAlreadyRecorded = errors.New("attendance already recorded")

// Record is a single attendance entry.
type Record struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// NewRecord builds a record for name at t.
func NewRecord(name string, t time.Time) Record {
	return Record{
		Name: name,
		Date: t.Format(DateLayout),
		Time: t.Format(TimeLayout),
	}
}

// Store persists records. Append must be durable when it returns nil.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, rec Record) error
}

// MarkResult describes the outcome of Mark.
type MarkResult struct {
	Newly  bool   // false when the person was already recorded that day
	Record Record // the stored record when Newly is true
}

type key struct {
	name string
	date string
}

// Ledger is the in-memory view of the attendance record backed by a Store.
type Ledger struct {
	store Store
	now   func() time.Time

	mu      sync.RWMutex
	records []Record
	index   map[key]struct{}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used by Mark and Today.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Open loads the existing records from store.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store: store,
		now:   time.Now,
		index: make(map[key]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading attendance records: %w", err)
	}
	for _, rec := range records {
		k := key{name: rec.Name, date: rec.Date}
		if _, dup := l.index[k]; dup {
			continue
		}
		l.index[k] = struct{}{}
		l.records = append(l.records, rec)
	}

	return l, nil
}

// AlreadyMarked reports whether name has a record on the calendar day of date.
func (l *Ledger) AlreadyMarked(name string, date time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[key{name: name, date: date.Format(DateLayout)}]
	return ok
}

// Today returns the ledger clock's current time.
func (l *Ledger) Today() time.Time {
	return l.now()
}

// Mark records name for today unless it is already recorded, in memory or
// in the store.
// The check and the insert happen under one lock, so concurrent calls for
// the same name produce a single record.
func (l *Ledger) Mark(ctx context.Context, name string) (MarkResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := NewRecord(name, l.now())
	k := key{name: rec.Name, date: rec.Date}
	if _, ok := l.index[k]; ok {
		return MarkResult{}, nil
	}

	if err := l.store.Append(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyRecorded) {
			// The stored time is unknown, only the index learns about it.
			l.index[k] = struct{}{}
			return MarkResult{}, nil
		}
		return MarkResult{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	l.index[k] = struct{}{}
	l.records = append(l.records, rec)

	return MarkResult{Newly: true, Record: rec}, nil
}

// Records returns a copy of all records in insertion order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// ForDate returns the records of a single day.
func (l *Ledger) ForDate(date time.Time) []Record {
	return l.ForDateString(date.Format(DateLayout))
}

// ForDateString returns the records whose Date equals date (DD-MM-YY).
func (l *Ledger) ForDateString(date string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Record
	for _, rec := range l.records {
		if rec.Date == date {
			out = append(out, rec)
		}
	}
	return out
}

// RecordsForDate is ForDateString for callers that read through an interface
// shared with StoreReader.
func (l *Ledger) RecordsForDate(_ context.Context, date string) ([]Record, error) {
	return l.ForDateString(date), nil
}
