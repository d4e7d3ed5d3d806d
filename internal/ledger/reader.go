package ledger

import (
	"context"
	"fmt"
	"time"
)

// StoreReader answers read queries straight from a store, so records written
// by another process are visible.
type StoreReader struct {
	Store Store
	Now   func() time.Time
}

// Today returns the reader's current time.
func (r StoreReader) Today() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// RecordsForDate loads the store and returns the records of date (DD-MM-YY).
func (r StoreReader) RecordsForDate(ctx context.Context, date string) ([]Record, error) {
	l, err := Open(ctx, r.Store, WithClock(r.Today))
	if err != nil {
		return nil, fmt.Errorf("reading attendance: %w", err)
	}
	return l.ForDateString(date), nil
}
