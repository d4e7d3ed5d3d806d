// Package capture provides the video frame sources the attendance loop reads from.
package capture

import (
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	_ "golang.org/x/image/bmp"
)

// ErrSourceUnavailable means the source cannot produce frames any more.
// The attendance loop treats it as fatal.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// Frame is one decoded video frame.
type Frame struct {
	Seq   uint64    // 1-based, increasing by one per frame
	At    time.Time // capture time
	Image image.Image
}

// Source yields frames in order. Next returns io.EOF when a finite source is
// exhausted and an error wrapping ErrSourceUnavailable when acquisition fails.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
