package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"
)

// SnapshotSource polls a camera's still-image endpoint, one request per frame.
// Most IP cameras expose such a URL next to their video stream.
type SnapshotSource struct {
	url      string
	client   *http.Client
	interval time.Duration
	seq      uint64
	last     time.Time
}

// NewSnapshotSource creates a source for url. interval throttles polling, 0 disables it.
func NewSnapshotSource(url string, interval time.Duration) *SnapshotSource {
	return &SnapshotSource{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: interval,
	}
}

// Next fetches and decodes one snapshot.
func (s *SnapshotSource) Next(ctx context.Context) (Frame, error) {
	if err := s.wait(ctx); err != nil {
		return Frame{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: creating request: %w", ErrSourceUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: reading snapshot: %w", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("%w: camera returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: decoding snapshot: %w", ErrSourceUnavailable, err)
	}

	s.last = time.Now()
	s.seq++
	return Frame{Seq: s.seq, At: s.last, Image: img}, nil
}

func (s *SnapshotSource) wait(ctx context.Context) error {
	if s.interval <= 0 || s.last.IsZero() {
		return ctx.Err()
	}
	delay := s.interval - time.Since(s.last)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases idle connections.
func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
