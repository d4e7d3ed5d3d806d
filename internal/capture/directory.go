package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// DirectorySource replays an image sequence from a directory in file name order.
type DirectorySource struct {
	files []string
	pos   int
	seq   uint64
	now   func() time.Time
}

// NewDirectorySource lists the frame files of dir.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading frame directory: %w", ErrSourceUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	return &DirectorySource{files: files, now: time.Now}, nil
}

// Len returns the number of frames in the sequence.
func (s *DirectorySource) Len() int {
	return len(s.files)
}

// Next decodes the next image. Returns io.EOF after the last one.
func (s *DirectorySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.files) {
		return Frame{}, io.EOF
	}

	path := s.files[s.pos]
	s.pos++

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the listed directory
	if err != nil {
		return Frame{}, fmt.Errorf("%w: reading %s: %w", ErrSourceUnavailable, path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: decoding %s: %w", ErrSourceUnavailable, path, err)
	}

	s.seq++
	return Frame{Seq: s.seq, At: s.now(), Image: img}, nil
}

// Close is a no-op.
func (s *DirectorySource) Close() error {
	return nil
}
