package facematch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/faceservice"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

// FaceAnalyzer detects faces and computes their embeddings and landmarks.
type FaceAnalyzer interface {
	ComputeFaces(ctx context.Context, imageData []byte) (*faceservice.FaceResponse, error)
}

var referenceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ListReferenceImages returns the reference images of dir in name order.
func ListReferenceImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read known faces directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !referenceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// BuildOptions controls how a gallery is built from reference images.
type BuildOptions struct {
	Tolerance float64
	Logger    logrus.FieldLogger
	// Progress is called once per image after it was processed, if set.
	Progress func()
}

// BuildGallery encodes every reference image in dir. The directory is created
// when missing. Images without a face or that fail to encode are skipped and
// logged; only context cancellation aborts the build.
func BuildGallery(ctx context.Context, dir string, analyzer FaceAnalyzer, opts BuildOptions) (*Gallery, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create known faces directory: %w", err)
		}
		log.WithField("dir", dir).Info("Created known faces directory. Add reference images named after each person.")
	}

	files, err := ListReferenceImages(dir)
	if err != nil {
		return nil, err
	}

	gallery := NewGallery(opts.Tolerance)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ref, err := encodeReference(ctx, analyzer, path)
		if opts.Progress != nil {
			opts.Progress()
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("file", filepath.Base(path)).Error("Failed to encode reference image")
			continue
		case ref == nil:
			log.WithField("file", filepath.Base(path)).Warn("No face found in reference image, skipping")
			continue
		}

		if err := gallery.Add(*ref); err != nil {
			log.WithError(err).WithField("file", filepath.Base(path)).Error("Failed to add reference")
			continue
		}
		log.WithFields(logrus.Fields{"label": ref.Label, "file": ref.ID}).Debug("Loaded known face")
	}

	if gallery.Len() == 0 {
		log.WithField("dir", dir).Warn("No known faces loaded. Every face will be shown as unauthorized.")
	}

	return gallery, nil
}

// encodeReference returns the first face of the image, or nil if it has none.
func encodeReference(ctx context.Context, analyzer FaceAnalyzer, path string) (*Reference, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the listed directory
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := analyzer.ComputeFaces(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(resp.Faces) == 0 || len(resp.Faces[0].Embedding) == 0 {
		return nil, nil
	}

	name := filepath.Base(path)
	return &Reference{
		ID:        name,
		Label:     LabelFromFilename(name),
		Embedding: resp.Faces[0].Embedding,
	}, nil
}
