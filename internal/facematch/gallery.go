package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ErrDimensionMismatch is returned when an embedding does not fit the gallery.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

const galleryMetadataVersion = 1

// Reference is one known face: a person's label and the embedding of their
// reference image.
type Reference struct {
	ID        string    `json:"id"` // reference image file name, unique per gallery
	Label     string    `json:"label"`
	Embedding []float32 `json:"-"`
}

// Match is the outcome of looking up an embedding in the gallery.
type Match struct {
	Label    string
	ID       string
	Distance float64
}

// galleryMetadata is stored next to an exported graph.
type galleryMetadata struct {
	Version   int               `json:"version"`
	Tolerance float64           `json:"tolerance"`
	Labels    map[string]string `json:"labels"` // reference id -> label
}

// Gallery holds the known faces in an HNSW graph keyed by reference id.
type Gallery struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[string]
	labels    map[string]string
	tolerance float64
}

// NewGallery creates an empty gallery. A non-positive tolerance selects the default.
func NewGallery(tolerance float64) *Gallery {
	if tolerance <= 0 {
		tolerance = constants.DefaultMatchTolerance
	}
	return &Gallery{
		graph:     newGraph(),
		labels:    make(map[string]string),
		tolerance: tolerance,
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Tolerance returns the maximum distance accepted as a match.
func (g *Gallery) Tolerance() float64 {
	return g.tolerance
}

// Add inserts a reference. Adding an existing id replaces it.
func (g *Gallery) Add(ref Reference) error {
	if len(ref.Embedding) == 0 {
		return fmt.Errorf("reference %s: empty embedding", ref.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.graph.Len() > 0 && g.graph.Dims() != len(ref.Embedding) {
		return fmt.Errorf("reference %s: %w: got %d, want %d",
			ref.ID, ErrDimensionMismatch, len(ref.Embedding), g.graph.Dims())
	}

	g.graph.Add(hnsw.MakeNode(ref.ID, ref.Embedding))
	g.labels[ref.ID] = ref.Label
	return nil
}

// Len returns the number of references.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.labels)
}

// Labels returns the distinct labels in the gallery, sorted.
func (g *Gallery) Labels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool, len(g.labels))
	out := make([]string, 0, len(g.labels))
	for _, label := range g.labels {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

// Match finds the closest reference to embedding. ok is false when the
// gallery is empty or the closest reference is farther than the tolerance.
func (g *Gallery) Match(embedding []float32) (m Match, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph.Len() == 0 || len(embedding) != g.graph.Dims() {
		return Match{}, false
	}

	k := min(g.graph.Len(), constants.GallerySearchK)
	best := Match{Distance: math.Inf(1)}
	for _, n := range g.graph.Search(embedding, k) {
		dist := EuclideanDistance(embedding, n.Value)
		if dist < best.Distance {
			best = Match{Label: g.labels[n.Key], ID: n.Key, Distance: dist}
		}
	}

	if best.Distance > g.tolerance {
		return best, false
	}
	return best, true
}

// Save exports the graph to path and the labels to path.meta.
func (g *Gallery) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create gallery index file: %w", err)
	}
	if err := g.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export gallery graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close gallery index file: %w", err)
	}

	meta, err := json.Marshal(galleryMetadata{
		Version:   galleryMetadataVersion,
		Tolerance: g.tolerance,
		Labels:    g.labels,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", meta, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// LoadGallery reads a gallery written by Save. A non-positive tolerance keeps
// the stored one.
func LoadGallery(path string, tolerance float64) (*Gallery, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("gallery index not found: %w", err)
	}

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var meta galleryMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if meta.Version != galleryMetadataVersion {
		return nil, fmt.Errorf("unsupported gallery index version %d", meta.Version)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery graph: %w", err)
	}

	if tolerance <= 0 {
		tolerance = meta.Tolerance
	}
	g := NewGallery(tolerance)
	g.graph = saved.Graph
	if meta.Labels != nil {
		g.labels = meta.Labels
	}

	if g.graph.Len() != len(g.labels) {
		return nil, fmt.Errorf("gallery index has %d nodes but %d labels", g.graph.Len(), len(g.labels))
	}

	return g, nil
}
