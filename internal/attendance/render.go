package attendance

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/capture"
)

// ConsoleRenderer prints a line whenever what is shown for a face changes.
// It stands in for drawing boxes and labels on a video window.
type ConsoleRenderer struct {
	w    io.Writer
	last map[string]string
}

// NewConsoleRenderer creates a renderer writing to w.
func NewConsoleRenderer(w io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{w: w, last: make(map[string]string)}
}

// Render prints the annotations whose text differs from the previous frame.
// Faces that left the frame are forgotten so they are printed again on return.
func (r *ConsoleRenderer) Render(frame capture.Frame, annotations []Annotation) error {
	current := make(map[string]string, len(annotations))
	unknown := 0
	for _, a := range annotations {
		if !a.Known {
			unknown++
			continue
		}
		current[a.Label] = a.Status
	}
	if unknown > 0 {
		current[""] = fmt.Sprintf("%d unauthorized face(s)", unknown)
	}

	labels := make([]string, 0, len(current))
	for label := range current {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		text := current[label]
		if prev, ok := r.last[label]; ok && prev == text {
			continue
		}
		if err := r.print(frame.Seq, label, text); err != nil {
			return err
		}
	}

	r.last = current
	return nil
}

func (r *ConsoleRenderer) print(seq uint64, label, text string) error {
	var line strings.Builder
	fmt.Fprintf(&line, "[frame %d] ", seq)
	switch {
	case label == "":
		line.WriteString(text)
	case text == "":
		line.WriteString(label)
	default:
		fmt.Fprintf(&line, "%s: %s", label, text)
	}
	line.WriteByte('\n')

	_, err := io.WriteString(r.w, line.String())
	return err
}
