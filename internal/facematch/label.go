package facematch

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LabelFromFilename derives a person's display label from a reference image
// name: "john_doe.jpg" becomes "John Doe".
func LabelFromFilename(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.TrimSpace(strings.ReplaceAll(stem, "_", " "))
	return cases.Title(language.Und).String(stem)
}
