package codec

import (
	"regexp"
	"strings"
)

const (
	// Extension is the file extension of exported documents.
	Extension = ".yml"

	defaultFilename = "workflow"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Filename derives the export file name from a workflow name: lower-cased,
// runs of other characters collapsed to a hyphen, hyphens trimmed.
func Filename(name string) string {
	base := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-")
	base = strings.Trim(base, "-")

	if base == "" {
		base = defaultFilename
	}

	return base + Extension
}
