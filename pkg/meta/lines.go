package meta

import (
	"fmt"
	"strings"
)

// Separator is placed between metadata lines and notes.
var Separator = strings.Repeat("─", 15)

// BuildTextLines returns the ordered overlay lines for a record. Whitespace-only
// values are skipped. In full mode each line is prefixed with its label.
func BuildTextLines(r Record, notes string, mode DisplayMode, l Labeler) []string {
	l = labelerOrDefault(l)
	lines := []string{}

	for _, f := range TextFields {
		v := r.Value(f)
		if strings.TrimSpace(v) == "" {
			continue
		}
		if mode == DisplayFull {
			lines = append(lines, fmt.Sprintf("%s: %s", l.Label(string(f)), v))
			continue
		}
		lines = append(lines, v)
	}

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return lines
	}
	if len(lines) > 0 {
		lines = append(lines, Separator)
	}
	return append(lines, strings.Split(notes, "\n")...)
}
