package report

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// UnifiedPreview renders a unified diff between a file's content before
// and after corrections. It emits a single hunk covering the changed
// region, which is enough for span-local edits; it is a preview, not a
// patch engine.
func UnifiedPreview(path string, before, after []byte) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}

	oldLines := splitLines(string(before))
	newLines := splitLines(string(after))

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	removed := oldLines[prefix : len(oldLines)-suffix]
	added := newLines[prefix : len(newLines)-suffix]

	var body strings.Builder
	for _, l := range removed {
		body.WriteString("-" + l + "\n")
	}
	for _, l := range added {
		body.WriteString("+" + l + "\n")
	}

	origStart := prefix + 1
	if len(removed) == 0 {
		// Pure insertion anchors on the preceding line.
		origStart = prefix
	}
	newStart := prefix + 1
	if len(added) == 0 {
		newStart = prefix
	}

	fd := &godiff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
		Hunks: []*godiff.Hunk{{
			OrigStartLine: int32(origStart),
			OrigLines:     int32(len(removed)),
			NewStartLine:  int32(newStart),
			NewLines:      int32(len(added)),
			Body:          []byte(strings.TrimSuffix(body.String(), "\n")),
		}},
	}

	printed, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("failed to print diff: %w", err)
	}
	return string(printed), nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
