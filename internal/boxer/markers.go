package boxer

import (
	"regexp"
	"strings"

	"polyvis/internal/errors"
)

// ErrLocusNotFound reports an InjectTags target with no matching marker.
var ErrLocusNotFound = errors.New(errors.ParseFailed, "locus marker not found in document")

// On-disk marker formats. The locus marker precedes a box's content on
// its own line; the tags marker carries relationship annotations.
//
//	<!-- locus:3f2a9c1e-... -->
//	<!-- tags: [CITES: term-foo], [EXEMPLIFIES: term-bar] -->
var (
	locusLinePattern = regexp.MustCompile(`(?m)^<!-- locus:([a-zA-Z0-9-]+) -->[ \t]*\r?\n?`)
	tagsLinePattern  = regexp.MustCompile(`(?m)^<!-- tags:[^>]*-->[ \t]*\r?\n?`)
)

// MarkerLine renders the locus marker for id, newline included.
func MarkerLine(id string) string {
	return "<!-- locus:" + id + " -->\n"
}

// HasMarkers reports whether body contains at least one locus marker.
func HasMarkers(body []byte) bool {
	return locusLinePattern.Match(body)
}

// Marked is one marker-delimited segment of a document.
type Marked struct {
	ID      string
	Content string
}

// SplitMarked cuts body at locus markers. Content before the first
// marker is dropped only if blank; otherwise it is returned as a
// segment with an empty ID so no text silently disappears.
func SplitMarked(body []byte) []Marked {
	locs := locusLinePattern.FindAllSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return nil
	}

	var segments []Marked
	if head := string(body[:locs[0][0]]); strings.TrimSpace(head) != "" {
		segments = append(segments, Marked{Content: head})
	}

	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segments = append(segments, Marked{
			ID:      string(body[loc[2]:loc[3]]),
			Content: string(body[loc[1]:end]),
		})
	}
	return segments
}

// StripMarkers removes locus and tags marker lines, leaving all other
// content untouched.
func StripMarkers(text string) string {
	out := locusLinePattern.ReplaceAllString(text, "")
	return tagsLinePattern.ReplaceAllString(out, "")
}

// InjectTags places markerLine directly after the locus marker for id,
// replacing an existing tags line at that position. markerLine must be
// newline-terminated. Returns ErrLocusNotFound when body carries no
// marker for id.
func InjectTags(body []byte, id string, markerLine string) ([]byte, error) {
	locs := locusLinePattern.FindAllSubmatchIndex(body, -1)
	for _, loc := range locs {
		if string(body[loc[2]:loc[3]]) != id {
			continue
		}
		rest := body[loc[1]:]
		if tag := tagsLinePattern.FindIndex(rest); tag != nil && tag[0] == 0 {
			rest = rest[tag[1]:]
		}
		out := make([]byte, 0, len(body)+len(markerLine))
		out = append(out, body[:loc[1]]...)
		out = append(out, markerLine...)
		out = append(out, rest...)
		return out, nil
	}
	return nil, ErrLocusNotFound
}
