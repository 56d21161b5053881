package boxer

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	h1Pattern   = regexp.MustCompile(`^#\s+`)
	deepPattern = regexp.MustCompile(`^(#{4,6})\s+(.*)$`)
	fenceStart  = regexp.MustCompile("^(```|~~~)")
)

// Normalize repairs malformed heading structure ahead of boxing. Three
// heuristics run in order: a document whose first non-blank line is not
// an H1 gets one synthesized from the filename; every H1 after the
// first is demoted to H2; headings deeper than H3 become bold text
// lines. Frontmatter and fenced code blocks pass through untouched.
// The transform is deterministic and idempotent.
func Normalize(source []byte, name string) []byte {
	fm, body, _ := SplitFrontmatter(source)

	text := string(body)
	if !startsWithH1(text) {
		if title := TitleFromFilename(name); title != "" {
			text = "# " + title + "\n\n" + text
		}
	}

	lines := strings.Split(text, "\n")
	inFence := false
	seenH1 := false
	for i, line := range lines {
		if fenceStart.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if h1Pattern.MatchString(line) {
			if seenH1 {
				lines[i] = "#" + line
			}
			seenH1 = true
			continue
		}

		if m := deepPattern.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if title != "" {
				lines[i] = "**" + title + "**"
			}
		}
	}
	text = strings.Join(lines, "\n")

	if len(fm.Raw) == 0 {
		return []byte(text)
	}
	return append(append([]byte{}, fm.Raw...), text...)
}

// startsWithH1 reports whether the first non-blank line is an H1.
func startsWithH1(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return h1Pattern.MatchString(line)
	}
	return false
}

// TitleFromFilename turns a file name into a Title-Cased heading:
// "2026-01-05_retro-notes.md" becomes "2026 01 05 Retro Notes".
func TitleFromFilename(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return ""
	}
	return cases.Title(language.English).String(stem)
}
