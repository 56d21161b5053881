package boxer

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the optional YAML block at the top of a document.
// Raw keeps the exact source bytes, delimiters included, so rendering
// can reproduce the file head unchanged even when parsing failed.
type Frontmatter struct {
	Raw    []byte
	Fields map[string]interface{}
}

var fmDelimiter = []byte("---")

// SplitFrontmatter separates an optional leading YAML frontmatter block
// from the document body. Malformed YAML inside a well-delimited block
// still counts as frontmatter; Fields is nil and the error reports the
// parse failure so callers can warn and continue.
func SplitFrontmatter(source []byte) (Frontmatter, []byte, error) {
	if !bytes.HasPrefix(source, fmDelimiter) {
		return Frontmatter{}, source, nil
	}
	firstEOL := bytes.IndexByte(source, '\n')
	if firstEOL < 0 || len(bytes.TrimRight(source[:firstEOL], " \r")) != len(fmDelimiter) {
		return Frontmatter{}, source, nil
	}

	rest := source[firstEOL+1:]
	offset := firstEOL + 1
	for len(rest) > 0 {
		eol := bytes.IndexByte(rest, '\n')
		line := rest
		next := len(rest)
		if eol >= 0 {
			line = rest[:eol]
			next = eol + 1
		}
		trimmed := bytes.TrimRight(line, " \r")
		if bytes.Equal(trimmed, fmDelimiter) || bytes.Equal(trimmed, []byte("...")) {
			fm := Frontmatter{Raw: source[:offset+next]}
			body := source[offset+next:]

			inner := source[firstEOL+1 : offset]
			var fields map[string]interface{}
			if err := yaml.Unmarshal(inner, &fields); err != nil {
				return fm, body, err
			}
			fm.Fields = fields
			return fm, body, nil
		}
		offset += next
		rest = rest[next:]
	}

	// No closing delimiter: the whole document is body.
	return Frontmatter{}, source, nil
}
