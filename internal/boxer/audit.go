package boxer

import (
	"fmt"
	"strings"
)

// AuditResult reports whether a boxed file still carries the source
// content. On divergence, the word index and a short context from each
// side identify where the drift begins.
type AuditResult struct {
	Passed      bool   `json:"passed"`
	SourceWords int    `json:"sourceWords"`
	BoxedWords  int    `json:"boxedWords"`
	DivergedAt  int    `json:"divergedAt,omitempty"`
	SourceNear  string `json:"sourceNear,omitempty"`
	BoxedNear   string `json:"boxedNear,omitempty"`
}

// Audit verifies the boxing guarantee: stripping locus and tags markers
// from the boxed document and normalizing whitespace must reproduce the
// normalized source. The source side runs through the same Normalizer
// the boxer applied, so the comparison is identity for well-formed
// files and still meaningful for repaired ones.
func Audit(source, boxed []byte, name string) AuditResult {
	sourceWords := strings.Fields(string(Normalize(source, name)))
	boxedWords := strings.Fields(StripMarkers(string(boxed)))

	result := AuditResult{
		Passed:      true,
		SourceWords: len(sourceWords),
		BoxedWords:  len(boxedWords),
	}

	limit := len(sourceWords)
	if len(boxedWords) < limit {
		limit = len(boxedWords)
	}
	for i := 0; i < limit; i++ {
		if sourceWords[i] != boxedWords[i] {
			return diverged(result, sourceWords, boxedWords, i)
		}
	}
	if len(sourceWords) != len(boxedWords) {
		return diverged(result, sourceWords, boxedWords, limit)
	}
	return result
}

func diverged(result AuditResult, sourceWords, boxedWords []string, at int) AuditResult {
	result.Passed = false
	result.DivergedAt = at
	result.SourceNear = wordContext(sourceWords, at)
	result.BoxedNear = wordContext(boxedWords, at)
	return result
}

// wordContext renders a few words around index i for error reporting.
func wordContext(words []string, i int) string {
	lo := i - 3
	if lo < 0 {
		lo = 0
	}
	hi := i + 4
	if hi > len(words) {
		hi = len(words)
	}
	if lo >= hi {
		return ""
	}
	return fmt.Sprintf("…%s…", strings.Join(words[lo:hi], " "))
}
