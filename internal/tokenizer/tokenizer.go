// Package tokenizer extracts lexicon-aligned concepts from box text
// with greedy longest-match scanning, and resolves slugs back to
// lexicon ids for the edge weaver.
package tokenizer

import (
	"regexp"
	"sort"
	"strings"
)

// Tag buckets a vocabulary term by how it should be reported.
type Tag string

const (
	TagProtocol     Tag = "Protocol"
	TagOrganization Tag = "Organization"
	TagConcept      Tag = "Concept"
)

// LexiconItem is one entry of the persona lexicon JSON.
type LexiconItem struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	Category string   `json:"category,omitempty"`
	Type     string   `json:"type,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Extraction groups matched terms by kind. People, places, and money
// stay empty unless an auxiliary NER stage fills them; the lexicon path
// populates organizations, protocols, and concepts.
type Extraction struct {
	People        []string `json:"people"`
	Places        []string `json:"places"`
	Organizations []string `json:"organizations"`
	Topics        []string `json:"topics"`
	Money         []string `json:"money"`
	Protocols     []string `json:"protocols"`
	Concepts      []string `json:"concepts"`
}

// Flatten returns every matched term once, sorted.
func (e Extraction) Flatten() []string {
	var all []string
	for _, bucket := range [][]string{
		e.People, e.Places, e.Organizations, e.Topics, e.Money, e.Protocols, e.Concepts,
	} {
		all = append(all, bucket...)
	}
	sort.Strings(all)
	out := all[:0]
	for i, term := range all {
		if i == 0 || term != all[i-1] {
			out = append(out, term)
		}
	}
	return out
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool {
	return len(e.People)+len(e.Places)+len(e.Organizations)+
		len(e.Topics)+len(e.Money)+len(e.Protocols)+len(e.Concepts) == 0
}

type vocabEntry struct {
	term    string
	tag     Tag
	pattern *regexp.Regexp
}

// Index is the immutable vocabulary built from the lexicon after
// Phase 1 seeding. Safe for concurrent readers.
type Index struct {
	entries []vocabEntry
	bySlug  map[string]string
}

// NewIndex builds the search vocabulary. Each item contributes its
// title, its id, a hyphen-to-space variant of its id, and any aliases.
// Keys are matched longest-first so compound terms win over their
// fragments.
func NewIndex(items []LexiconItem) *Index {
	vocab := make(map[string]Tag)
	bySlug := make(map[string]string)

	for _, item := range items {
		if item.ID == "" {
			continue
		}
		tag := TagConcept
		switch {
		case item.Type == "operational-heuristic":
			tag = TagProtocol
		case item.Category == "Tool":
			tag = TagOrganization
		}

		terms := []string{item.ID, strings.ReplaceAll(item.ID, "-", " ")}
		if item.Title != "" {
			terms = append(terms, item.Title)
		}
		terms = append(terms, item.Aliases...)

		for _, term := range terms {
			key := strings.ToLower(strings.TrimSpace(term))
			if key == "" {
				continue
			}
			if _, exists := vocab[key]; !exists {
				vocab[key] = tag
			}
			if slug := Slugify(term); slug != "" {
				if _, exists := bySlug[slug]; !exists {
					bySlug[slug] = item.ID
				}
			}
		}
	}

	keys := make([]string, 0, len(vocab))
	for key := range vocab {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	entries := make([]vocabEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, vocabEntry{
			term:    key,
			tag:     vocab[key],
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`),
		})
	}

	return &Index{entries: entries, bySlug: bySlug}
}

// Terms returns the vocabulary size.
func (ix *Index) Terms() int { return len(ix.entries) }

// Resolve maps a slug to the lexicon id it belongs to.
func (ix *Index) Resolve(slug string) (string, bool) {
	id, ok := ix.bySlug[slug]
	return id, ok
}

// Extract scans text for vocabulary terms. Longer terms are matched
// first and claim their spans, so "flow state" suppresses a separate
// "flow" hit inside it. Matches keep the casing they carry in text.
func (ix *Index) Extract(text string) Extraction {
	var out Extraction
	if text == "" || len(ix.entries) == 0 {
		return out
	}

	lower := strings.ToLower(text)
	var claimed [][2]int
	seen := make(map[string]bool)

	for _, entry := range ix.entries {
		if !strings.Contains(lower, entry.term) {
			continue
		}
		for _, loc := range entry.pattern.FindAllStringIndex(text, -1) {
			if overlaps(claimed, loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})

			match := text[loc[0]:loc[1]]
			key := string(entry.tag) + "\x00" + match
			if seen[key] {
				continue
			}
			seen[key] = true

			switch entry.tag {
			case TagProtocol:
				out.Protocols = append(out.Protocols, match)
			case TagOrganization:
				out.Organizations = append(out.Organizations, match)
			default:
				out.Concepts = append(out.Concepts, match)
			}
		}
	}
	return out
}

func overlaps(claimed [][2]int, start, end int) bool {
	for _, span := range claimed {
		if start < span[1] && end > span[0] {
			return true
		}
	}
	return false
}

// Slugify lowercases a term and collapses non-alphanumeric runs to
// single hyphens: "Flow State" becomes "flow-state".
func Slugify(term string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(term) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			sb.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			sb.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(sb.String(), "-")
}
