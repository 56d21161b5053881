// Package boxer segments Markdown documents into bento boxes: chunks
// small enough to embed meaningfully, aligned to heading boundaries,
// and serialized as exact slices of the original source so the audit
// round-trip holds.
package boxer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"

	"polyvis/internal/logging"
)

// BoxKind tags how a box was produced. Section boxes open at a heading;
// atomic boxes are fracture fragments without one.
type BoxKind string

const (
	KindSection BoxKind = "section"
	KindAtomic  BoxKind = "atomic"
)

// Box is one locus-sized chunk of a document.
type Box struct {
	ID      string
	Heading string
	Content string
	Kind    BoxKind
	Tokens  int
}

// Minter assigns stable ids to content hashes.
type Minter interface {
	GetOrMint(contentHash string) (string, error)
}

// Hasher produces the canonical content hash fed to the Minter.
type Hasher func(text string) string

// Boxer splits Markdown into boxes within a token budget.
type Boxer struct {
	maxTokens int
	counter   TokenCounter
	minter    Minter
	hash      Hasher
	logger    *logging.Logger
}

// groupDepth is the deepest heading level that opens a new box.
const groupDepth = 4

// New builds a Boxer. A nil counter falls back to whitespace counting
// and maxTokens <= 0 falls back to the 400-token default.
func New(maxTokens int, counter TokenCounter, minter Minter, hash Hasher, logger *logging.Logger) *Boxer {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	if counter == nil {
		counter = WhitespaceCounter{}
	}
	return &Boxer{
		maxTokens: maxTokens,
		counter:   counter,
		minter:    minter,
		hash:      hash,
		logger:    logger,
	}
}

// Process normalizes source, splits it into boxes, and mints a locus
// id per box. The returned frontmatter is passed back to Render so the
// boxed file keeps its head intact.
func (b *Boxer) Process(source []byte, name string) ([]Box, Frontmatter, error) {
	normalized := Normalize(source, name)

	fm, body, fmErr := SplitFrontmatter(normalized)
	if fmErr != nil {
		b.logger.Warn("frontmatter parse failed, continuing without fields", logging.Fields{
			"file":  name,
			"error": fmErr.Error(),
		})
	}

	boxes := b.split(body)

	for i := range boxes {
		id, err := b.minter.GetOrMint(b.hash(boxes[i].Content))
		if err != nil {
			return nil, fm, err
		}
		boxes[i].ID = id
	}

	b.logger.Debug("boxed document", logging.Fields{
		"file":  name,
		"boxes": len(boxes),
	})
	return boxes, fm, nil
}

// BoxBody segments an already-extracted document body without
// normalizing it. This is the ingest path for files that carry no
// locus markers; identical content mints identical ids, so a later
// on-disk box run converges on the same nodes.
func (b *Boxer) BoxBody(body []byte) ([]Box, error) {
	boxes := b.split(body)
	for i := range boxes {
		id, err := b.minter.GetOrMint(b.hash(boxes[i].Content))
		if err != nil {
			return nil, err
		}
		boxes[i].ID = id
	}
	return boxes, nil
}

// split parses body and cuts it into token-budgeted boxes.
func (b *Boxer) split(body []byte) []Box {
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(gmtext.NewReader(body))

	var blocks []ast.Node
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		blocks = append(blocks, child)
	}

	// Group boundaries open at headings of level <= groupDepth whose
	// source position is known. Group content is the raw byte span
	// between boundaries, so concatenating groups reproduces the body.
	type group struct {
		nodes []ast.Node
		start int
		end   int
	}
	var groups []group
	current := group{start: 0}
	for _, node := range blocks {
		if h, ok := node.(*ast.Heading); ok && h.Level <= groupDepth {
			if off := startOffsetOf(node, body); off > current.start {
				current.end = off
				groups = append(groups, current)
				current = group{start: off}
			}
		}
		current.nodes = append(current.nodes, node)
	}
	current.end = len(body)
	groups = append(groups, current)

	var boxes []Box
	for _, g := range groups {
		if strings.TrimSpace(string(body[g.start:g.end])) == "" {
			continue
		}
		for _, span := range b.fracture(g.nodes, g.start, g.end, body) {
			content := string(body[span[0]:span[1]])
			if strings.TrimSpace(content) == "" {
				continue
			}
			boxes = append(boxes, makeBox(content, b.counter))
		}
	}
	return boxes
}

// fracture recursively splits an oversized span. Thematic breaks are
// the preferred cut points; otherwise the block list is halved. A
// single block over budget (a long code fence, a giant table) is
// emitted whole.
func (b *Boxer) fracture(nodes []ast.Node, start, end int, body []byte) [][2]int {
	if b.counter.Count(string(body[start:end])) <= b.maxTokens {
		return [][2]int{{start, end}}
	}
	if len(nodes) <= 1 {
		return [][2]int{{start, end}}
	}

	cut := -1
	for i := 0; i < len(nodes)-1; i++ {
		if _, ok := nodes[i].(*ast.ThematicBreak); !ok {
			continue
		}
		if off := startOffsetOf(nodes[i+1], body); off > start && off < end {
			cut = i + 1
			break
		}
	}

	if cut < 0 {
		// Halve, nudging outward past blocks whose source position is
		// unknowable.
		mid := len(nodes) / 2
		for delta := 0; delta < len(nodes); delta++ {
			for _, i := range []int{mid + delta, mid - delta} {
				if i < 1 || i >= len(nodes) {
					continue
				}
				if off := startOffsetOf(nodes[i], body); off > start && off < end {
					cut = i
					break
				}
			}
			if cut >= 0 {
				break
			}
		}
	}
	if cut < 0 {
		return [][2]int{{start, end}}
	}

	splitAt := startOffsetOf(nodes[cut], body)
	left := b.fracture(nodes[:cut], start, splitAt, body)
	right := b.fracture(nodes[cut:], splitAt, end, body)
	return append(left, right...)
}

// makeBox derives the heading and kind from the first non-blank line.
func makeBox(content string, counter TokenCounter) Box {
	box := Box{
		Content: content,
		Kind:    KindAtomic,
		Tokens:  counter.Count(content),
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			box.Kind = KindSection
			box.Heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
		break
	}
	return box
}

// Render serializes boxes back to a markered document: frontmatter,
// then a locus marker line and content per box.
func Render(fm Frontmatter, boxes []Box) []byte {
	var sb strings.Builder
	sb.Write(fm.Raw)
	if len(fm.Raw) > 0 && !strings.HasSuffix(string(fm.Raw), "\n") {
		sb.WriteByte('\n')
	}
	for i, box := range boxes {
		if i > 0 || len(fm.Raw) > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(MarkerLine(box.ID))
		sb.WriteString(strings.TrimRight(box.Content, "\n"))
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// startOffsetOf locates the byte offset of the line on which a block
// begins, or -1 when the parser exposes no position for it. Fenced
// code is special: its line segments cover only the interior, so the
// opening fence sits one line above the first segment (or on the info
// string's line when one is present).
func startOffsetOf(n ast.Node, source []byte) int {
	if fcb, ok := n.(*ast.FencedCodeBlock); ok {
		if fcb.Info != nil {
			return lineStart(source, fcb.Info.Segment.Start)
		}
		if fcb.Lines().Len() > 0 {
			first := lineStart(source, fcb.Lines().At(0).Start)
			return prevLineStart(source, first)
		}
		return -1
	}

	if n.Lines().Len() > 0 {
		return lineStart(source, n.Lines().At(0).Start)
	}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if off := startOffsetOf(child, source); off >= 0 {
			return off
		}
	}
	return -1
}

// lineStart walks back from off to the start of its line.
func lineStart(source []byte, off int) int {
	if off > len(source) {
		off = len(source)
	}
	for off > 0 && source[off-1] != '\n' {
		off--
	}
	return off
}

// prevLineStart returns the start of the line before the one at off.
func prevLineStart(source []byte, off int) int {
	if off <= 0 {
		return 0
	}
	return lineStart(source, off-1)
}
