package boxer

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"polyvis/internal/logging"
)

// stubMinter hands out sequential ids, one per distinct hash.
type stubMinter struct {
	ids map[string]string
}

func (m *stubMinter) GetOrMint(hash string) (string, error) {
	if m.ids == nil {
		m.ids = make(map[string]string)
	}
	if id, ok := m.ids[hash]; ok {
		return id, nil
	}
	id := fmt.Sprintf("locus-%04d", len(m.ids)+1)
	m.ids[hash] = id
	return id, nil
}

func stubHash(text string) string { return strings.TrimSpace(text) }

func newTestBoxer(t *testing.T, maxTokens int) *Boxer {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
	return New(maxTokens, WhitespaceCounter{}, &stubMinter{}, stubHash, logger)
}

// joinedWords flattens box contents for content-preservation checks.
func joinedWords(boxes []Box) string {
	var parts []string
	for _, b := range boxes {
		parts = append(parts, b.Content)
	}
	return strings.Join(strings.Fields(strings.Join(parts, "\n")), " ")
}

func TestProcessSingleBox(t *testing.T) {
	b := newTestBoxer(t, 400)

	boxes, _, err := b.Process([]byte("# Title\n\nShort body text.\n"), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	box := boxes[0]
	if box.ID != "locus-0001" {
		t.Errorf("ID = %q", box.ID)
	}
	if box.Kind != KindSection {
		t.Errorf("Kind = %q, want section", box.Kind)
	}
	if box.Heading != "Title" {
		t.Errorf("Heading = %q, want Title", box.Heading)
	}
	if box.Tokens != 5 {
		t.Errorf("Tokens = %d, want 5", box.Tokens)
	}
}

func TestProcessSplitsAtHeadings(t *testing.T) {
	b := newTestBoxer(t, 400)

	source := "# Main\n\nintro text\n\n## Alpha\n\nalpha body\n\n## Beta\n\nbeta body\n\n### Gamma\n\ngamma body\n"
	boxes, _, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(boxes) != 4 {
		t.Fatalf("got %d boxes, want 4", len(boxes))
	}

	wantHeadings := []string{"Main", "Alpha", "Beta", "Gamma"}
	for i, want := range wantHeadings {
		if boxes[i].Heading != want {
			t.Errorf("box %d heading = %q, want %q", i, boxes[i].Heading, want)
		}
		if boxes[i].Kind != KindSection {
			t.Errorf("box %d kind = %q, want section", i, boxes[i].Kind)
		}
	}

	if got, want := joinedWords(boxes), strings.Join(strings.Fields(source), " "); got != want {
		t.Errorf("content not preserved:\ngot  %q\nwant %q", got, want)
	}
}

func TestBoxBodyMarkerlessIngest(t *testing.T) {
	b := newTestBoxer(t, 400)

	// The ingest path boxes raw bodies without normalization, so a
	// file of three H2 sections yields exactly three boxes.
	body := "## One\n\nfirst section\n\n## Two\n\nsecond section\n\n## Three\n\nthird section\n"
	boxes, err := b.BoxBody([]byte(body))
	if err != nil {
		t.Fatalf("BoxBody failed: %v", err)
	}
	if len(boxes) != 3 {
		t.Fatalf("got %d boxes, want 3", len(boxes))
	}
	seen := map[string]bool{}
	for _, box := range boxes {
		if box.ID == "" {
			t.Error("box missing id")
		}
		seen[box.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("ids not unique: %v", seen)
	}
}

func TestDeepHeadingsDoNotSplit(t *testing.T) {
	b := newTestBoxer(t, 400)

	// H5/H6 never open groups; after normalization they are bold text.
	source := "# Title\n\ntext\n\n##### Tiny\n\nmore text\n"
	boxes, _, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	if !strings.Contains(boxes[0].Content, "**Tiny**") {
		t.Errorf("deep heading not bolded: %q", boxes[0].Content)
	}
}

func TestFracturePrefersThematicBreak(t *testing.T) {
	b := newTestBoxer(t, 12)

	first := strings.Repeat("alpha ", 10)
	second := strings.Repeat("beta ", 10)
	source := "# Title\n\n" + first + "\n\n---\n\n" + second + "\n"

	boxes, _, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(boxes) < 2 {
		t.Fatalf("got %d boxes, want a split", len(boxes))
	}

	// The break separates the alpha and beta halves.
	var betaBox *Box
	for i := range boxes {
		if strings.HasPrefix(strings.TrimSpace(boxes[i].Content), "beta") {
			betaBox = &boxes[i]
		}
	}
	if betaBox == nil {
		t.Fatal("no box starts at the thematic break")
	}
	if strings.Contains(betaBox.Content, "alpha") {
		t.Error("split did not happen at the thematic break")
	}

	if got, want := joinedWords(boxes), strings.Join(strings.Fields(source), " "); got != want {
		t.Errorf("content not preserved after fracture:\ngot  %q\nwant %q", got, want)
	}
}

func TestFractureHalvesWithoutBreak(t *testing.T) {
	b := newTestBoxer(t, 12)

	var paragraphs []string
	for i := 0; i < 4; i++ {
		paragraphs = append(paragraphs, strings.Repeat(fmt.Sprintf("p%d ", i), 8))
	}
	source := "# Title\n\n" + strings.Join(paragraphs, "\n\n") + "\n"

	boxes, _, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(boxes) < 3 {
		t.Fatalf("got %d boxes, want the group halved recursively", len(boxes))
	}
	if got, want := joinedWords(boxes), strings.Join(strings.Fields(source), " "); got != want {
		t.Errorf("content not preserved:\ngot  %q\nwant %q", got, want)
	}
}

func TestOversizedSingleBlockEmittedWhole(t *testing.T) {
	b := newTestBoxer(t, 5)

	code := "```go\n" + strings.Repeat("x := 1\n", 30) + "```\n"
	source := "# Title\n\n" + code

	boxes, _, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	var fenceBox *Box
	for i := range boxes {
		if strings.Contains(boxes[i].Content, "x := 1") {
			fenceBox = &boxes[i]
		}
	}
	if fenceBox == nil {
		t.Fatal("code fence lost")
	}
	if strings.Count(fenceBox.Content, "```") != 2 {
		t.Errorf("fence lines not intact:\n%s", fenceBox.Content)
	}
	if fenceBox.Tokens <= b.maxTokens {
		t.Errorf("expected an over-budget box, got %d tokens", fenceBox.Tokens)
	}
}

func TestFenceInteriorHeadingIsNotABoundary(t *testing.T) {
	b := newTestBoxer(t, 400)

	source := "# Title\n\n```bash\n## looks like a heading\n```\n\n## Real\n\ntext\n"
	boxes, _, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(boxes))
	}
	if !strings.Contains(boxes[0].Content, "## looks like a heading") {
		t.Errorf("fence interior moved: %q", boxes[0].Content)
	}
	if boxes[1].Heading != "Real" {
		t.Errorf("second box heading = %q", boxes[1].Heading)
	}
}

func TestProcessEmptyDocument(t *testing.T) {
	b := newTestBoxer(t, 400)

	boxes, _, err := b.Process([]byte("   \n\n  \n"), "empty.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	// Normalization synthesizes a heading, so one box remains.
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	if boxes[0].Heading != "Empty" {
		t.Errorf("Heading = %q, want Empty", boxes[0].Heading)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	b := newTestBoxer(t, 20)

	source := "---\ntitle: Foo\n---\n# Title\n\n" +
		strings.Repeat("alpha ", 15) + "\n\n## Next\n\n" + strings.Repeat("beta ", 15) + "\n"

	boxes, fm, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	rendered := Render(fm, boxes)

	if !strings.HasPrefix(string(rendered), "---\ntitle: Foo\n---\n") {
		t.Errorf("frontmatter lost from render:\n%s", rendered)
	}
	if got := strings.Count(string(rendered), "<!-- locus:"); got != len(boxes) {
		t.Errorf("marker count = %d, want %d", got, len(boxes))
	}

	result := Audit([]byte(source), rendered, "doc.md")
	if !result.Passed {
		t.Errorf("audit failed: diverged at %d\nsource: %s\nboxed:  %s",
			result.DivergedAt, result.SourceNear, result.BoxedNear)
	}
}

func TestAuditDetectsTampering(t *testing.T) {
	b := newTestBoxer(t, 400)

	source := "# Title\n\none two three four five\n"
	boxes, fm, err := b.Process([]byte(source), "doc.md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	rendered := string(Render(fm, boxes))
	tampered := strings.Replace(rendered, "three", "3", 1)

	result := Audit([]byte(source), []byte(tampered), "doc.md")
	if result.Passed {
		t.Fatal("audit passed on tampered content")
	}
	if result.DivergedAt != 4 {
		t.Errorf("DivergedAt = %d, want 4", result.DivergedAt)
	}
	if result.SourceNear == "" || result.BoxedNear == "" {
		t.Error("divergence context missing")
	}
}

func TestAuditIgnoresTagMarkers(t *testing.T) {
	source := "# Title\n\nbody text\n"
	boxed := "<!-- locus:abc-123 -->\n# Title\n\n<!-- tags: [CITES: term-foo] -->\nbody text\n"

	result := Audit([]byte(source), []byte(boxed), "title.md")
	if !result.Passed {
		t.Errorf("audit failed: %+v", result)
	}
}

func TestSplitMarked(t *testing.T) {
	body := []byte("<!-- locus:aaa-111 -->\n# One\n\ntext one\n\n<!-- locus:bbb-222 -->\n## Two\n\ntext two\n")
	segments := SplitMarked(body)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].ID != "aaa-111" || segments[1].ID != "bbb-222" {
		t.Errorf("ids = %q, %q", segments[0].ID, segments[1].ID)
	}
	if !strings.HasPrefix(segments[0].Content, "# One") {
		t.Errorf("segment 0 content = %q", segments[0].Content)
	}
	if !strings.HasPrefix(segments[1].Content, "## Two") {
		t.Errorf("segment 1 content = %q", segments[1].Content)
	}
}

func TestSplitMarkedKeepsUnmarkedHead(t *testing.T) {
	body := []byte("stray preamble\n\n<!-- locus:ccc-333 -->\ncontent\n")
	segments := SplitMarked(body)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].ID != "" || !strings.Contains(segments[0].Content, "stray preamble") {
		t.Errorf("head segment = %+v", segments[0])
	}
	if segments[1].ID != "ccc-333" {
		t.Errorf("segment 1 id = %q", segments[1].ID)
	}
}

func TestSplitMarkedNoMarkers(t *testing.T) {
	if segments := SplitMarked([]byte("plain document\n")); segments != nil {
		t.Errorf("segments = %v, want nil", segments)
	}
}

func TestStripMarkers(t *testing.T) {
	text := "<!-- locus:abc-123 -->\n# Title\n<!-- tags: [CITES: foo], [RELATES_TO: bar] -->\nbody\n"
	got := StripMarkers(text)
	want := "# Title\nbody\n"
	if got != want {
		t.Errorf("StripMarkers = %q, want %q", got, want)
	}
}

func TestInjectTagsAfterMarker(t *testing.T) {
	body := []byte("<!-- locus:aaa-111 -->\nfirst box\n\n<!-- locus:bbb-222 -->\nsecond box\n")
	out, err := InjectTags(body, "bbb-222", "<!-- tags: [CITES: term-x] -->\n")
	if err != nil {
		t.Fatalf("InjectTags failed: %v", err)
	}
	want := "<!-- locus:bbb-222 -->\n<!-- tags: [CITES: term-x] -->\nsecond box\n"
	if !strings.Contains(string(out), want) {
		t.Errorf("tags line misplaced:\n%s", out)
	}
	if !strings.Contains(string(out), "<!-- locus:aaa-111 -->\nfirst box") {
		t.Errorf("untargeted box disturbed:\n%s", out)
	}
}

func TestInjectTagsReplacesExisting(t *testing.T) {
	body := []byte("<!-- locus:aaa-111 -->\n<!-- tags: [CITES: term-old] -->\nbox\n")
	out, err := InjectTags(body, "aaa-111", "<!-- tags: [CITES: term-new] -->\n")
	if err != nil {
		t.Fatalf("InjectTags failed: %v", err)
	}
	if strings.Contains(string(out), "term-old") {
		t.Errorf("old tags survived:\n%s", out)
	}
	if strings.Count(string(out), "<!-- tags:") != 1 {
		t.Errorf("want exactly one tags line:\n%s", out)
	}
}

func TestInjectTagsKeepsOtherBoxTags(t *testing.T) {
	body := []byte("<!-- locus:aaa-111 -->\n<!-- tags: [CITES: term-keep] -->\nfirst\n\n<!-- locus:bbb-222 -->\nsecond\n")
	out, err := InjectTags(body, "bbb-222", "<!-- tags: [CITES: term-new] -->\n")
	if err != nil {
		t.Fatalf("InjectTags failed: %v", err)
	}
	if !strings.Contains(string(out), "term-keep") {
		t.Errorf("tags on a different box were dropped:\n%s", out)
	}
}

func TestInjectTagsUnknownLocus(t *testing.T) {
	_, err := InjectTags([]byte("<!-- locus:aaa-111 -->\nbox\n"), "zzz-999", "<!-- tags: [CITES: x] -->\n")
	if err != ErrLocusNotFound {
		t.Fatalf("err = %v, want ErrLocusNotFound", err)
	}
}

func TestTokenCounters(t *testing.T) {
	ws, err := NewTokenCounter("whitespace")
	if err != nil {
		t.Fatalf("NewTokenCounter(whitespace) failed: %v", err)
	}
	if got := ws.Count("one two  three\nfour"); got != 4 {
		t.Errorf("whitespace count = %d, want 4", got)
	}
	if ws.Name() != "whitespace" {
		t.Errorf("Name = %q", ws.Name())
	}

	if _, err := NewTokenCounter("no-such-encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
