package mcp

import "polyvis/internal/search"

// SearchDocumentsInput is the input for the search_documents tool.
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema:"Search query text"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

// SearchDocumentsOutput is the output for the search_documents tool.
type SearchDocumentsOutput struct {
	Query   string          `json:"query" jsonschema:"Echo of the query"`
	Results []search.Result `json:"results" jsonschema:"Ranked matches across the vector and keyword paths"`
	Errors  []string        `json:"errors,omitempty" jsonschema:"Search paths that degraded while results were still produced"`
}

// ReadNodeContentInput is the input for the read_node_content tool.
type ReadNodeContentInput struct {
	ID string `json:"id" jsonschema:"Node id: a locus id or a term-/directive- slug"`
}

// ReadNodeContentOutput is the output for the read_node_content tool.
type ReadNodeContentOutput struct {
	ID        string `json:"id" jsonschema:"Node id"`
	Type      string `json:"type" jsonschema:"Node type (note, concept, directive, ...)"`
	Title     string `json:"title" jsonschema:"Node title"`
	Content   string `json:"content" jsonschema:"Full node content with markers stripped"`
	Domain    string `json:"domain,omitempty" jsonschema:"Domain grouping"`
	Layer     string `json:"layer,omitempty" jsonschema:"Graph layer"`
	CreatedAt string `json:"createdAt,omitempty" jsonschema:"First-seen timestamp"`
}

// ExploreLinksInput is the input for the explore_links tool.
type ExploreLinksInput struct {
	ID string `json:"id" jsonschema:"Node id whose edges to list"`
}

// Link is one edge as seen from the queried node.
type Link struct {
	Direction string `json:"direction" jsonschema:"out when the queried node is the source, in otherwise"`
	Type      string `json:"type" jsonschema:"Edge type (CITES, EXEMPLIFIES, SUCCEEDS, ...)"`
	Other     string `json:"other" jsonschema:"Id of the node on the far end"`
	Title     string `json:"title,omitempty" jsonschema:"Title of the far node when it resolves"`
}

// ExploreLinksOutput is the output for the explore_links tool.
type ExploreLinksOutput struct {
	ID    string `json:"id" jsonschema:"Echo of the queried node id"`
	Title string `json:"title" jsonschema:"Title of the queried node"`
	Links []Link `json:"links" jsonschema:"Edges touching the node, outgoing first"`
	Count int    `json:"count" jsonschema:"Number of links"`
}

// ListDirectoryStructureInput is the input for the
// list_directory_structure tool. It takes no parameters.
type ListDirectoryStructureInput struct{}

// SourceTree is one configured experience source and its documents.
type SourceTree struct {
	Path  string   `json:"path" jsonschema:"Source directory as configured"`
	Type  string   `json:"type" jsonschema:"Node type assigned to documents from this source"`
	Files []string `json:"files" jsonschema:"Markdown files under the source, relative to it"`
}

// PersonaFiles reports the configured persona artifacts.
type PersonaFiles struct {
	Lexicon string `json:"lexicon,omitempty" jsonschema:"Lexicon path when configured and present"`
	CDA     string `json:"cda,omitempty" jsonschema:"Directive array path when configured and present"`
}

// ListDirectoryStructureOutput is the output for the
// list_directory_structure tool.
type ListDirectoryStructureOutput struct {
	Root    string       `json:"root" jsonschema:"Project root"`
	Sources []SourceTree `json:"sources" jsonschema:"Configured experience sources"`
	Persona PersonaFiles `json:"persona" jsonschema:"Persona artifacts"`
	Errors  []string     `json:"errors,omitempty" jsonschema:"Sources that could not be walked"`
}

// TagSpec is one relationship annotation to inject.
type TagSpec struct {
	Type   string `json:"type" jsonschema:"Edge type such as CITES or EXEMPLIFIES"`
	Target string `json:"target" jsonschema:"Target concept slug such as term-foo"`
}

// InjectTagsInput is the input for the inject_tags tool.
type InjectTagsInput struct {
	Path  string    `json:"path" jsonschema:"Markdown file to annotate, relative to the project root"`
	Locus string    `json:"locus" jsonschema:"Locus id of the box to annotate"`
	Tags  []TagSpec `json:"tags" jsonschema:"Tags to write; replaces any existing tags line on the box"`
}

// InjectTagsOutput is the output for the inject_tags tool.
type InjectTagsOutput struct {
	Path   string `json:"path" jsonschema:"Annotated file"`
	Locus  string `json:"locus" jsonschema:"Annotated locus"`
	Marker string `json:"marker" jsonschema:"Tags line as written"`
	Tags   int    `json:"tags" jsonschema:"Number of tags written"`
}
