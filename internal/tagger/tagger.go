// Package tagger asks a chat model to suggest relationship tags for a
// box of Markdown. The model is treated as an opaque JSON oracle: the
// reply is repaired and parsed tolerantly, and anything unusable is
// dropped rather than surfaced as a hard failure.
package tagger

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"polyvis/internal/config"
	"polyvis/internal/errors"
	"polyvis/internal/logging"
)

const systemPrompt = `You annotate Markdown fragments for a knowledge graph.
Reply with ONLY a JSON array, no prose and no code fences. Each element is
{"type": <TYPE>, "target": <slug>} where TYPE is one of CITES, EXEMPLIFIES,
TAGGED_AS, RELATED_TO and target is a lowercase kebab-case concept slug
(e.g. "term-deep-work"). Suggest at most five tags. Reply [] when nothing
in the fragment deserves a tag.`

// Tag is one suggested relationship: an edge type plus a concept slug.
type Tag struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Tagger holds a chat client bound to the active provider's chat model.
type Tagger struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// New builds a tagger from the active provider. The provider must name
// a chatModel; embedding-only providers cannot tag.
func New(cfg *config.Config, logger *logging.Logger) (*Tagger, error) {
	name, provider, ok := cfg.ActiveProvider()
	if !ok {
		return nil, errors.New(errors.ConfigInvalid,
			fmt.Sprintf("active provider %q is not configured", name))
	}
	if provider.ChatModel == "" {
		return nil, errors.New(errors.ConfigInvalid,
			fmt.Sprintf("provider %q has no chatModel; tagging needs one", name))
	}

	opts := []option.RequestOption{option.WithAPIKey(provider.APIKey)}
	if provider.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(provider.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Tagger{client: &client, model: provider.ChatModel, logger: logger}, nil
}

// Model reports which chat model suggestions come from.
func (t *Tagger) Model() string { return t.model }

// SuggestTags asks the model to tag one fragment. The reply is parsed
// through the repair pipeline; suggestions with an unknown type or an
// empty target are discarded. Callers treat an error as "no tags".
func (t *Tagger) SuggestTags(ctx context.Context, content string) ([]Tag, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	res, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(content),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion with model %q failed: %w", t.model, err)
	}
	if len(res.Choices) == 0 {
		return nil, fmt.Errorf("chat model %q returned no choices", t.model)
	}

	var raw []Tag
	if err := unmarshalFlexible(res.Choices[0].Message.Content, &raw); err != nil {
		return nil, fmt.Errorf("unparseable tag reply: %w", err)
	}

	tags := make([]Tag, 0, len(raw))
	for _, tag := range raw {
		tag.Type = strings.ToUpper(strings.TrimSpace(tag.Type))
		tag.Target = strings.TrimSpace(tag.Target)
		if tag.Target == "" || !knownTagTypes[tag.Type] {
			t.logger.Debug("dropping malformed tag suggestion", logging.Fields{
				"type":   tag.Type,
				"target": tag.Target,
			})
			continue
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

var knownTagTypes = map[string]bool{
	"CITES":       true,
	"EXEMPLIFIES": true,
	"TAGGED_AS":   true,
	"RELATED_TO":  true,
}

// Marker renders tags as the on-disk annotation line:
//
//	<!-- tags: [CITES: term-foo], [EXEMPLIFIES: term-bar] -->
//
// An empty set renders as an empty string, not an empty marker.
func Marker(tags []Tag) string {
	if len(tags) == 0 {
		return ""
	}
	pairs := make([]string, len(tags))
	for i, tag := range tags {
		pairs[i] = fmt.Sprintf("[%s: %s]", tag.Type, tag.Target)
	}
	return "<!-- tags: " + strings.Join(pairs, ", ") + " -->"
}
