package weave

import (
	"regexp"
	"sort"
	"time"

	"polyvis/internal/logging"
	"polyvis/internal/storage"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// TimelineWeaver chains debrief nodes into a SUCCEEDS sequence so the
// graph can answer "what happened before this".
type TimelineWeaver struct {
	store  *storage.Store
	logger *logging.Logger
}

func NewTimelineWeaver(store *storage.Store, logger *logging.Logger) *TimelineWeaver {
	return &TimelineWeaver{store: store, logger: logger}
}

type datedNode struct {
	id   string
	date string
}

// Weave sorts dated debriefs newest first and links each to its
// predecessor. Chronology edges are structural, so they skip the gate.
func (t *TimelineWeaver) Weave() (Stats, error) {
	var stats Stats

	debriefs, err := t.store.GetNodesByType(storage.NodeTypeDebrief)
	if err != nil {
		return stats, err
	}

	dated := make([]datedNode, 0, len(debriefs))
	for _, node := range debriefs {
		date, ok := nodeDate(node)
		if !ok {
			stats.Skipped++
			t.logger.Debug("debrief has no date, excluded from timeline", logging.Fields{
				"id": node.ID,
			})
			continue
		}
		dated = append(dated, datedNode{id: node.ID, date: date})
	}

	sort.Slice(dated, func(i, j int) bool {
		if dated[i].date != dated[j].date {
			return dated[i].date > dated[j].date
		}
		return dated[i].id < dated[j].id
	})

	for i := 0; i+1 < len(dated); i++ {
		inserted, err := t.store.InsertEdge(storage.Edge{
			Source: dated[i].id,
			Target: dated[i+1].id,
			Type:   TypeSucceeds,
		})
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Added++
		}
	}

	return stats, nil
}

// nodeDate resolves a debrief's date in YYYY-MM-DD form. The
// frontmatter date field wins; a dated filename is the fallback. YAML
// parses bare dates into time.Time and round-tripping meta through
// JSON turns those into RFC3339 strings, so both spellings are
// truncated to the date part.
func nodeDate(node *storage.Node) (string, bool) {
	if raw, ok := node.Meta["date"]; ok {
		switch v := raw.(type) {
		case string:
			if m := isoDatePattern.FindString(v); m != "" {
				return m, true
			}
		case time.Time:
			return v.Format("2006-01-02"), true
		}
	}

	if source, ok := node.Meta["source"].(string); ok {
		if m := isoDatePattern.FindString(baseName(source)); m != "" {
			return m, true
		}
	}

	return "", false
}

// baseName strips directories without caring which separator the
// source path used.
func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
