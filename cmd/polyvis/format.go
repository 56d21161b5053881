package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"polyvis/internal/export"
	"polyvis/internal/search"
)

// OutputFormat selects how a command response is rendered.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse renders a response in the requested format.
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman dispatches on the response type; unknown types fall back
// to JSON so nothing is ever silently dropped.
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *statusResponse:
		return formatStatusHuman(v)
	case *daemonStatus:
		return formatDaemonHuman(v)
	case *search.Response:
		return formatSearchHuman(v)
	case *ingestResponse:
		return formatIngestHuman(v)
	case *validateResponse:
		return formatValidateHuman(v)
	case *auditResponse:
		return formatAuditHuman(v)
	case *export.Summary:
		return formatExportHuman(v)
	default:
		return formatJSON(resp)
	}
}

func formatStatusHuman(resp *statusResponse) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("polyvis v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if !resp.Initialized {
		b.WriteString("⚠️ Not initialized (no polyvis.settings.json). Run 'polyvis init'.\n\n")
	}
	b.WriteString(fmt.Sprintf("Project: %s\n", resp.Root))
	b.WriteString(fmt.Sprintf("Provider: %s", resp.Provider))
	if resp.Model != "" {
		b.WriteString(fmt.Sprintf(" (%s, %d dims)", resp.Model, resp.Dimensions))
	}
	b.WriteString("\n\n")

	if resp.Stats != nil {
		b.WriteString(fmt.Sprintf("Database: %s (schema v%d, %s)\n",
			resp.Database, resp.Stats.SchemaVersion, formatBytes(resp.Stats.SizeBytes)))
		b.WriteString(fmt.Sprintf("  Nodes:   %d\n", resp.Stats.Nodes))
		b.WriteString(fmt.Sprintf("  Edges:   %d\n", resp.Stats.Edges))
		b.WriteString(fmt.Sprintf("  Vectors: %d\n", resp.Stats.Vectors))
		b.WriteString(fmt.Sprintf("  Loci minted: %d\n", resp.Loci))
	} else {
		b.WriteString(fmt.Sprintf("Database: %s (not created yet)\n", resp.Database))
	}
	b.WriteString("\n")

	if resp.Daemon.Running {
		icon := "✅"
		if !resp.Daemon.Healthy {
			icon = "⚠️"
		}
		b.WriteString(fmt.Sprintf("%s Daemon: running (PID %d, %s)", icon, resp.Daemon.PID, resp.Daemon.URL))
	} else {
		b.WriteString("⚠️ Daemon: not running (embedding falls back to the direct provider)")
	}

	return b.String(), nil
}

func formatDaemonHuman(resp *daemonStatus) (string, error) {
	if !resp.Running {
		return "⚠️ Daemon: not running\n\nStart it with 'polyvis daemon start'.", nil
	}
	health := "healthy"
	icon := "✅"
	if !resp.Healthy {
		health = "not answering /health"
		icon = "⚠️"
	}
	return fmt.Sprintf("%s Daemon: running (PID %d)\n   %s\n   %s", icon, resp.PID, resp.URL, health), nil
}

func formatSearchHuman(resp *search.Response) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Search: %s\n", resp.Query))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, e := range resp.Errors {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", e))
	}
	if len(resp.Errors) > 0 {
		b.WriteString("\n")
	}

	if len(resp.Results) == 0 {
		b.WriteString("No matches.")
		return b.String(), nil
	}

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, title, r.ID))
		b.WriteString(fmt.Sprintf("   score %.3f via %s\n", r.Score, r.Source))
		if r.Preview != "" {
			b.WriteString(fmt.Sprintf("   %s\n", r.Preview))
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("%d result(s)", len(resp.Results)))

	return b.String(), nil
}

func formatIngestHuman(resp *ingestResponse) (string, error) {
	var b strings.Builder
	s := resp.Stats

	b.WriteString(fmt.Sprintf("Ingest %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond)))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("  Files:   %d scanned, %d unchanged\n", s.FilesScanned, s.FilesSkipped))
	b.WriteString(fmt.Sprintf("  Boxes:   %d seen, %d unchanged\n", s.BoxesSeen, s.BoxesSkipped))
	b.WriteString(fmt.Sprintf("  Nodes:   %d upserted\n", s.NodesUpserted))
	b.WriteString(fmt.Sprintf("  Edges:   %d added (%d gate rejections)\n", s.EdgesAdded, s.GateRejections))
	b.WriteString(fmt.Sprintf("  Vectors: %d computed, %d failures\n\n", s.VectorsComputed, s.EmbedFailures))

	r := resp.Report
	icon := "✅"
	if !r.Passed {
		icon = "❌"
	}
	b.WriteString(fmt.Sprintf("%s %s\n", icon, r.Summary))
	for _, w := range r.Warnings {
		b.WriteString(fmt.Sprintf("  ⚠️ %s\n", w))
	}
	for _, e := range r.Errors {
		b.WriteString(fmt.Sprintf("  ❌ %s\n", e))
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func formatValidateHuman(resp *validateResponse) (string, error) {
	var b strings.Builder

	if resp.Report != nil {
		icon := "✅"
		if !resp.Report.Passed {
			icon = "❌"
		}
		b.WriteString(fmt.Sprintf("%s %s\n\n", icon, resp.Report.Summary))
		for _, c := range resp.Report.Results {
			icon := "✅"
			if c.Warning {
				icon = "⚠️"
			} else if !c.Passed {
				icon = "❌"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %s\n", icon, c.Name, c.Detail))
		}
	}

	if resp.Stats != nil {
		b.WriteString(fmt.Sprintf("\nStore: %d nodes, %d edges, %d vectors\n",
			resp.Stats.Nodes, resp.Stats.Edges, resp.Stats.Vectors))
	}

	for _, v := range resp.Violations {
		b.WriteString(fmt.Sprintf("❌ %s\n", v.String()))
	}
	if resp.Expectations != "" && len(resp.Violations) == 0 {
		b.WriteString(fmt.Sprintf("✅ counts within tolerance of %s\n", resp.Expectations))
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func formatAuditHuman(resp *auditResponse) (string, error) {
	var b strings.Builder
	r := resp.Result

	if r.Passed {
		b.WriteString(fmt.Sprintf("✅ audit passed: %d words preserved\n", r.SourceWords))
		b.WriteString(fmt.Sprintf("   %s == %s", resp.Source, resp.Boxed))
		return b.String(), nil
	}

	b.WriteString(fmt.Sprintf("❌ audit failed: %s diverges from %s\n", resp.Boxed, resp.Source))
	b.WriteString(fmt.Sprintf("   %d source words, %d boxed words, first divergence at word %d\n",
		r.SourceWords, r.BoxedWords, r.DivergedAt))
	b.WriteString(fmt.Sprintf("   source: %s\n", r.SourceNear))
	b.WriteString(fmt.Sprintf("   boxed:  %s", r.BoxedNear))

	return b.String(), nil
}

func formatExportHuman(s *export.Summary) (string, error) {
	target := s.Path
	if target == "" {
		target = "stdout"
	}
	compressed := ""
	if s.Compressed {
		compressed = ", zstd"
	}
	return fmt.Sprintf("✅ exported %d nodes, %d edges to %s (%s%s)",
		s.Nodes, s.Edges, target, formatBytes(s.Bytes), compressed), nil
}

// formatBytes formats byte size in human-readable form.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
