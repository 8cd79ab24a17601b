package vectorstore

import (
	"fmt"
	"strings"
	"time"

	"knowledge-collector/pkg/types"
)

// buildContextHeader builds the short structured prefix prepended to
// every chunk before embedding (spec.md §4.8 step 2, GLOSSARY "Context
// header"): title, source, a few key per-source fields, and a formatted
// date. The header is not stored in the payload, so keyword substring
// search and returned content see only the raw chunk.
func buildContextHeader(source types.Source, d *types.Document) string {
	var lines []string
	if d.Title != "" {
		lines = append(lines, d.Title)
	}
	lines = append(lines, fmt.Sprintf("source: %s", source))

	if d.Type != "" {
		lines = append(lines, fmt.Sprintf("type: %s", d.Type))
	}

	for _, field := range sourceContextFields(source) {
		if v := d.Metadata.GetString(field); v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", field, v))
		}
	}

	if date := formattedDate(d.UpdatedAt, d.CreatedAt); date != "" {
		lines = append(lines, fmt.Sprintf("date: %s", date))
	}

	return strings.Join(lines, "\n")
}

func sourceContextFields(source types.Source) []string {
	switch source {
	case types.SourceJira:
		return []string{"project", "assignee", "status", "priority"}
	case types.SourceSlack:
		return []string{"channel", "channel_type"}
	case types.SourceGmail:
		return []string{"from", "to"}
	case types.SourceDrive:
		return []string{"owner", "folderPath"}
	case types.SourceConfluence:
		return []string{"space"}
	case types.SourceCalendar:
		return []string{"organizer"}
	case types.SourceGitHub:
		return []string{"repo", "author"}
	default:
		return nil
	}
}

func formattedDate(primary, fallback string) string {
	raw := primary
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
