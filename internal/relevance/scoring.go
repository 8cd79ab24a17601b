// Package relevance implements the per-source enrichment and scoring
// pass described in spec.md §4.7: derived metadata fields plus a
// relevance_score in [0, 1], computed without ever mutating the input
// documents (spec.md §8 "Relevance immutability").
package relevance

import (
	"math"
	"strings"
	"time"

	"knowledge-collector/pkg/types"
)

const day = 24 * time.Hour

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// priorityWeight maps a Jira/GitHub-style priority label to its weight.
func priorityWeight(priority string) float64 {
	switch strings.ToLower(priority) {
	case "critical", "blocker", "highest":
		return 5
	case "high":
		return 4
	case "medium":
		return 3
	case "low":
		return 2
	default:
		return 1
	}
}

// daysSince returns floor((now-date)/day), or 999 if date cannot be
// parsed (spec.md §4.7 days_since).
func daysSince(now time.Time, date string) float64 {
	if date == "" {
		return 999
	}
	t, err := parseTime(date)
	if err != nil {
		return 999
	}
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return math.Floor(d.Hours() / 24)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: s}
}

// Enricher computes per-source relevance metadata. Construct one with
// the identity the running deployment is configured for.
type Enricher struct {
	Identity Identity
	Now      func() time.Time
}

// NewEnricher builds an Enricher; now defaults to time.Now when nil.
func NewEnricher(identity Identity, now func() time.Time) *Enricher {
	if now == nil {
		now = time.Now
	}
	return &Enricher{Identity: identity, Now: now}
}

// AddRelevanceWeights is the pure transform of spec.md §4.6 step 4: it
// returns new Document values with derived metadata and relevance_score
// attached, never mutating docs.
func (e *Enricher) AddRelevanceWeights(source types.Source, docs []types.Document) []types.Document {
	out := make([]types.Document, len(docs))
	threadCounts := countByKey(docs, "threadId")

	for i, d := range docs {
		cloned := d
		cloned.Metadata = d.Metadata.Clone()
		e.enrichOne(source, &cloned, threadCounts)
		out[i] = cloned
	}
	return out
}

func countByKey(docs []types.Document, key string) map[string]int {
	counts := make(map[string]int, len(docs))
	for _, d := range docs {
		if d.Metadata == nil {
			continue
		}
		if v := d.Metadata.GetString(key); v != "" {
			counts[v]++
		}
	}
	return counts
}

func (e *Enricher) enrichOne(source types.Source, d *types.Document, threadCounts map[string]int) {
	now := e.Now()
	m := d.Metadata
	if m == nil {
		m = types.Metadata{}
	}

	var score float64
	switch source {
	case types.SourceGmail:
		score = e.scoreGmail(m, now, threadCounts)
	case types.SourceSlack:
		score = e.scoreSlack(m)
	case types.SourceJira:
		score = e.scoreJira(m, now)
	case types.SourceDrive:
		score = e.scoreDrive(m, now)
	case types.SourceConfluence:
		score = e.scoreConfluence(m, now)
	case types.SourceCalendar:
		score = e.scoreCalendar(m, now)
	case types.SourceGitHub:
		score = e.scoreGitHub(m, now)
	default:
		score = 0.5
	}

	m = m.Set("relevance_score", types.NumberValue(clamp01(score)))
	d.Metadata = m
}

func (e *Enricher) scoreGmail(m types.Metadata, now time.Time, threadCounts map[string]int) float64 {
	score := 0.5
	from := m.GetString("from")
	internal := e.Identity.isInternal(from)
	m.Set("is_internal", types.BoolValue(internal))
	if internal {
		score += 0.2
	}

	recipientCount := int(m.GetNumber("recipient_count"))
	if recipientCount == 0 {
		recipientCount = len(strings.Split(m.GetString("to"), ","))
	}
	if recipientCount > 0 && recipientCount <= 3 {
		score += 0.15
	}

	threadDepth := threadDepthFor(m, threadCounts)
	if threadDepth > 1 {
		score += 0.1
	}
	return clamp01(score)
}

func threadDepthFor(m types.Metadata, threadCounts map[string]int) int {
	if v, ok := m["threadMessageCount"]; ok {
		if n, ok := v.AsNumber(); ok {
			return int(n)
		}
	}
	threadID := m.GetString("threadId")
	if threadID == "" {
		return 0
	}
	return threadCounts[threadID]
}

func (e *Enricher) scoreSlack(m types.Metadata) float64 {
	score := 0.5
	channel := m.GetString("channel")
	channelType := "public"
	if strings.HasPrefix(channel, "DM") {
		channelType = "dm"
	}
	m.Set("channel_type", types.StringValue(channelType))

	switch {
	case channelType == "dm":
		score += 0.3
	case m.GetBool("is_mpim"):
		score += 0.2
	case m.GetBool("is_private"):
		score += 0.15
	}

	if m.GetBool("has_mention") {
		score += 0.1
	}
	if m.GetBool("is_thread_participant") {
		score += 0.05
	}
	return clamp01(score)
}

func (e *Enricher) scoreJira(m types.Metadata, now time.Time) float64 {
	score := 0.3
	if e.Identity.isCurrentUser("jira", m.GetString("assignee")) {
		score += 0.3
	}

	weight := priorityWeight(m.GetString("priority"))
	m.Set("priority_weight", types.NumberValue(weight))
	score += weight * 0.06

	days := daysSince(now, m.GetString("updatedAt"))
	m.Set("days_since_update", types.NumberValue(days))
	switch {
	case days < 7:
		score += 0.15
	case days < 30:
		score += 0.05
	}
	return clamp01(score)
}

func (e *Enricher) scoreDrive(m types.Metadata, now time.Time) float64 {
	score := 0.4
	isOwner := m.GetBool("is_owner") || e.Identity.isCurrentUser("drive", m.GetString("owner"))
	m.Set("is_owner", types.BoolValue(isOwner))
	if isOwner {
		score += 0.2
	}

	days := daysSince(now, m.GetString("modifiedTime"))
	if days == 999 {
		days = daysSince(now, m.GetString("updatedAt"))
	}
	m.Set("days_since_update", types.NumberValue(days))
	switch {
	case days < 7:
		score += 0.2
	case days < 30:
		score += 0.1
	}
	return clamp01(score)
}

func (e *Enricher) scoreConfluence(m types.Metadata, now time.Time) float64 {
	score := 0.4
	labelCount := int(m.GetNumber("label_count"))
	if labelCount == 0 {
		if v, ok := m["labels"]; ok {
			labelCount = len(v.List)
		}
	}
	m.Set("label_count", types.NumberValue(float64(labelCount)))
	if labelCount > 0 {
		score += 0.15
	}

	depth := m.GetNumber("hierarchy_depth")
	if depth > 0 && depth <= 2 {
		score += 0.1
	}

	days := daysSince(now, m.GetString("updatedAt"))
	m.Set("days_since_update", types.NumberValue(days))
	switch {
	case days < 7:
		score += 0.2
	case days < 30:
		score += 0.1
	}
	return clamp01(score)
}

func (e *Enricher) scoreCalendar(m types.Metadata, now time.Time) float64 {
	score := 0.5
	isOrganizer := m.GetBool("is_organizer") || e.Identity.isCurrentUser("calendar", m.GetString("organizer"))
	m.Set("is_organizer", types.BoolValue(isOrganizer))
	if isOrganizer {
		score += 0.2
	}

	attendeeCount := int(m.GetNumber("attendee_count"))
	if attendeeCount == 0 {
		if v, ok := m["attendees"]; ok {
			attendeeCount = len(v.List)
		}
	}
	m.Set("attendee_count", types.NumberValue(float64(attendeeCount)))
	if attendeeCount > 0 && attendeeCount <= 5 {
		score += 0.1
	}

	if start, err := parseTime(m.GetString("start")); err == nil {
		until := start.Sub(now)
		switch {
		case until >= 0 && until <= day:
			score += 0.2
		case until >= 0 && until <= 7*day:
			score += 0.1
		}
	}
	return clamp01(score)
}

func (e *Enricher) scoreGitHub(m types.Metadata, now time.Time) float64 {
	score := 0.4
	if e.Identity.isCurrentUser("github", m.GetString("author")) {
		score += 0.2
	}
	if e.Identity.isCurrentUser("github", m.GetString("assignee")) {
		score += 0.2
	}

	days := daysSince(now, m.GetString("updatedAt"))
	m.Set("days_since_update", types.NumberValue(days))
	switch {
	case days < 7:
		score += 0.15
	case days < 30:
		score += 0.05
	}
	return clamp01(score)
}
