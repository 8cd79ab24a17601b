// Package types provides the core data structures shared across the
// knowledge collector: the normalized document model, cursors, analytics
// records, search queries/results, and the dynamic metadata value type.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Source identifies one of the supported upstream connectors.
type Source string

const (
	SourceJira        Source = "jira"
	SourceSlack       Source = "slack"
	SourceGmail       Source = "gmail"
	SourceDrive       Source = "drive"
	SourceConfluence  Source = "confluence"
	SourceCalendar    Source = "calendar"
	SourceGitHub      Source = "github"
)

// AllSources lists every supported source, in a stable order.
var AllSources = []Source{SourceJira, SourceSlack, SourceGmail, SourceDrive, SourceConfluence, SourceCalendar, SourceGitHub}

// Valid reports whether s names a known source.
func (s Source) Valid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// Value is a tagged union for open-ended document metadata: string,
// number, bool, or a list of Value. It lets Document.Metadata model
// per-source dynamic fields without losing type information the way a
// bare map[string]interface{} would.
type Value struct {
	Str  *string  `json:"s,omitempty"`
	Num  *float64 `json:"n,omitempty"`
	Bool *bool    `json:"b,omitempty"`
	List []Value  `json:"l,omitempty"`
}

// StringValue wraps a string as a Value.
func StringValue(s string) Value { return Value{Str: &s} }

// NumberValue wraps a float64 as a Value.
func NumberValue(n float64) Value { return Value{Num: &n} }

// BoolValue wraps a bool as a Value.
func BoolValue(b bool) Value { return Value{Bool: &b} }

// ListValue wraps a slice of Value as a Value.
func ListValue(vs []Value) Value { return Value{List: vs} }

// AsString returns the underlying string, or ok=false if Value does not
// hold a string.
func (v Value) AsString() (string, bool) {
	if v.Str == nil {
		return "", false
	}
	return *v.Str, true
}

// AsNumber returns the underlying number, or ok=false otherwise.
func (v Value) AsNumber() (float64, bool) {
	if v.Num == nil {
		return 0, false
	}
	return *v.Num, true
}

// AsBool returns the underlying bool, or ok=false otherwise.
func (v Value) AsBool() (bool, bool) {
	if v.Bool == nil {
		return false, false
	}
	return *v.Bool, true
}

// Metadata is the open-ended, per-document key-value bag described in
// spec.md §3. Reserved keys (id, source, type, title, createdAt,
// updatedAt, parentId) are plain Go fields on Document; everything else
// (including all per-source enrichment fields from §4.7) lives here.
type Metadata map[string]Value

// Clone returns a deep copy of m, used to guarantee relevance
// enrichment never mutates caller-owned metadata (spec.md §8,
// "Relevance immutability").
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	if v.List != nil {
		out := make([]Value, len(v.List))
		for i, e := range v.List {
			out[i] = cloneValue(e)
		}
		return Value{List: out}
	}
	return v
}

// GetString returns the string at key, or "" if absent or not a string.
func (m Metadata) GetString(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

// GetNumber returns the number at key, or 0 if absent or not a number.
func (m Metadata) GetNumber(key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	n, _ := v.AsNumber()
	return n
}

// GetBool returns the bool at key, or false if absent or not a bool.
func (m Metadata) GetBool(key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}

// Set stores a Value at key, creating the map if necessary, and returns
// the (possibly new) map — callers should reassign.
func (m Metadata) Set(key string, v Value) Metadata {
	if m == nil {
		m = Metadata{}
	}
	m[key] = v
	return m
}

// SetIfAbsent stores v at key only if key is not already present,
// modeling the "never overwrite incoming fields" rule of spec.md §4.7.
func (m Metadata) SetIfAbsent(key string, v Value) Metadata {
	if m == nil {
		m = Metadata{}
	}
	if _, exists := m[key]; !exists {
		m[key] = v
	}
	return m
}

// Chunk is a single pre-computed chunk a connector may supply in
// Document.PreChunked, overriding the store's own chunker when more than
// one is present (spec.md §3, §4.8 step 1).
type Chunk struct {
	Content  string   `json:"content"`
	Language *string  `json:"language,omitempty"`
}

// Document is the normalized unit produced by connectors and consumed by
// the indexing engine and vector store (spec.md §3).
type Document struct {
	ID         string   `json:"id"`
	Source     Source   `json:"source"`
	Content    string   `json:"content"`
	Metadata   Metadata `json:"metadata"`
	Type       string   `json:"type,omitempty"`
	Title      string   `json:"title,omitempty"`
	CreatedAt  string   `json:"createdAt,omitempty"`
	UpdatedAt  string   `json:"updatedAt,omitempty"`
	ParentID   string   `json:"parentId,omitempty"`
	PreChunked []Chunk  `json:"preChunked,omitempty"`
}

// Validate checks the invariants spec.md §3 states: metadata.id equals
// Document.id, and source matches.
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document id is required")
	}
	if !d.Source.Valid() {
		return fmt.Errorf("document %s: unknown source %q", d.ID, d.Source)
	}
	if d.Metadata != nil {
		if id := d.Metadata.GetString("id"); id != "" && id != d.ID {
			return fmt.Errorf("document %s: metadata.id %q does not match", d.ID, id)
		}
		if src := d.Metadata.GetString("source"); src != "" && Source(src) != d.Source {
			return fmt.Errorf("document %s: metadata.source %q does not match %q", d.ID, src, d.Source)
		}
	}
	return nil
}

// ContentHash computes the canonical, key-order-independent sha256 of
// {content, metadata} used to decide whether a document changed since
// the last sync (spec.md §3 DocumentHash, §8 "content-hash stability").
func (d *Document) ContentHash() string {
	return HashContentAndMetadata(d.Content, d.Metadata)
}

// HashContentAndMetadata canonicalizes content+metadata and returns its
// sha256 hex digest. Canonicalization means: marshal metadata keys in
// sorted order so that two maps with identical entries but different
// Go-iteration order produce the same hash.
func HashContentAndMetadata(content string, metadata Metadata) string {
	canon := struct {
		Content  string          `json:"content"`
		Metadata json.RawMessage `json:"metadata"`
	}{
		Content:  content,
		Metadata: canonicalizeMetadata(metadata),
	}
	b, err := json.Marshal(canon)
	if err != nil {
		// Marshaling a Metadata map of plain Values cannot fail; treat
		// as unreachable but stay defensive rather than panic.
		b = []byte(content)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func canonicalizeMetadata(m Metadata) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage("{}")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf
}

// Cursor is the per-source durable sync pointer (spec.md §3).
type Cursor struct {
	Source     Source   `json:"source"`
	LastSync   string   `json:"lastSync,omitempty"`
	SyncToken  string   `json:"syncToken,omitempty"`
	Metadata   Metadata `json:"metadata,omitempty"`
}

// ConfigKey returns the canonical configKey recorded in cursor metadata,
// or "" if unset.
func (c *Cursor) ConfigKey() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return c.Metadata.GetString("configKey")
}

// IndexStatusValue enumerates per-source job states (spec.md §3).
type IndexStatusValue string

const (
	StatusIdle      IndexStatusValue = "idle"
	StatusRunning   IndexStatusValue = "running"
	StatusCompleted IndexStatusValue = "completed"
	StatusError     IndexStatusValue = "error"
)

// IndexStatus is the per-source job status record (spec.md §3).
type IndexStatus struct {
	Source           Source           `json:"source"`
	Status           IndexStatusValue `json:"status"`
	LastSync         string           `json:"lastSync,omitempty"`
	DocumentsIndexed int64            `json:"documentsIndexed"`
	LastError        string           `json:"lastError,omitempty"`
	LastErrorAt      string           `json:"lastErrorAt,omitempty"`
	WorkflowID       string           `json:"workflowId,omitempty"`
}

// RunStatus enumerates IndexingRun terminal/non-terminal states.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// IndexingRun is one analytics record of a single batch/run (spec.md §3).
type IndexingRun struct {
	ID                 string    `json:"id"`
	Source             Source    `json:"source"`
	StartedAt          string    `json:"startedAt"`
	CompletedAt        string    `json:"completedAt,omitempty"`
	Status             RunStatus `json:"status"`
	DocumentsProcessed int       `json:"documentsProcessed"`
	DocumentsNew       int       `json:"documentsNew"`
	DocumentsUpdated   int       `json:"documentsUpdated"`
	DocumentsSkipped   int       `json:"documentsSkipped"`
	Error              string    `json:"error,omitempty"`
	DurationMs         int64     `json:"durationMs,omitempty"`
}

// SourceStats is the aggregate analytics view for one source.
type SourceStats struct {
	Source                  Source  `json:"source"`
	TotalRuns               int64   `json:"totalRuns"`
	SuccessfulRuns          int64   `json:"successfulRuns"`
	FailedRuns              int64   `json:"failedRuns"`
	LastRunAt               string  `json:"lastRunAt,omitempty"`
	LastSuccessAt           string  `json:"lastSuccessAt,omitempty"`
	AverageDurationMs       float64 `json:"averageDurationMs"`
	TotalDocumentsProcessed int64   `json:"totalDocumentsProcessed"`
}

// DailyCount is one day's bucket in the per-source daily histogram.
type DailyCount struct {
	Date      string `json:"date"`
	Runs      int64  `json:"runs"`
	Documents int64  `json:"documents"`
	Errors    int64  `json:"errors"`
}

// SystemStats aggregates SourceStats across sources plus a combined
// recent-runs feed (spec.md §4.2 get_system_stats).
type SystemStats struct {
	PerSource  map[Source]*SourceStats `json:"perSource"`
	RecentRuns []IndexingRun           `json:"recentRuns"`
}

// SearchType selects the retrieval strategy for a search request.
type SearchType string

const (
	SearchVector  SearchType = "vector"
	SearchKeyword SearchType = "keyword"
	SearchHybrid  SearchType = "hybrid"
)

// SearchQuery is a hybrid search request (spec.md §4.10).
type SearchQuery struct {
	Query      string
	Sources    []Source
	SearchType SearchType
	Limit      int
	Offset     int
	Where      map[string]string
	StartDate  *time.Time
	EndDate    *time.Time
}

// SearchResult is one ranked hit (spec.md §4.10).
type SearchResult struct {
	ID       string   `json:"id"`
	Source   Source   `json:"source"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// SearchResults wraps the full response of a search call.
type SearchResults struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// NavDirection enumerates navigation traversal directions (spec.md §4.11).
type NavDirection string

const (
	NavPrev     NavDirection = "prev"
	NavNext     NavDirection = "next"
	NavSiblings NavDirection = "siblings"
	NavParent   NavDirection = "parent"
	NavChildren NavDirection = "children"
)

// NavScope enumerates navigation scopes (spec.md §4.11).
type NavScope string

const (
	ScopeChunk     NavScope = "chunk"
	ScopeDatapoint NavScope = "datapoint"
	ScopeContext   NavScope = "context"
)

// NavInfo is the metadata block returned alongside navigation results.
type NavInfo struct {
	HasPrev       bool   `json:"hasPrev"`
	HasNext       bool   `json:"hasNext"`
	ParentID      string `json:"parentId,omitempty"`
	ContextType   string `json:"contextType,omitempty"`
	TotalSiblings int    `json:"totalSiblings"`
}

// NavigationResult is the output of Navigate (spec.md §4.11).
type NavigationResult struct {
	Current    *SearchResult  `json:"current"`
	Related    []SearchResult `json:"related"`
	Navigation NavInfo        `json:"navigation"`
}
