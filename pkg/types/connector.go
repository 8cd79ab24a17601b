package types

import "context"

// GmailFilterSettings carries the three Gmail-specific filter groups
// described in spec.md §4.5: domains, senders, labels, each OR-joined
// internally and AND-joined with each other.
type GmailFilterSettings struct {
	Domains []string `json:"domains,omitempty"`
	Senders []string `json:"senders,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

// IndexRequest is the filter-carrying request passed to a connector's
// Fetch, merged with persisted settings by the indexing engine
// (spec.md §4.5, §4.6).
type IndexRequest struct {
	FullReindex  bool                 `json:"fullReindex,omitempty"`
	ProjectKeys  []string             `json:"projectKeys,omitempty"`
	ChannelIDs   []string             `json:"channelIds,omitempty"`
	FolderIDs    []string             `json:"folderIds,omitempty"`
	CalendarIDs  []string             `json:"calendarIds,omitempty"`
	SpaceKeys    []string             `json:"spaceKeys,omitempty"`
	Repos        []string             `json:"repos,omitempty"`
	IndexFiles   *bool                `json:"indexFiles,omitempty"`
	GmailSettings *GmailFilterSettings `json:"gmailSettings,omitempty"`
}

// Clone returns a shallow-safe copy of r suitable for request-wins
// merging without aliasing the caller's slices.
func (r IndexRequest) Clone() IndexRequest {
	out := r
	out.ProjectKeys = append([]string(nil), r.ProjectKeys...)
	out.ChannelIDs = append([]string(nil), r.ChannelIDs...)
	out.FolderIDs = append([]string(nil), r.FolderIDs...)
	out.CalendarIDs = append([]string(nil), r.CalendarIDs...)
	out.SpaceKeys = append([]string(nil), r.SpaceKeys...)
	out.Repos = append([]string(nil), r.Repos...)
	if r.IndexFiles != nil {
		v := *r.IndexFiles
		out.IndexFiles = &v
	}
	if r.GmailSettings != nil {
		gs := *r.GmailSettings
		gs.Domains = append([]string(nil), r.GmailSettings.Domains...)
		gs.Senders = append([]string(nil), r.GmailSettings.Senders...)
		gs.Labels = append([]string(nil), r.GmailSettings.Labels...)
		out.GmailSettings = &gs
	}
	return out
}

// NewCursor is the advisory cursor a connector hands back; the engine
// composes the final persisted Cursor from it (spec.md §4.5).
type NewCursor struct {
	SyncToken string   `json:"syncToken,omitempty"`
	Metadata  Metadata `json:"metadata,omitempty"`
}

// ConnectorResult is the uniform output of Connector.Fetch (spec.md §4.5).
type ConnectorResult struct {
	Documents     []Document `json:"documents"`
	NewCursor     NewCursor  `json:"newCursor"`
	HasMore       bool       `json:"hasMore"`
	BatchLastSync string     `json:"batchLastSync,omitempty"`
}

// Connector is the uniform per-source fetch contract of spec.md §4.5.
// Implementations must be deterministic given the same cursor and
// backend state, assign stable Document.id values, and embed any
// offset/page-token state under NewCursor.SyncToken so the engine can
// persist and replay it.
type Connector interface {
	// SourceName identifies the connector; it must match a Source
	// constant exactly.
	SourceName() Source

	// IsConfigured reports whether the connector has the credentials
	// it needs to run (e.g. an OAuth refresh token or API key).
	IsConfigured() bool

	// Fetch performs exactly one page of retrieval. cursor is nil on a
	// full reindex or on the very first run for a source.
	Fetch(ctx context.Context, cursor *Cursor, request IndexRequest) (ConnectorResult, error)
}
