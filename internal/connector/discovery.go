package connector

import "context"

// DiscoveryItem is one entry in a connector's helper listing (spec.md
// §6 "/index/discovery/{...}") — an identifier the caller can feed back
// into IndexRequest's filter fields, plus a human-readable label.
type DiscoveryItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Discoverer is implemented by connectors that can list the filterable
// identifiers available upstream (Jira projects, Slack channels, Drive
// folders, Confluence spaces, Calendar calendars, Gmail labels).
// GitHub has no discovery endpoint in spec.md §6 and so does not
// implement it.
type Discoverer interface {
	Discover(ctx context.Context) ([]DiscoveryItem, error)
}
