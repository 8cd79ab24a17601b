package indexer

import (
	"sort"
	"strings"

	"knowledge-collector/pkg/types"
)

// canonicalConfigKey builds the canonical sorted serialization of the
// filter-carrying subset of request described in spec.md §4.6 step 2:
// sorted arrays joined by comma, Gmail's {domains,senders,labels} each
// sorted independently and appended as their own segment.
func canonicalConfigKey(req types.IndexRequest) string {
	var parts []string
	parts = append(parts, "projectKeys="+sortedJoin(req.ProjectKeys))
	parts = append(parts, "channelIds="+sortedJoin(req.ChannelIDs))
	parts = append(parts, "folderIds="+sortedJoin(req.FolderIDs))
	parts = append(parts, "calendarIds="+sortedJoin(req.CalendarIDs))
	parts = append(parts, "spaceKeys="+sortedJoin(req.SpaceKeys))
	parts = append(parts, "repos="+sortedJoin(req.Repos))
	if req.IndexFiles != nil {
		parts = append(parts, "indexFiles="+boolString(*req.IndexFiles))
	}
	if req.GmailSettings != nil {
		parts = append(parts,
			"gmail.domains="+sortedJoin(req.GmailSettings.Domains),
			"gmail.senders="+sortedJoin(req.GmailSettings.Senders),
			"gmail.labels="+sortedJoin(req.GmailSettings.Labels),
		)
	}
	return strings.Join(parts, "|")
}

func sortedJoin(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// mergeSettings applies request-wins semantics: a field already set on
// request is kept as-is, otherwise the persisted value is copied in.
// Gmail settings merge per-subfield (spec.md §4.6 step 1).
func mergeSettings(request, persisted types.IndexRequest) types.IndexRequest {
	merged := request.Clone()

	if len(merged.ProjectKeys) == 0 {
		merged.ProjectKeys = persisted.ProjectKeys
	}
	if len(merged.ChannelIDs) == 0 {
		merged.ChannelIDs = persisted.ChannelIDs
	}
	if len(merged.FolderIDs) == 0 {
		merged.FolderIDs = persisted.FolderIDs
	}
	if len(merged.CalendarIDs) == 0 {
		merged.CalendarIDs = persisted.CalendarIDs
	}
	if len(merged.SpaceKeys) == 0 {
		merged.SpaceKeys = persisted.SpaceKeys
	}
	if len(merged.Repos) == 0 {
		merged.Repos = persisted.Repos
	}
	if merged.IndexFiles == nil {
		merged.IndexFiles = persisted.IndexFiles
	}

	switch {
	case merged.GmailSettings == nil:
		merged.GmailSettings = persisted.GmailSettings
	case persisted.GmailSettings != nil:
		if len(merged.GmailSettings.Domains) == 0 {
			merged.GmailSettings.Domains = persisted.GmailSettings.Domains
		}
		if len(merged.GmailSettings.Senders) == 0 {
			merged.GmailSettings.Senders = persisted.GmailSettings.Senders
		}
		if len(merged.GmailSettings.Labels) == 0 {
			merged.GmailSettings.Labels = persisted.GmailSettings.Labels
		}
	}

	return merged
}
