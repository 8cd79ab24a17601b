package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

// Navigate implements spec.md §4.11: locate a point across every source
// collection, then dispatch by direction/scope to structural parent/child
// resolution or to a grouped chunk/datapoint/context traversal.
func (s *Store) Navigate(ctx context.Context, id string, direction types.NavDirection, scope types.NavScope, limit int) (types.NavigationResult, error) {
	if limit <= 0 {
		limit = 10
	}

	current, err := s.locate(ctx, id)
	if err != nil {
		return types.NavigationResult{}, err
	}

	switch direction {
	case types.NavParent:
		return s.navigateParent(ctx, current)
	case types.NavChildren:
		return s.navigateChildren(ctx, current, limit)
	case types.NavPrev, types.NavNext, types.NavSiblings:
		switch scope {
		case types.ScopeDatapoint, types.ScopeContext:
			return s.navigateGrouped(ctx, current, direction, scope, limit)
		default:
			return s.navigateChunk(ctx, current, direction, limit)
		}
	default:
		return types.NavigationResult{}, fmt.Errorf("vectorstore: navigate: unknown direction %q", direction)
	}
}

// locate finds the point carrying id across every source collection.
func (s *Store) locate(ctx context.Context, id string) (storedChunk, error) {
	for _, source := range types.AllSources {
		qctx, cancel := s.timeoutCtx(ctx)
		points, err := s.client.Get(qctx, &qdrant.GetPoints{
			CollectionName: collectionName(source),
			Ids:            []*qdrant.PointId{pointIDFromString(id)},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		cancel()
		if err != nil {
			continue
		}
		if len(points) > 0 {
			return decodePayload(id, points[0].GetPayload(), 0), nil
		}
	}
	return storedChunk{}, fmt.Errorf("vectorstore: navigate: document %q not found", id)
}

func (s *Store) scrollSource(ctx context.Context, source types.Source, filter *qdrant.Filter) ([]storedChunk, error) {
	var points []*qdrant.RetrievedPoint
	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		qctx, cancel := s.timeoutCtx(ctx)
		defer cancel()
		res, err := s.client.Scroll(qctx, &qdrant.ScrollPoints{
			CollectionName: collectionName(source),
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(scrollCandidateLimit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		points = res
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]storedChunk, len(points))
	for i, p := range points {
		out[i] = decodePayload(pointIDString(p.GetId()), p.GetPayload(), 0)
	}
	return out, nil
}

// navigateParent resolves the parent id via the per-source rule: a
// Confluence comment's logical parent is prefixed "confluence_", all
// other sources store parentId as-is.
func (s *Store) navigateParent(ctx context.Context, current storedChunk) (types.NavigationResult, error) {
	parentID := current.metadata.GetString("parentId")
	if parentID == "" {
		r := current.toSearchResult()
		return types.NavigationResult{Current: &r, Navigation: types.NavInfo{ParentID: ""}}, nil
	}
	if current.source == types.SourceConfluence && !strings.HasPrefix(parentID, "confluence_") {
		parentID = "confluence_" + parentID
	}

	parent, err := s.locate(ctx, docPointID(parentID))
	if err != nil {
		parent, err = s.locateByLogicalID(ctx, current.source, parentID)
		if err != nil {
			r := current.toSearchResult()
			return types.NavigationResult{Current: &r, Navigation: types.NavInfo{ParentID: parentID}}, nil
		}
	}

	curr := current.toSearchResult()
	rel := parent.toSearchResult()
	return types.NavigationResult{
		Current:    &curr,
		Related:    []types.SearchResult{rel},
		Navigation: types.NavInfo{ParentID: parentID},
	}, nil
}

func (s *Store) locateByLogicalID(ctx context.Context, source types.Source, logicalID string) (storedChunk, error) {
	chunks, err := s.scrollSource(ctx, source, &qdrant.Filter{Must: []*qdrant.Condition{fieldEquals("id", logicalID)}})
	if err != nil {
		return storedChunk{}, err
	}
	if len(chunks) == 0 {
		return storedChunk{}, fmt.Errorf("vectorstore: navigate: logical id %q not found", logicalID)
	}
	return chunks[0], nil
}

// navigateChildren concatenates points whose parentId matches the
// current document's logical id with points whose parentDocId matches
// the current chunk id, up to limit (spec.md §4.11 step 2, children).
func (s *Store) navigateChildren(ctx context.Context, current storedChunk, limit int) (types.NavigationResult, error) {
	logicalID := current.metadata.GetString("id")
	if logicalID == "" {
		logicalID = current.id
	}

	byParentID, err := s.scrollSource(ctx, current.source, &qdrant.Filter{Must: []*qdrant.Condition{fieldEquals("parentId", logicalID)}})
	if err != nil {
		return types.NavigationResult{}, err
	}
	byParentDocID, err := s.scrollSource(ctx, current.source, parentFilter(current.id))
	if err != nil {
		return types.NavigationResult{}, err
	}

	all := append(byParentID, byParentDocID...)
	if len(all) > limit {
		all = all[:limit]
	}

	related := make([]types.SearchResult, len(all))
	for i, c := range all {
		related[i] = c.toSearchResult()
	}
	curr := current.toSearchResult()
	return types.NavigationResult{
		Current:    &curr,
		Related:    related,
		Navigation: types.NavInfo{TotalSiblings: len(all)},
	}, nil
}

// navigateChunk implements scope=chunk: prev/next/siblings over the
// chunk sequence sharing parentDocId, ordered by chunkIndex.
func (s *Store) navigateChunk(ctx context.Context, current storedChunk, direction types.NavDirection, limit int) (types.NavigationResult, error) {
	parentDocID := current.parentDocID
	if parentDocID == "" {
		curr := current.toSearchResult()
		return types.NavigationResult{Current: &curr, Navigation: types.NavInfo{}}, nil
	}

	siblings, err := s.scrollSource(ctx, current.source, parentFilter(parentDocID))
	if err != nil {
		return types.NavigationResult{}, err
	}
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].chunkIndex < siblings[j].chunkIndex })

	curr := current.toSearchResult()
	info := types.NavInfo{ParentID: parentDocID, TotalSiblings: len(siblings)}

	switch direction {
	case types.NavSiblings:
		related := make([]types.SearchResult, 0, limit)
		for _, c := range siblings {
			if c.id == current.id {
				continue
			}
			related = append(related, c.toSearchResult())
			if len(related) >= limit {
				break
			}
		}
		return types.NavigationResult{Current: &curr, Related: related, Navigation: info}, nil
	case types.NavPrev, types.NavNext:
		var related []types.SearchResult
		for i, c := range siblings {
			if c.id != current.id {
				continue
			}
			if direction == types.NavPrev && i > 0 {
				related = append(related, siblings[i-1].toSearchResult())
				info.HasPrev = true
			}
			if direction == types.NavNext && i < len(siblings)-1 {
				related = append(related, siblings[i+1].toSearchResult())
				info.HasNext = true
			}
			break
		}
		return types.NavigationResult{Current: &curr, Related: related, Navigation: info}, nil
	}
	return types.NavigationResult{Current: &curr, Navigation: info}, nil
}

// groupKey returns the grouping field for scope=datapoint or
// scope=context per spec.md §4.11 step 2, and the contextType label.
func groupKey(source types.Source, scope types.NavScope, m types.Metadata) (field, value, contextType string) {
	switch source {
	case types.SourceSlack:
		if ts := m.GetString("threadTs"); ts != "" && scope != types.ScopeContext {
			return "threadTs", ts, "thread"
		}
		return "channelId", m.GetString("channelId"), "channel"
	case types.SourceGmail:
		return "threadId", m.GetString("threadId"), "thread"
	case types.SourceJira:
		if scope == types.ScopeContext {
			return "project", m.GetString("project"), "project"
		}
		if pid := m.GetString("parentId"); pid != "" {
			return "parentId", pid, "issue"
		}
		return "project", m.GetString("project"), "project"
	case types.SourceDrive:
		if scope == types.ScopeContext {
			return "folderPath", m.GetString("folderPath"), "folder"
		}
		return "folderPath", m.GetString("folderPath"), "folder"
	case types.SourceConfluence:
		if scope == types.ScopeContext {
			return "space", m.GetString("space"), "space"
		}
		if pid := m.GetString("parentId"); pid != "" {
			return "parentId", pid, "page"
		}
		return "space", m.GetString("space"), "space"
	case types.SourceCalendar:
		return "", "", "calendar"
	case types.SourceGitHub:
		if scope == types.ScopeContext {
			return "repo", m.GetString("repo"), "repo"
		}
		if pid := m.GetString("parentId"); pid != "" {
			return "parentId", pid, "pr"
		}
		return "repo", m.GetString("repo"), "repo"
	default:
		return "", "", "document"
	}
}

// timestampField returns the per-source field used to order a group
// (spec.md §4.11 step 2: timestamp/date/start/updatedAt).
func timestampField(source types.Source) string {
	switch source {
	case types.SourceCalendar:
		return "start"
	case types.SourceGmail:
		return "date"
	case types.SourceSlack:
		return "timestamp"
	default:
		return "updatedAt"
	}
}

// navigateGrouped implements scope=datapoint and scope=context: filter
// by the source-specific group, sort by the source's timestamp field,
// and return limit items on the selected side of the current point.
func (s *Store) navigateGrouped(ctx context.Context, current storedChunk, direction types.NavDirection, scope types.NavScope, limit int) (types.NavigationResult, error) {
	field, value, contextType := groupKey(current.source, scope, current.metadata)

	var filter *qdrant.Filter
	if field != "" && value != "" {
		filter = &qdrant.Filter{Must: []*qdrant.Condition{fieldEquals(field, value)}}
	}

	group, err := s.scrollSource(ctx, current.source, filter)
	if err != nil {
		return types.NavigationResult{}, err
	}

	tsField := timestampField(current.source)
	sort.Slice(group, func(i, j int) bool {
		return group[i].metadata.GetString(tsField) < group[j].metadata.GetString(tsField)
	})

	idx := -1
	for i, c := range group {
		if c.id == current.id {
			idx = i
			break
		}
	}

	info := types.NavInfo{ContextType: contextType, TotalSiblings: len(group)}
	if field != "" {
		info.ParentID = value
	}
	curr := current.toSearchResult()

	if idx < 0 {
		return types.NavigationResult{Current: &curr, Navigation: info}, nil
	}

	var related []storedChunk
	switch direction {
	case types.NavPrev:
		start := idx - limit
		if start < 0 {
			start = 0
		}
		related = group[start:idx]
		info.HasPrev = idx > 0
	case types.NavNext:
		end := idx + 1 + limit
		if end > len(group) {
			end = len(group)
		}
		related = group[idx+1 : end]
		info.HasNext = end < len(group)
	default: // siblings
		for i, c := range group {
			if i == idx {
				continue
			}
			related = append(related, c)
			if len(related) >= limit {
				break
			}
		}
	}

	relResults := make([]types.SearchResult, len(related))
	for i, c := range related {
		relResults[i] = c.toSearchResult()
	}
	return types.NavigationResult{Current: &curr, Related: relResults, Navigation: info}, nil
}
