package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"knowledge-collector/internal/config"
	"knowledge-collector/pkg/types"
)

// jiraPageSize bounds a single Jira search page (spec.md §4.5 "conventional
// paging").
const jiraPageSize = 50

// Jira implements types.Connector for Jira Cloud's REST search API with
// conventional offset-based paging.
type Jira struct {
	cfg    config.JiraConfig
	client *http.Client
}

// NewJira builds a Jira connector from its configured credentials.
func NewJira(cfg config.JiraConfig) *Jira {
	return &Jira{cfg: cfg, client: newHTTPClient()}
}

func (j *Jira) SourceName() types.Source { return types.SourceJira }

func (j *Jira) IsConfigured() bool {
	return j.cfg.BaseURL != "" && j.cfg.Username != "" && j.cfg.APIToken != ""
}

type jiraSearchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []jiraIssue `json:"issues"`
}

type jiraIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Project     struct {
			Key string `json:"key"`
		} `json:"project"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee struct {
			Name         string `json:"name"`
			EmailAddress string `json:"emailAddress"`
		} `json:"assignee"`
		Parent struct {
			Key string `json:"key"`
		} `json:"parent"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

// Fetch implements spec.md §4.5: one page of a JQL search, resuming
// from cursor.syncToken's recorded startAt offset (Jira has no token
// concept of its own, so the connector embeds the offset as JSON).
func (j *Jira) Fetch(ctx context.Context, cursor *types.Cursor, request types.IndexRequest) (types.ConnectorResult, error) {
	startAt := 0
	if cursor != nil && cursor.SyncToken != "" {
		if n, err := strconv.Atoi(cursor.SyncToken); err == nil {
			startAt = n
		}
	}

	jql := j.buildJQL(cursor, request)
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(jiraPageSize))
	q.Set("fields", "summary,description,project,priority,assignee,parent,created,updated")

	var resp jiraSearchResponse
	reqURL := strings.TrimRight(j.cfg.BaseURL, "/") + "/rest/api/2/search?" + q.Encode()
	err := doJSON(ctx, j.client, http.MethodGet, reqURL, map[string]string{
		"Authorization": basicAuthHeader(j.cfg.Username, j.cfg.APIToken),
		"Accept":        "application/json",
	}, &resp)
	if err != nil && isStaleTokenError(err) {
		startAt = 0
		q.Set("startAt", "0")
		reqURL = strings.TrimRight(j.cfg.BaseURL, "/") + "/rest/api/2/search?" + q.Encode()
		err = doJSON(ctx, j.client, http.MethodGet, reqURL, map[string]string{
			"Authorization": basicAuthHeader(j.cfg.Username, j.cfg.APIToken),
			"Accept":        "application/json",
		}, &resp)
	}
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: jira fetch: %w", err)
	}

	docs := make([]types.Document, 0, len(resp.Issues))
	batchLastSync := ""
	for _, issue := range resp.Issues {
		m := types.Metadata{}
		m = m.Set("project", types.StringValue(issue.Fields.Project.Key))
		m = m.Set("priority", types.StringValue(issue.Fields.Priority.Name))
		m = m.Set("assignee", types.StringValue(firstNonEmptyStr(issue.Fields.Assignee.EmailAddress, issue.Fields.Assignee.Name)))
		if issue.Fields.Parent.Key != "" {
			m = m.Set("parentId", types.StringValue(issue.Fields.Parent.Key))
		}

		docs = append(docs, types.Document{
			ID:        issue.Key,
			Source:    types.SourceJira,
			Content:   issue.Fields.Summary + "\n\n" + issue.Fields.Description,
			Title:     issue.Fields.Summary,
			Type:      "issue",
			CreatedAt: issue.Fields.Created,
			UpdatedAt: issue.Fields.Updated,
			ParentID:  issue.Fields.Parent.Key,
			Metadata:  m,
		})
		if issue.Fields.Updated > batchLastSync {
			batchLastSync = issue.Fields.Updated
		}
	}

	nextStart := startAt + len(resp.Issues)
	hasMore := nextStart < resp.Total
	syncToken := ""
	if hasMore {
		syncToken = strconv.Itoa(nextStart)
	}

	return types.ConnectorResult{
		Documents:     docs,
		NewCursor:     types.NewCursor{SyncToken: syncToken},
		HasMore:       hasMore,
		BatchLastSync: batchLastSync,
	}, nil
}

func (j *Jira) buildJQL(cursor *types.Cursor, request types.IndexRequest) string {
	var clauses []string
	if len(request.ProjectKeys) > 0 {
		clauses = append(clauses, "project in ("+strings.Join(quoteAll(request.ProjectKeys), ",")+")")
	}
	if !request.FullReindex && cursor != nil && cursor.LastSync != "" {
		clauses = append(clauses, fmt.Sprintf("updated >= \"%s\"", cursor.LastSync))
	}
	clauses = append(clauses, "ORDER BY updated ASC")
	if len(clauses) == 1 {
		return clauses[0]
	}
	return strings.Join(clauses[:len(clauses)-1], " AND ") + " " + clauses[len(clauses)-1]
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Quote(v)
	}
	return out
}

func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type jiraProjectsResponse struct {
	Values []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"values"`
}

// Discover lists the Jira projects available to populate
// IndexRequest.ProjectKeys.
func (j *Jira) Discover(ctx context.Context) ([]DiscoveryItem, error) {
	reqURL := strings.TrimRight(j.cfg.BaseURL, "/") + "/rest/api/2/project/search"
	var resp jiraProjectsResponse
	err := doJSON(ctx, j.client, http.MethodGet, reqURL, map[string]string{
		"Authorization": basicAuthHeader(j.cfg.Username, j.cfg.APIToken),
		"Accept":        "application/json",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("jira: discover projects: %w", err)
	}
	items := make([]DiscoveryItem, len(resp.Values))
	for i, p := range resp.Values {
		items[i] = DiscoveryItem{ID: p.Key, Name: p.Name}
	}
	return items, nil
}
