package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"knowledge-collector/internal/config"
	"knowledge-collector/pkg/types"
)

const gmailPageSize = 100

// gmailState tracks the two-mode state machine of spec.md §4.5: an
// initial "list" pass paginating messages.list, followed by an ongoing
// "history" pass driven by Gmail's historyId change feed.
type gmailMode string

const (
	gmailModeList    gmailMode = "list"
	gmailModeHistory gmailMode = "history"
)

type gmailState struct {
	Mode      gmailMode `json:"mode"`
	PageToken string    `json:"pageToken,omitempty"`
	HistoryID string    `json:"historyId,omitempty"`
}

// Gmail implements types.Connector over the Gmail REST API.
type Gmail struct {
	cfg config.GmailConfig
}

func NewGmail(cfg config.GmailConfig) *Gmail {
	return &Gmail{cfg: cfg}
}

func (g *Gmail) SourceName() types.Source { return types.SourceGmail }

func (g *Gmail) IsConfigured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != "" && g.cfg.RefreshToken != "" && g.cfg.UserEmail != ""
}

type gmailListResponse struct {
	Messages           []struct{ ID string `json:"id"` } `json:"messages"`
	NextPageToken      string                             `json:"nextPageToken"`
	ResultSizeEstimate int                                `json:"resultSizeEstimate"`
}

type gmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
	InternalDate string   `json:"internalDate"`
	LabelIds     []string `json:"labelIds"`
}

type gmailHistoryResponse struct {
	History []struct {
		MessagesAdded []struct {
			Message struct{ ID string `json:"id"` } `json:"message"`
		} `json:"messagesAdded"`
	} `json:"history"`
	NextPageToken string `json:"nextPageToken"`
	HistoryID     string `json:"historyId"`
}

// Fetch implements the list/history two-mode machine: the first run
// (or any run without a recorded historyId) pages through
// messages.list; subsequent runs page through history.list anchored at
// the last seen historyId, switching back to list mode if Gmail
// rejects a stale historyId (spec.md §4.5).
func (g *Gmail) Fetch(ctx context.Context, cursor *types.Cursor, request types.IndexRequest) (types.ConnectorResult, error) {
	client := newGoogleClient(ctx, g.cfg.ClientID, g.cfg.ClientSecret, g.cfg.RefreshToken)

	state := gmailState{Mode: gmailModeList}
	if cursor != nil && cursor.SyncToken != "" {
		_ = json.Unmarshal([]byte(cursor.SyncToken), &state)
	}
	if !request.FullReindex && state.HistoryID != "" {
		state.Mode = gmailModeHistory
	}

	if state.Mode == gmailModeHistory {
		result, err := g.fetchHistory(ctx, client, state, request)
		if err != nil && isStaleTokenError(err) {
			state = gmailState{Mode: gmailModeList}
			return g.fetchList(ctx, client, state, request)
		}
		return result, err
	}
	return g.fetchList(ctx, client, state, request)
}

func (g *Gmail) fetchList(ctx context.Context, client *http.Client, state gmailState, request types.IndexRequest) (types.ConnectorResult, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(gmailPageSize))
	q.Set("q", gmailQuery(request))
	if state.PageToken != "" {
		q.Set("pageToken", state.PageToken)
	}

	var resp gmailListResponse
	err := doJSON(ctx, client, http.MethodGet,
		"https://gmail.googleapis.com/gmail/v1/users/me/messages?"+q.Encode(), nil, &resp)
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: gmail list: %w", err)
	}

	docs, batchLastSync, err := g.hydrateMessages(ctx, client, idsOf(resp.Messages))
	if err != nil {
		return types.ConnectorResult{}, err
	}

	next := state
	next.PageToken = resp.NextPageToken
	hasMore := resp.NextPageToken != ""
	if !hasMore {
		next.Mode = gmailModeHistory
		next.PageToken = ""
		if historyID, err := g.currentHistoryID(ctx, client); err == nil {
			next.HistoryID = historyID
		}
	}

	return g.advance(next, docs, batchLastSync)
}

type gmailProfile struct {
	HistoryID string `json:"historyId"`
}

// currentHistoryID reads the mailbox's current historyId, the anchor
// point history-mode polling resumes from once a list pass completes.
func (g *Gmail) currentHistoryID(ctx context.Context, client *http.Client) (string, error) {
	var profile gmailProfile
	err := doJSON(ctx, client, http.MethodGet,
		"https://gmail.googleapis.com/gmail/v1/users/me/profile", nil, &profile)
	if err != nil {
		return "", err
	}
	return profile.HistoryID, nil
}

func (g *Gmail) fetchHistory(ctx context.Context, client *http.Client, state gmailState, request types.IndexRequest) (types.ConnectorResult, error) {
	q := url.Values{}
	q.Set("startHistoryId", state.HistoryID)
	q.Set("historyTypes", "messageAdded")
	if state.PageToken != "" {
		q.Set("pageToken", state.PageToken)
	}

	var resp gmailHistoryResponse
	err := doJSON(ctx, client, http.MethodGet,
		"https://gmail.googleapis.com/gmail/v1/users/me/history?"+q.Encode(), nil, &resp)
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: gmail history: %w", err)
	}

	var ids []string
	for _, h := range resp.History {
		for _, m := range h.MessagesAdded {
			ids = append(ids, m.Message.ID)
		}
	}

	docs, batchLastSync, err := g.hydrateMessages(ctx, client, ids)
	if err != nil {
		return types.ConnectorResult{}, err
	}

	next := state
	next.PageToken = resp.NextPageToken
	if resp.NextPageToken == "" && resp.HistoryID != "" {
		next.HistoryID = resp.HistoryID
	}

	return g.advance(next, docs, batchLastSync)
}

func (g *Gmail) hydrateMessages(ctx context.Context, client *http.Client, ids []string) ([]types.Document, string, error) {
	docs := make([]types.Document, 0, len(ids))
	batchLastSync := ""

	for _, id := range ids {
		var msg gmailMessage
		err := doJSON(ctx, client, http.MethodGet,
			"https://gmail.googleapis.com/gmail/v1/users/me/messages/"+id+"?format=metadata&metadataHeaders=From&metadataHeaders=Subject&metadataHeaders=Date", nil, &msg)
		if err != nil {
			return nil, "", fmt.Errorf("connector: gmail get message %s: %w", id, err)
		}

		from, subject, date := "", "", ""
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				from = h.Value
			case "Subject":
				subject = h.Value
			case "Date":
				date = h.Value
			}
		}

		m := types.Metadata{}
		m = m.Set("threadId", types.StringValue(msg.ThreadID))
		m = m.Set("from", types.StringValue(from))
		m = m.Set("labels", types.Value{List: stringsToValues(msg.LabelIds)})

		docs = append(docs, types.Document{
			ID:        msg.ID,
			Source:    types.SourceGmail,
			Content:   subject + "\n\n" + msg.Snippet,
			Title:     subject,
			Type:      "email",
			CreatedAt: date,
			UpdatedAt: date,
			ParentID:  msg.ThreadID,
			Metadata:  m,
		})
		if date > batchLastSync {
			batchLastSync = date
		}
	}
	return docs, batchLastSync, nil
}

// gmailQuery composes the OR-within-group/AND-across-group filter of
// spec.md §4.5: domains, senders, and labels each OR-joined internally,
// then AND-joined with each other.
func gmailQuery(request types.IndexRequest) string {
	if request.GmailSettings == nil {
		return ""
	}
	gs := request.GmailSettings
	var clauses []string
	if len(gs.Domains) > 0 {
		clauses = append(clauses, "("+orJoin("from:", gs.Domains)+")")
	}
	if len(gs.Senders) > 0 {
		clauses = append(clauses, "("+orJoin("from:", gs.Senders)+")")
	}
	if len(gs.Labels) > 0 {
		clauses = append(clauses, "("+orJoin("label:", gs.Labels)+")")
	}
	return strings.Join(clauses, " ")
}

func orJoin(prefix string, values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = prefix + v
	}
	return strings.Join(parts, " OR ")
}

func idsOf(messages []struct{ ID string `json:"id"` }) []string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}

func stringsToValues(values []string) []types.Value {
	out := make([]types.Value, len(values))
	for i, v := range values {
		out[i] = types.StringValue(v)
	}
	return out
}

type gmailLabelsResponse struct {
	Labels []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"labels"`
}

// Discover lists the Gmail labels available to populate
// IndexRequest.GmailSettings.Labels.
func (g *Gmail) Discover(ctx context.Context) ([]DiscoveryItem, error) {
	client := newGoogleClient(ctx, g.cfg.ClientID, g.cfg.ClientSecret, g.cfg.RefreshToken)
	reqURL := "https://gmail.googleapis.com/gmail/v1/users/" + g.cfg.UserEmail + "/labels"

	var resp gmailLabelsResponse
	if err := doJSON(ctx, client, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("gmail: discover labels: %w", err)
	}
	items := make([]DiscoveryItem, len(resp.Labels))
	for i, l := range resp.Labels {
		items[i] = DiscoveryItem{ID: l.ID, Name: l.Name}
	}
	return items, nil
}

func (g *Gmail) advance(state gmailState, docs []types.Document, batchLastSync string) (types.ConnectorResult, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return types.ConnectorResult{}, err
	}
	hasMore := state.PageToken != ""
	return types.ConnectorResult{
		Documents:     docs,
		NewCursor:     types.NewCursor{SyncToken: string(encoded)},
		HasMore:       hasMore,
		BatchLastSync: batchLastSync,
	}, nil
}
