package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"knowledge-collector/internal/config"
	"knowledge-collector/pkg/types"
)

const calendarPageSize = 250

type calendarState struct {
	CalendarIndex int    `json:"calendarIndex"`
	PageToken     string `json:"pageToken,omitempty"`
}

// Calendar implements types.Connector over the Google Calendar v3
// Events API, walking request.CalendarIDs one at a time with native
// pageToken paging per calendar (spec.md §4.5).
type Calendar struct {
	cfg       config.CalendarConfig
	googleCfg config.GmailConfig
}

func NewCalendar(cfg config.CalendarConfig, googleCfg config.GmailConfig) *Calendar {
	return &Calendar{cfg: cfg, googleCfg: googleCfg}
}

func (c *Calendar) SourceName() types.Source { return types.SourceCalendar }

func (c *Calendar) IsConfigured() bool {
	return c.cfg.RefreshToken != "" && c.googleCfg.ClientID != "" && c.googleCfg.ClientSecret != ""
}

type calendarEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Description string `json:"description"`
	Start   struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
	Updated string `json:"updated"`
}

type calendarEventsResponse struct {
	Items         []calendarEvent `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
}

// Fetch pages through one calendar's events.list, advancing to the
// next configured calendar when the current one is exhausted; a
// rejected (410 GONE) pageToken forces a fresh, non-incremental pass
// over that calendar.
func (c *Calendar) Fetch(ctx context.Context, cursor *types.Cursor, request types.IndexRequest) (types.ConnectorResult, error) {
	calendars := request.CalendarIDs
	if len(calendars) == 0 {
		return types.ConnectorResult{HasMore: false}, nil
	}

	state := calendarState{}
	if cursor != nil && cursor.SyncToken != "" {
		_ = json.Unmarshal([]byte(cursor.SyncToken), &state)
	}
	if state.CalendarIndex >= len(calendars) {
		state.CalendarIndex = 0
		state.PageToken = ""
	}
	calendarID := calendars[state.CalendarIndex]

	client := newGoogleClient(ctx, c.googleCfg.ClientID, c.googleCfg.ClientSecret, c.cfg.RefreshToken)

	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(calendarPageSize))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "updated")
	if state.PageToken != "" {
		q.Set("pageToken", state.PageToken)
	} else if !request.FullReindex && cursor != nil && cursor.LastSync != "" {
		q.Set("updatedMin", cursor.LastSync)
	}

	reqURL := "https://www.googleapis.com/calendar/v3/calendars/" + url.PathEscape(calendarID) + "/events?" + q.Encode()
	var resp calendarEventsResponse
	err := doJSON(ctx, client, http.MethodGet, reqURL, nil, &resp)
	if err != nil && isStaleTokenError(err) {
		q.Del("pageToken")
		q.Del("updatedMin")
		reqURL = "https://www.googleapis.com/calendar/v3/calendars/" + url.PathEscape(calendarID) + "/events?" + q.Encode()
		err = doJSON(ctx, client, http.MethodGet, reqURL, nil, &resp)
	}
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: calendar fetch %s: %w", calendarID, err)
	}

	docs := make([]types.Document, 0, len(resp.Items))
	batchLastSync := ""
	for _, e := range resp.Items {
		start := firstNonEmptyStr(e.Start.DateTime, e.Start.Date)
		end := firstNonEmptyStr(e.End.DateTime, e.End.Date)

		m := types.Metadata{}
		m = m.Set("calendarId", types.StringValue(calendarID))
		m = m.Set("start", types.StringValue(start))
		m = m.Set("end", types.StringValue(end))

		docs = append(docs, types.Document{
			ID:        calendarID + ":" + e.ID,
			Source:    types.SourceCalendar,
			Content:   e.Summary + "\n\n" + e.Description,
			Title:     e.Summary,
			Type:      "event",
			UpdatedAt: e.Updated,
			Metadata:  m,
		})
		if e.Updated > batchLastSync {
			batchLastSync = e.Updated
		}
	}

	next := state
	next.PageToken = resp.NextPageToken
	hasMoreOverall := resp.NextPageToken != ""
	if !hasMoreOverall {
		next.CalendarIndex++
		next.PageToken = ""
		hasMoreOverall = next.CalendarIndex < len(calendars)
	}

	encoded, _ := json.Marshal(next)
	return types.ConnectorResult{
		Documents:     docs,
		NewCursor:     types.NewCursor{SyncToken: string(encoded)},
		HasMore:       hasMoreOverall,
		BatchLastSync: batchLastSync,
	}, nil
}

type calendarListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Summary string `json:"summary"`
	} `json:"items"`
}

// Discover lists the calendars available to populate
// IndexRequest.CalendarIDs.
func (c *Calendar) Discover(ctx context.Context) ([]DiscoveryItem, error) {
	client := newGoogleClient(ctx, c.googleCfg.ClientID, c.googleCfg.ClientSecret, c.cfg.RefreshToken)
	reqURL := "https://www.googleapis.com/calendar/v3/users/me/calendarList"

	var resp calendarListResponse
	if err := doJSON(ctx, client, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("calendar: discover calendars: %w", err)
	}
	items := make([]DiscoveryItem, len(resp.Items))
	for i, cal := range resp.Items {
		items[i] = DiscoveryItem{ID: cal.ID, Name: cal.Summary}
	}
	return items, nil
}
