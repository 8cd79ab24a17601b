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

const slackPageSize = 200

// Slack implements types.Connector over the conversations.history REST
// endpoint with its native cursor-based paging (spec.md §4.5
// "conventional paging").
type Slack struct {
	cfg    config.SlackConfig
	client *http.Client
}

func NewSlack(cfg config.SlackConfig) *Slack {
	return &Slack{cfg: cfg, client: newHTTPClient()}
}

func (s *Slack) SourceName() types.Source { return types.SourceSlack }

func (s *Slack) IsConfigured() bool { return s.cfg.BotToken != "" }

type slackHistoryResponse struct {
	Ok               bool            `json:"ok"`
	Error            string          `json:"error"`
	Messages         []slackMessage  `json:"messages"`
	HasMore          bool            `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type slackMessage struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Ts        string `json:"ts"`
	ThreadTs  string `json:"thread_ts"`
}

// Fetch walks one Slack channel's history per call, advancing the
// native cursor; request.ChannelIDs selects which channel this call
// targets via a per-channel index embedded in newCursor.metadata.
func (s *Slack) Fetch(ctx context.Context, cursor *types.Cursor, request types.IndexRequest) (types.ConnectorResult, error) {
	channels := request.ChannelIDs
	if len(channels) == 0 {
		return types.ConnectorResult{HasMore: false}, nil
	}

	channelIndex := 0
	pageCursor := ""
	if cursor != nil && cursor.Metadata != nil {
		channelIndex = int(cursor.Metadata.GetNumber("channelIndex"))
	}
	if cursor != nil {
		pageCursor = cursor.SyncToken
	}
	if channelIndex >= len(channels) {
		channelIndex = 0
		pageCursor = ""
	}
	channel := channels[channelIndex]

	q := url.Values{}
	q.Set("channel", channel)
	q.Set("limit", strconv.Itoa(slackPageSize))
	if pageCursor != "" {
		q.Set("cursor", pageCursor)
	}

	var resp slackHistoryResponse
	err := doJSON(ctx, s.client, http.MethodGet, "https://slack.com/api/conversations.history?"+q.Encode(), map[string]string{
		"Authorization": "Bearer " + s.cfg.BotToken,
	}, &resp)
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: slack fetch: %w", err)
	}
	if !resp.Ok {
		return types.ConnectorResult{}, fmt.Errorf("connector: slack fetch: %s", resp.Error)
	}

	channelType := "public"
	if strings.HasPrefix(channel, "D") {
		channelType = "dm"
	} else if strings.HasPrefix(channel, "G") {
		channelType = "mpim"
	}

	docs := make([]types.Document, 0, len(resp.Messages))
	batchLastSync := ""
	for _, msg := range resp.Messages {
		if msg.Text == "" {
			continue
		}
		m := types.Metadata{}
		m = m.Set("channelId", types.StringValue(channel))
		m = m.Set("channelType", types.StringValue(channelType))
		if msg.ThreadTs != "" {
			m = m.Set("threadTs", types.StringValue(msg.ThreadTs))
		}
		ts := slackTimestamp(msg.Ts)
		docs = append(docs, types.Document{
			ID:        channel + ":" + msg.Ts,
			Source:    types.SourceSlack,
			Content:   msg.Text,
			Type:      "message",
			CreatedAt: ts,
			UpdatedAt: ts,
			Metadata:  m,
		})
		if ts > batchLastSync {
			batchLastSync = ts
		}
	}

	nextChannelIndex := channelIndex
	nextCursor := resp.ResponseMetadata.NextCursor
	hasMoreOverall := resp.HasMore
	if !resp.HasMore {
		nextChannelIndex++
		nextCursor = ""
		hasMoreOverall = nextChannelIndex < len(channels)
	}

	newMeta := types.Metadata{}
	newMeta = newMeta.Set("channelIndex", types.NumberValue(float64(nextChannelIndex)))

	return types.ConnectorResult{
		Documents:     docs,
		NewCursor:     types.NewCursor{SyncToken: nextCursor, Metadata: newMeta},
		HasMore:       hasMoreOverall,
		BatchLastSync: batchLastSync,
	}, nil
}

// slackTimestamp converts a Slack "1234567890.123456" ts into RFC3339.
func slackTimestamp(ts string) string {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	seconds, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ""
	}
	return formatUnix(seconds)
}

type slackConversationsResponse struct {
	Ok       bool `json:"ok"`
	Channels []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channels"`
}

// Discover lists the Slack channels available to populate
// IndexRequest.ChannelIDs.
func (s *Slack) Discover(ctx context.Context) ([]DiscoveryItem, error) {
	q := url.Values{}
	q.Set("types", "public_channel,private_channel")
	q.Set("limit", "200")
	reqURL := "https://slack.com/api/conversations.list?" + q.Encode()

	var resp slackConversationsResponse
	err := doJSON(ctx, s.client, http.MethodGet, reqURL, map[string]string{
		"Authorization": "Bearer " + s.cfg.BotToken,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("slack: discover channels: %w", err)
	}
	if !resp.Ok {
		return nil, fmt.Errorf("slack: discover channels: api returned not ok")
	}
	items := make([]DiscoveryItem, len(resp.Channels))
	for i, c := range resp.Channels {
		items[i] = DiscoveryItem{ID: c.ID, Name: c.Name}
	}
	return items, nil
}
