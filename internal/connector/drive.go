package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"knowledge-collector/internal/config"
	"knowledge-collector/internal/fileprocessor"
	"knowledge-collector/pkg/types"
)

const drivePageSize = 100
const driveMaxFileBytes = 20 * 1024 * 1024

type driveState struct {
	PageToken string `json:"pageToken,omitempty"`
}

// Drive implements types.Connector over the Google Drive v3 Files API,
// with flat paging over files.list filtered by modifiedTime and an
// in-memory folder-path cache kept for the connector's lifetime (spec.md §4.5). File
// bodies are downloaded and run through the file processor (spec.md
// §4.4) so convertible formats (docx, pdf, csv, html) surface as plain
// content instead of a bare filename.
type Drive struct {
	cfg         config.DriveConfig
	googleCfg   config.GmailConfig // shares Gmail's OAuth client credentials
	folderPaths map[string]string
	processor   *fileprocessor.Processor
}

// NewDrive builds a Drive connector. Drive reuses the Gmail OAuth
// client registration (same Google Cloud project, broader scope) since
// DriveConfig carries only its own refresh token. processor may be nil,
// in which case file content falls back to the bare filename.
func NewDrive(cfg config.DriveConfig, googleCfg config.GmailConfig, processor *fileprocessor.Processor) *Drive {
	return &Drive{cfg: cfg, googleCfg: googleCfg, folderPaths: map[string]string{}, processor: processor}
}

func (d *Drive) SourceName() types.Source { return types.SourceDrive }

func (d *Drive) IsConfigured() bool {
	return d.cfg.RefreshToken != "" && d.googleCfg.ClientID != "" && d.googleCfg.ClientSecret != ""
}

type driveFile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Parents      []string `json:"parents"`
	ModifiedTime string   `json:"modifiedTime"`
	CreatedTime  string   `json:"createdTime"`
	WebViewLink  string   `json:"webViewLink"`
}

type driveListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

type driveFileMeta struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents"`
}

// Fetch performs one flat files.list page, restricted to folderIds
// when configured and to modifiedTime > lastSync on incremental runs.
func (d *Drive) Fetch(ctx context.Context, cursor *types.Cursor, request types.IndexRequest) (types.ConnectorResult, error) {
	client := newGoogleClient(ctx, d.googleCfg.ClientID, d.googleCfg.ClientSecret, d.cfg.RefreshToken)

	state := driveState{}
	if cursor != nil && cursor.SyncToken != "" {
		_ = json.Unmarshal([]byte(cursor.SyncToken), &state)
	}

	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(drivePageSize))
	q.Set("fields", "nextPageToken,files(id,name,mimeType,parents,modifiedTime,createdTime,webViewLink)")
	q.Set("q", driveQuery(cursor, request))
	if state.PageToken != "" {
		q.Set("pageToken", state.PageToken)
	}

	var resp driveListResponse
	err := doJSON(ctx, client, http.MethodGet, "https://www.googleapis.com/drive/v3/files?"+q.Encode(), nil, &resp)
	if err != nil && isStaleTokenError(err) {
		state = driveState{}
		q.Del("pageToken")
		err = doJSON(ctx, client, http.MethodGet, "https://www.googleapis.com/drive/v3/files?"+q.Encode(), nil, &resp)
	}
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: drive list: %w", err)
	}

	docs := make([]types.Document, 0, len(resp.Files))
	batchLastSync := ""
	for _, f := range resp.Files {
		if f.MimeType == "application/vnd.google-apps.folder" {
			continue
		}
		folderPath := ""
		if len(f.Parents) > 0 {
			folderPath = d.resolveFolderPath(ctx, client, f.Parents[0])
		}

		content, chunks, language, ok := d.resolveContent(ctx, client, f)
		if !ok {
			continue
		}

		m := types.Metadata{}
		m = m.Set("folderPath", types.StringValue(folderPath))
		m = m.Set("mimeType", types.StringValue(f.MimeType))
		m = m.Set("webViewLink", types.StringValue(f.WebViewLink))

		doc := types.Document{
			ID:        f.ID,
			Source:    types.SourceDrive,
			Content:   content,
			Title:     f.Name,
			Type:      "file",
			CreatedAt: f.CreatedTime,
			UpdatedAt: f.ModifiedTime,
			Metadata:  m,
		}
		if language != "" {
			doc.Metadata = doc.Metadata.Set("language", types.StringValue(language))
		}
		if len(chunks) > 1 {
			doc.PreChunked = make([]types.Chunk, len(chunks))
			for i, c := range chunks {
				doc.PreChunked[i] = types.Chunk{Content: c}
			}
		}
		docs = append(docs, doc)
		if f.ModifiedTime > batchLastSync {
			batchLastSync = f.ModifiedTime
		}
	}

	next := driveState{PageToken: resp.NextPageToken}
	encoded, _ := json.Marshal(next)
	return types.ConnectorResult{
		Documents:     docs,
		NewCursor:     types.NewCursor{SyncToken: string(encoded)},
		HasMore:       resp.NextPageToken != "",
		BatchLastSync: batchLastSync,
	}, nil
}

// resolveContent downloads and converts f's body through the file
// processor (spec.md §4.4); ok is false when the file should be
// skipped entirely (binary/archive, oversized, or download failure).
func (d *Drive) resolveContent(ctx context.Context, client *http.Client, f driveFile) (content string, chunks []string, language string, ok bool) {
	if d.processor == nil {
		return f.Name, nil, "", true
	}
	if strings.HasPrefix(f.MimeType, "application/vnd.google-apps.") {
		// Google-native docs/sheets/slides have no raw byte body;
		// exporting them is a separate API this connector does not
		// yet wire, so they pass through as filename-only stubs.
		return f.Name, nil, "", true
	}

	data, err := d.downloadFile(ctx, client, f.ID)
	if err != nil || len(data) > driveMaxFileBytes {
		return "", nil, "", false
	}

	result, err := d.processor.ProcessBytes(data, f.Name, f.MimeType)
	if err != nil || result == nil {
		return "", nil, "", false
	}
	return result.Content, result.Chunks, result.Language, true
}

func (d *Drive) downloadFile(ctx context.Context, client *http.Client, fileID string) ([]byte, error) {
	reqURL := "https://www.googleapis.com/drive/v3/files/" + fileID + "?alt=media"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("drive: download %s: http %d", fileID, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, driveMaxFileBytes+1))
}

// resolveFolderPath walks parent references up to the drive root,
// caching each resolved id→path in-process for the life of the
// connector since folder structure rarely changes within a run.
func (d *Drive) resolveFolderPath(ctx context.Context, client *http.Client, folderID string) string {
	if path, ok := d.folderPaths[folderID]; ok {
		return path
	}

	var segments []string
	current := folderID
	for current != "" && len(segments) < 32 {
		var meta driveFileMeta
		err := doJSON(ctx, client, http.MethodGet,
			"https://www.googleapis.com/drive/v3/files/"+current+"?fields=name,parents", nil, &meta)
		if err != nil {
			break
		}
		segments = append([]string{meta.Name}, segments...)
		if len(meta.Parents) == 0 {
			break
		}
		current = meta.Parents[0]
	}

	path := strings.Join(segments, "/")
	d.folderPaths[folderID] = path
	return path
}

type driveFoldersResponse struct {
	Files []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"files"`
}

// Discover lists the Drive folders available to populate
// IndexRequest.FolderIDs.
func (d *Drive) Discover(ctx context.Context) ([]DiscoveryItem, error) {
	client := newGoogleClient(ctx, d.googleCfg.ClientID, d.googleCfg.ClientSecret, d.cfg.RefreshToken)
	q := url.Values{}
	q.Set("q", "mimeType = 'application/vnd.google-apps.folder' and trashed = false")
	q.Set("fields", "files(id,name)")
	q.Set("pageSize", "200")
	reqURL := "https://www.googleapis.com/drive/v3/files?" + q.Encode()

	var resp driveFoldersResponse
	if err := doJSON(ctx, client, http.MethodGet, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("drive: discover folders: %w", err)
	}
	items := make([]DiscoveryItem, len(resp.Files))
	for i, f := range resp.Files {
		items[i] = DiscoveryItem{ID: f.ID, Name: f.Name}
	}
	return items, nil
}

func driveQuery(cursor *types.Cursor, request types.IndexRequest) string {
	clauses := []string{"trashed = false"}
	if len(request.FolderIDs) > 0 {
		var parts []string
		for _, id := range request.FolderIDs {
			parts = append(parts, fmt.Sprintf("'%s' in parents", id))
		}
		clauses = append(clauses, "("+strings.Join(parts, " or ")+")")
	}
	if !request.FullReindex && cursor != nil && cursor.LastSync != "" {
		clauses = append(clauses, fmt.Sprintf("modifiedTime > '%s'", cursor.LastSync))
	}
	return strings.Join(clauses, " and ")
}
