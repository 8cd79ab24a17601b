package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v45/github"
	"golang.org/x/oauth2"

	"knowledge-collector/internal/config"
	"knowledge-collector/pkg/types"
)

// githubPageSize mirrors the teacher's 100-per-page listing convention.
const githubPageSize = 100

// githubFilesPerBatch / githubFileBatchDelay implement spec.md §4.5's
// "files fetched in concurrent batches of 5 with 200 ms inter-batch
// delay; at most 50 files per cursor batch".
const (
	githubFilesPerBatch  = 5
	githubFileBatchDelay = 200 * time.Millisecond
	githubMaxFilesBatch  = 50
	githubMaxFileSize    = 512 * 1024
)

var githubSkipDirectories = map[string]bool{
	"node_modules": true, ".git": true, "vendor": true, "dist": true, "build": true,
}

var githubSkipExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".lock": true,
}

var githubSkipFilenames = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "go.sum": true,
}

// githubPhase enumerates the three-phase state machine of spec.md §4.5.
type githubPhase string

const (
	phaseRepos githubPhase = "repos"
	phasePRs   githubPhase = "prs"
	phaseFiles githubPhase = "files"
)

// githubCursorState is the connector-private state JSON-encoded into
// Cursor.SyncToken.
type githubCursorState struct {
	Phase     githubPhase `json:"phase"`
	RepoIndex int         `json:"repoIndex"`
	Page      int         `json:"page"`
	TreeSHA   string      `json:"treeSha,omitempty"`
	FileIndex int         `json:"fileIndex"`
}

// GitHub implements types.Connector over go-github's REST client, with
// the repos→prs→files per-repo state machine of spec.md §4.5.
type GitHub struct {
	cfg    config.GitHubConfig
	client *gogithub.Client
}

// NewGitHub builds a GitHub connector from its configured token.
func NewGitHub(cfg config.GitHubConfig) *GitHub {
	var client *gogithub.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		client = gogithub.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = gogithub.NewClient(nil)
	}
	return &GitHub{cfg: cfg, client: client}
}

func (g *GitHub) SourceName() types.Source { return types.SourceGitHub }

func (g *GitHub) IsConfigured() bool { return g.cfg.Token != "" }

// Fetch advances the repos→prs→files state machine by one page.
func (g *GitHub) Fetch(ctx context.Context, cursor *types.Cursor, request types.IndexRequest) (types.ConnectorResult, error) {
	repos := request.Repos
	if len(repos) == 0 {
		return types.ConnectorResult{HasMore: false}, nil
	}

	state := githubCursorState{Phase: phaseRepos, Page: 1}
	if cursor != nil && cursor.SyncToken != "" {
		_ = json.Unmarshal([]byte(cursor.SyncToken), &state)
	}
	if state.Phase == "" {
		state.Phase = phaseRepos
	}
	if state.Page == 0 {
		state.Page = 1
	}

	indexFiles := request.IndexFiles == nil || *request.IndexFiles

	switch state.Phase {
	case phaseRepos:
		return g.fetchRepoMetadata(ctx, repos, state, indexFiles)
	case phasePRs:
		return g.fetchPullRequests(ctx, repos, state, indexFiles)
	case phaseFiles:
		return g.fetchFiles(ctx, repos, state)
	default:
		return types.ConnectorResult{}, fmt.Errorf("connector: github: unknown phase %q", state.Phase)
	}
}

func (g *GitHub) fetchRepoMetadata(ctx context.Context, repos []string, state githubCursorState, indexFiles bool) (types.ConnectorResult, error) {
	if state.RepoIndex >= len(repos) {
		state.Phase = phasePRs
		state.RepoIndex = 0
		state.Page = 1
		return g.advanceState(state, nil, "")
	}

	owner, name := splitRepo(repos[state.RepoIndex])
	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: github: get repo %s: %w", repos[state.RepoIndex], err)
	}

	updatedAt := ""
	if repo.UpdatedAt != nil {
		updatedAt = repo.UpdatedAt.Format(time.RFC3339)
	}

	m := types.Metadata{}
	m = m.Set("repo", types.StringValue(repo.GetFullName()))
	m = m.Set("language", types.StringValue(repo.GetLanguage()))
	m = m.Set("stars", types.NumberValue(float64(repo.GetStargazersCount())))

	doc := types.Document{
		ID:        "github:" + repo.GetFullName(),
		Source:    types.SourceGitHub,
		Content:   repo.GetFullName() + "\n\n" + repo.GetDescription(),
		Title:     repo.GetFullName(),
		Type:      "repo",
		UpdatedAt: updatedAt,
		Metadata:  m,
	}

	state.RepoIndex++
	_ = indexFiles
	return g.advanceState(state, []types.Document{doc}, updatedAt)
}

func (g *GitHub) fetchPullRequests(ctx context.Context, repos []string, state githubCursorState, indexFiles bool) (types.ConnectorResult, error) {
	if state.RepoIndex >= len(repos) {
		if indexFiles {
			state.Phase = phaseFiles
			state.RepoIndex = 0
			state.Page = 1
			return g.advanceState(state, nil, "")
		}
		return types.ConnectorResult{HasMore: false}, nil
	}

	owner, name := splitRepo(repos[state.RepoIndex])
	opts := &gogithub.PullRequestListOptions{
		State: "all", Sort: "updated", Direction: "desc",
		ListOptions: gogithub.ListOptions{Page: state.Page, PerPage: githubPageSize},
	}
	prs, resp, err := g.client.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: github: list prs %s: %w", repos[state.RepoIndex], err)
	}

	docs := make([]types.Document, 0, len(prs))
	batchLastSync := ""
	for _, pr := range prs {
		updatedAt := ""
		if pr.UpdatedAt != nil {
			updatedAt = pr.UpdatedAt.Format(time.RFC3339)
		}
		createdAt := ""
		if pr.CreatedAt != nil {
			createdAt = pr.CreatedAt.Format(time.RFC3339)
		}

		m := types.Metadata{}
		m = m.Set("repo", types.StringValue(owner+"/"+name))
		m = m.Set("author", types.StringValue(pr.GetUser().GetLogin()))
		m = m.Set("state", types.StringValue(pr.GetState()))

		docs = append(docs, types.Document{
			ID:        fmt.Sprintf("github:%s/%s#%d", owner, name, pr.GetNumber()),
			Source:    types.SourceGitHub,
			Content:   pr.GetTitle() + "\n\n" + pr.GetBody(),
			Title:     pr.GetTitle(),
			Type:      "pull_request",
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			Metadata:  m,
		})
		if updatedAt > batchLastSync {
			batchLastSync = updatedAt
		}
	}

	if resp.NextPage == 0 {
		state.RepoIndex++
		state.Page = 1
	} else {
		state.Page = resp.NextPage
	}
	return g.advanceState(state, docs, batchLastSync)
}

func (g *GitHub) fetchFiles(ctx context.Context, repos []string, state githubCursorState) (types.ConnectorResult, error) {
	if state.RepoIndex >= len(repos) {
		return types.ConnectorResult{HasMore: false}, nil
	}

	owner, name := splitRepo(repos[state.RepoIndex])
	if state.TreeSHA == "" {
		repo, _, err := g.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return types.ConnectorResult{}, fmt.Errorf("connector: github: get repo %s: %w", repos[state.RepoIndex], err)
		}
		state.TreeSHA = repo.GetDefaultBranch()
	}

	tree, _, err := g.client.Git.GetTree(ctx, owner, name, state.TreeSHA, true)
	if err != nil {
		return types.ConnectorResult{}, fmt.Errorf("connector: github: get tree %s: %w", repos[state.RepoIndex], err)
	}

	var candidates []*gogithub.TreeEntry
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !shouldIndexFile(entry.GetPath(), entry.GetSize()) {
			continue
		}
		candidates = append(candidates, entry)
	}

	start := state.FileIndex
	end := start + githubMaxFilesBatch
	if end > len(candidates) {
		end = len(candidates)
	}
	if start >= len(candidates) {
		state.RepoIndex++
		state.TreeSHA = ""
		state.FileIndex = 0
		return g.advanceState(state, nil, "")
	}
	page := candidates[start:end]

	docs := g.fetchFileBatch(ctx, owner, name, page)

	state.FileIndex = end
	if state.FileIndex >= len(candidates) {
		state.RepoIndex++
		state.TreeSHA = ""
		state.FileIndex = 0
	}
	return g.advanceState(state, docs, "")
}

// fetchFileBatch downloads page's blob contents githubFilesPerBatch at
// a time with a delay between batches (spec.md §4.5).
func (g *GitHub) fetchFileBatch(ctx context.Context, owner, name string, page []*gogithub.TreeEntry) []types.Document {
	var docs []types.Document
	for i := 0; i < len(page); i += githubFilesPerBatch {
		end := i + githubFilesPerBatch
		if end > len(page) {
			end = len(page)
		}
		batch := page[i:end]

		results := make([]*types.Document, len(batch))
		var wg sync.WaitGroup
		for j, entry := range batch {
			wg.Add(1)
			go func(j int, entry *gogithub.TreeEntry) {
				defer wg.Done()
				results[j] = g.fetchOneFile(ctx, owner, name, entry)
			}(j, entry)
		}
		wg.Wait()

		for _, d := range results {
			if d != nil {
				docs = append(docs, *d)
			}
		}
		if end < len(page) {
			time.Sleep(githubFileBatchDelay)
		}
	}
	return docs
}

func (g *GitHub) fetchOneFile(ctx context.Context, owner, name string, entry *gogithub.TreeEntry) *types.Document {
	blob, _, err := g.client.Git.GetBlob(ctx, owner, name, entry.GetSHA())
	if err != nil || blob.GetEncoding() != "base64" {
		return nil
	}
	content, err := decodeBase64Blob(blob.GetContent())
	if err != nil {
		return nil
	}

	m := types.Metadata{}
	m = m.Set("repo", types.StringValue(owner+"/"+name))
	m = m.Set("path", types.StringValue(entry.GetPath()))

	return &types.Document{
		ID:       fmt.Sprintf("github:%s/%s:%s", owner, name, entry.GetPath()),
		Source:   types.SourceGitHub,
		Content:  content,
		Title:    entry.GetPath(),
		Type:     "file",
		Metadata: m,
	}
}

func (g *GitHub) advanceState(state githubCursorState, docs []types.Document, batchLastSync string) (types.ConnectorResult, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return types.ConnectorResult{}, err
	}
	return types.ConnectorResult{
		Documents:     docs,
		NewCursor:     types.NewCursor{SyncToken: string(encoded)},
		HasMore:       true,
		BatchLastSync: batchLastSync,
	}, nil
}

func shouldIndexFile(path string, size int) bool {
	if size > githubMaxFileSize {
		return false
	}
	for _, part := range strings.Split(path, "/") {
		if githubSkipDirectories[part] {
			return false
		}
	}
	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}
	if githubSkipFilenames[base] {
		return false
	}
	if strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".min.css") {
		return false
	}
	for ext := range githubSkipExtensions {
		if strings.HasSuffix(base, ext) {
			return false
		}
	}
	return true
}

func splitRepo(repo string) (owner, name string) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", repo
}
