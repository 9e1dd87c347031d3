package fetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"repolens/internal/catalog"
	t "repolens/internal/types"
)

const (
	defaultAPIBase    = "https://api.github.com"
	defaultAPITimeout = 30 * time.Second

	// blobWorkers bounds concurrent content downloads per catalog call.
	blobWorkers = 8
)

// GitHub fetches repository metadata and file catalogs through the GitHub
// REST API. The zero value is not usable; construct with NewGitHub.
type GitHub struct {
	client          *http.Client
	baseURL         string
	token           string
	maxContentBytes int64
}

// GitHubOptions configures a GitHub provider. Zero fields fall back to
// defaults.
type GitHubOptions struct {
	Token           string
	BaseURL         string
	Timeout         time.Duration
	MaxContentBytes int64
}

func NewGitHub(opts GitHubOptions) *GitHub {
	base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultAPIBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	maxContent := opts.MaxContentBytes
	if maxContent <= 0 {
		maxContent = 200 * 1024
	}
	return &GitHub{
		client:          &http.Client{Timeout: timeout},
		baseURL:         base,
		token:           strings.TrimSpace(opts.Token),
		maxContentBytes: maxContent,
	}
}

type repoMetaPayload struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Description   string `json:"description"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	Private       bool   `json:"private"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func (g *GitHub) Meta(ctx context.Context, repoID string) (t.RepoMeta, error) {
	id, err := NormalizeRepoID(repoID)
	if err != nil {
		return t.RepoMeta{}, err
	}
	var payload repoMetaPayload
	if err := g.getJSON(ctx, fmt.Sprintf("%s/repos/%s", g.baseURL, id), &payload); err != nil {
		return t.RepoMeta{}, err
	}
	branch := strings.TrimSpace(payload.DefaultBranch)
	if branch == "" {
		branch = "main"
	}
	return t.RepoMeta{
		Owner:         payload.Owner.Login,
		Name:          payload.Name,
		FullName:      payload.FullName,
		DefaultBranch: branch,
		Description:   payload.Description,
		Stars:         payload.Stars,
		Forks:         payload.Forks,
		Private:       payload.Private,
	}, nil
}

type treePayload struct {
	Truncated bool        `json:"truncated"`
	Tree      []treeEntry `json:"tree"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type blobPayload struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Catalog lists every blob reachable from ref and downloads content for the
// source files small enough to analyze. Oversized or binary-looking files
// keep their catalog entry with empty content. ref == "" resolves to the
// repository default branch.
func (g *GitHub) Catalog(ctx context.Context, repoID, ref string) ([]t.FileRecord, error) {
	id, err := NormalizeRepoID(repoID)
	if err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		meta, err := g.Meta(ctx, id)
		if err != nil {
			return nil, err
		}
		ref = meta.DefaultBranch
	}

	var tree treePayload
	url := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", g.baseURL, id, ref)
	if err := g.getJSON(ctx, url, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		logrus.Warnf("github tree for %s@%s truncated, catalog is partial", id, ref)
	}

	records := make([]t.FileRecord, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type != "blob" || skipPath(entry.Path) {
			continue
		}
		records = append(records, t.FileRecord{Path: entry.Path, Size: entry.Size})
	}
	catalog.Annotate(records)

	shaByPath := make(map[string]string, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			shaByPath[entry.Path] = entry.SHA
		}
	}
	if err := g.fillContent(ctx, id, records, shaByPath); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// fillContent downloads blob bodies for analyzable records with a bounded
// worker pool. A single failed blob aborts the catalog: a partially loaded
// catalog would skew every downstream heuristic.
func (g *GitHub) fillContent(ctx context.Context, repoID string, records []t.FileRecord, shaByPath map[string]string) error {
	type job struct{ idx int }

	jobs := make(chan job)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	workers := blobWorkers
	if len(records) < workers {
		workers = len(records)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				rec := &records[jb.idx]
				content, err := g.blobContent(ctx, repoID, shaByPath[rec.Path])
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("fetch %s: %w", rec.Path, err)
					}
					mu.Unlock()
					continue
				}
				rec.Content = content
			}
		}()
	}

dispatch:
	for i := range records {
		if !wantContent(records[i], g.maxContentBytes) {
			continue
		}
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}
		select {
		case jobs <- job{idx: i}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

func (g *GitHub) blobContent(ctx context.Context, repoID, sha string) (string, error) {
	if sha == "" {
		return "", nil
	}
	var payload blobPayload
	url := fmt.Sprintf("%s/repos/%s/git/blobs/%s", g.baseURL, repoID, sha)
	if err := g.getJSON(ctx, url, &payload); err != nil {
		return "", err
	}
	if payload.Encoding != "base64" {
		return payload.Content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode blob %s: %w", sha, err)
	}
	return string(raw), nil
}

func (g *GitHub) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read github response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

// statusError maps GitHub status codes onto the package sentinels so the
// pipeline can distinguish fatal identifier problems from transient ones.
func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden, http.StatusTooManyRequests:
		if strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining")) == "0" ||
			resp.StatusCode == http.StatusTooManyRequests {
			return ErrRateLimited
		}
		return ErrUnauthorized
	default:
		return fmt.Errorf("github responded %d", resp.StatusCode)
	}
}

// wantContent reports whether a record's body is worth downloading: source
// files under the size cap.
func wantContent(rec t.FileRecord, maxBytes int64) bool {
	if rec.Size > maxBytes {
		return false
	}
	return catalog.IsSourceLanguage(rec.Language)
}

var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	".next":        {},
	".cache":       {},
	"__pycache__":  {},
}

func skipPath(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if _, ok := skipDirs[part]; ok {
			return true
		}
	}
	return false
}
