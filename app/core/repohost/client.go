package repohost

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"pagesmith/app/pkg/logger"
)

const defaultBaseURL = "https://api.github.com"

// ErrNotFound reports a missing repository, file, or commit. Callers
// that tolerate absence branch on it.
var ErrNotFound = errors.New("repohost: not found")

// APIError is a non-2xx response from the hosting API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("repohost: API returned %d: %s", e.Status, truncate(e.Body, 200))
}

// Repo identifies one hosted repository.
type Repo struct {
	Name          string
	FullName      string
	HTMLURL       string
	DefaultBranch string
}

// Client drives the GitHub REST API for one account.
type Client struct {
	baseURL  string
	token    string
	username string
	http     *http.Client

	pollAttempts int
	pollInterval time.Duration
	sleep        func(time.Duration)
}

type Option func(*Client)

// WithBaseURL points the client at a different API host. Tests use it
// with httptest servers.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithPolling tunes the deployment-confirmation loop.
func WithPolling(attempts int, interval time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.pollAttempts = attempts
		}
		c.pollInterval = interval
	}
}

func NewClient(token string, username string, opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		token:        token,
		username:     username,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollAttempts: 30,
		pollInterval: 5 * time.Second,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Username() string {
	return c.username
}

// PagesURL derives the public serving URL for a task. It is computed,
// not read back from the API.
func (c *Client) PagesURL(task string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.username, task)
}

// GetOrCreateRepo reuses an existing repository or creates a public one
// without auto-init.
func (c *Client) GetOrCreateRepo(ctx context.Context, name string, description string) (Repo, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", c.username, name), "")
	if err == nil {
		logger.Info("Repository '%s' already exists", name)
		return repoFrom(body), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Repo{}, fmt.Errorf("lookup repo %s: %w", name, err)
	}

	logger.Info("Creating new repository '%s'", name)
	payload, _ := sjson.Set("", "name", name)
	payload, _ = sjson.Set(payload, "description", description)
	payload, _ = sjson.Set(payload, "private", false)
	payload, _ = sjson.Set(payload, "auto_init", false)

	body, err = c.do(ctx, http.MethodPost, "/user/repos", payload)
	if err != nil {
		return Repo{}, fmt.Errorf("create repo %s: %w", name, err)
	}
	repo := repoFrom(body)
	logger.Info("Repository created: %s", repo.HTMLURL)
	return repo, nil
}

// CommitFile creates or updates a text file.
func (c *Client) CommitFile(ctx context.Context, repo Repo, path string, content string, message string) error {
	return c.putContents(ctx, repo, path, []byte(content), message)
}

// CommitBinaryFile creates or updates a binary file.
func (c *Client) CommitBinaryFile(ctx context.Context, repo Repo, path string, content []byte, message string) error {
	return c.putContents(ctx, repo, path, content, message)
}

func (c *Client) putContents(ctx context.Context, repo Repo, path string, content []byte, message string) error {
	endpoint := fmt.Sprintf("/repos/%s/contents/%s", repo.FullName, path)

	payload, _ := sjson.Set("", "message", message)
	payload, _ = sjson.Set(payload, "content", base64.StdEncoding.EncodeToString(content))

	// Updating an existing file requires its current blob sha.
	existing, err := c.do(ctx, http.MethodGet, endpoint, "")
	switch {
	case err == nil:
		payload, _ = sjson.Set(payload, "sha", gjson.Get(existing, "sha").String())
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if _, err := c.do(ctx, http.MethodPut, endpoint, payload); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	logger.Info("Committed %s in %s", path, repo.FullName)
	return nil
}

// EnablePages turns on Pages for a branch. 409 means already enabled and
// counts as success; any other failure returns false so the pipeline can
// proceed on the assumption the feature catches up asynchronously.
func (c *Client) EnablePages(ctx context.Context, repo Repo, branch string) bool {
	payload, _ := sjson.Set("", "source.branch", branch)
	payload, _ = sjson.Set(payload, "source.path", "/")

	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pages", repo.FullName), payload)
	if err == nil {
		logger.Info("Pages enabled for %s", repo.FullName)
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		logger.Info("Pages already enabled for %s", repo.FullName)
		return true
	}
	logger.Error("Failed to enable Pages for %s: %v", repo.FullName, err)
	return false
}

// LatestCommitSHA returns the head commit of the default branch.
func (c *Client) LatestCommitSHA(ctx context.Context, repo Repo) (string, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/commits?per_page=1", repo.FullName), "")
	if err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	sha := gjson.Get(body, "0.sha").String()
	if sha == "" {
		return "", ErrNotFound
	}
	return sha, nil
}

// FileContent fetches and decodes one file. Missing files return
// ErrNotFound, which round-context callers tolerate.
func (c *Client) FileContent(ctx context.Context, repo Repo, path string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/contents/%s", repo.FullName, path), "")
	if err != nil {
		return "", err
	}
	decoded, err := base64.StdEncoding.DecodeString(stripNewlines(gjson.Get(body, "content").String()))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return string(decoded), nil
}

// do performs one API call. 404 maps to ErrNotFound; other non-2xx
// statuses surface as *APIError.
func (c *Client) do(ctx context.Context, method string, endpoint string, body string) (string, error) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}

func repoFrom(body string) Repo {
	branch := gjson.Get(body, "default_branch").String()
	if branch == "" {
		branch = "main"
	}
	return Repo{
		Name:          gjson.Get(body, "name").String(),
		FullName:      gjson.Get(body, "full_name").String(),
		HTMLURL:       gjson.Get(body, "html_url").String(),
		DefaultBranch: branch,
	}
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
