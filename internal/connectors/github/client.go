package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout is the default HTTP timeout for API calls.
	DefaultTimeout = 30 * time.Second

	// DownloadTimeout bounds an archive download.
	DownloadTimeout = 10 * time.Minute

	// maxRedirects is passed to the archive link endpoint.
	maxRedirects = 3
)

// Client wraps the go-github client with helper methods.
type Client struct {
	gh       *gh.Client
	download *http.Client
	limiter  *RateLimiter
}

// NewClient creates a GitHub API client. An empty token makes unauthenticated
// requests.
func NewClient(ctx context.Context, token string) *Client {
	var api *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		api = oauth2.NewClient(ctx, ts)
	} else {
		api = &http.Client{}
	}
	api.Timeout = DefaultTimeout

	return &Client{
		gh:       gh.NewClient(api),
		download: &http.Client{Timeout: DownloadTimeout},
		limiter:  NewRateLimiter(ProactiveRate),
	}
}

// NewClientWithHTTPClient creates a client for a GitHub Enterprise or test
// server at baseURL, using httpClient for both API calls and downloads.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, rps float64) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	api := gh.NewClient(httpClient)
	api.BaseURL = u
	return &Client{
		gh:       api,
		download: httpClient,
		limiter:  NewRateLimiter(rps),
	}, nil
}

// ArchiveLink returns the tarball URL of owner/repo at ref.
func (c *Client) ArchiveLink(ctx context.Context, owner, repo, ref string) (*url.URL, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &gh.RepositoryContentGetOptions{Ref: ref}
	link, resp, err := c.gh.Repositories.GetArchiveLink(ctx, owner, repo, gh.Tarball, opts, maxRedirects)
	c.observe(resp)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusFound {
			return nil, statusError("get archive link", &APIError{
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				URL:        fmt.Sprintf("repos/%s/%s/tarball/%s", owner, repo, ref),
			}, c.limiter)
		}
		return nil, classify(err, "get archive link", c.limiter)
	}
	return link, nil
}

// Download opens the archive at u. The caller must close the body.
func (c *Client) Download(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err, "download archive", c.limiter)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, statusError("download archive", &APIError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			URL:        u.Redacted(),
		}, nil)
	}
	return resp.Body, nil
}

// Quota returns the allowance GitHub last reported.
func (c *Client) Quota() Quota {
	return c.limiter.Quota()
}

func (c *Client) observe(resp *gh.Response) {
	if resp != nil {
		c.limiter.Observe(resp.Response)
	}
}
