package github

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"commitwatch/logger"
	"commitwatch/models"
	"commitwatch/retry"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrUnexpectedStatus indicates a response with a status other than 200 OK.
	ErrUnexpectedStatus = fmt.Errorf("unexpected response status")
	// ErrMalformedResponse indicates a response body that could not be decoded.
	ErrMalformedResponse = fmt.Errorf("malformed response payload")
)

const (
	requestTimeout = 10 * time.Second
	// commitWindow bounds how many of the newest commits are fetched per branch.
	commitWindow = 30
	// rateLimitWarnThreshold is the remaining-request count below which a
	// warning is logged.
	rateLimitWarnThreshold = 10
)

// RateLimit represents GitHub's rate limit information
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Client represents a client for a GitHub-compatible commits API. Responses
// are normalized into models types before being returned.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	policy     retry.Policy
}

type branchResponse struct {
	Name string `json:"name"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Email string `json:"email"`
		} `json:"author"`
	} `json:"commit"`
	// Author is null when the commit author has no account on the host.
	Author *struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		HTMLURL   string `json:"html_url"`
	} `json:"author"`
	HTMLURL string `json:"html_url"`
}

// NewClient creates a client for the API at baseURL. When token is non-empty
// requests are authenticated with a bearer token.
func NewClient(baseURL, token string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source API URL %q: %w", baseURL, err)
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = requestTimeout
	}

	logger.Info("Initializing source API client",
		zap.String("base_url", parsed.String()),
		zap.Bool("authenticated", token != ""))

	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		policy:     retry.Default(),
	}, nil
}

// ListBranches fetches all branches of a repository.
func (c *Client) ListBranches(ctx context.Context, repo models.Repository) ([]models.Branch, error) {
	path := fmt.Sprintf("/repos/%s/%s/branches", repo.Owner, repo.Name)
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var raw []branchResponse
	if err := c.getJSON(ctx, reqURL.String(), &raw); err != nil {
		logger.Error("Failed to list branches",
			zap.Error(err),
			zap.String("repository", repo.Key()))
		return nil, fmt.Errorf("failed to list branches for %s: %w", repo.Key(), err)
	}

	branches := make([]models.Branch, 0, len(raw))
	for _, b := range raw {
		branches = append(branches, models.Branch{Name: b.Name})
	}

	logger.Debug("Listed branches",
		zap.String("repository", repo.Key()),
		zap.Int("count", len(branches)))

	return branches, nil
}

// ListCommits fetches the newest commits of a branch, ordered newest-first,
// normalized into models.Commit.
func (c *Client) ListCommits(ctx context.Context, repo models.Repository, branch string) ([]models.Commit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", repo.Owner, repo.Name)
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	q := reqURL.Query()
	q.Set("sha", branch)
	q.Set("per_page", strconv.Itoa(commitWindow))
	reqURL.RawQuery = q.Encode()

	var raw []commitResponse
	if err := c.getJSON(ctx, reqURL.String(), &raw); err != nil {
		logger.Error("Failed to list commits",
			zap.Error(err),
			zap.String("repository", repo.Key()),
			zap.String("branch", branch))
		return nil, fmt.Errorf("failed to list commits for %s@%s: %w", repo.Key(), branch, err)
	}

	commits := make([]models.Commit, 0, len(raw))
	for _, r := range raw {
		commits = append(commits, models.Commit{
			ID:         r.SHA,
			Message:    r.Commit.Message,
			AuthorName: r.displayName(),
			AuthorURL:  r.profileURL(),
			AvatarURL:  r.avatarURL(),
			HTMLURL:    r.HTMLURL,
			RepoKey:    repo.Key(),
			Branch:     branch,
		})
	}

	logger.Debug("Listed commits",
		zap.String("repository", repo.Key()),
		zap.String("branch", branch),
		zap.Int("count", len(commits)))

	return commits, nil
}

// getJSON performs a GET request and decodes the 200 response body into out.
// Transport-level failures are retried under the client's policy; any
// non-200 status or undecodable body fails immediately.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	return c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		c.checkRateLimit(resp)

		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
		}
		return nil
	})
}

func (r commitResponse) displayName() string {
	if r.Author != nil && r.Author.Login != "" {
		return r.Author.Login
	}
	if email := strings.TrimSpace(r.Commit.Author.Email); email != "" {
		return email
	}
	return "unknown"
}

func (r commitResponse) profileURL() string {
	if r.Author != nil {
		return r.Author.HTMLURL
	}
	return ""
}

// avatarURL falls back to a Gravatar identicon derived from the commit email
// when the author has no account avatar.
func (r commitResponse) avatarURL() string {
	if r.Author != nil && r.Author.AvatarURL != "" {
		return r.Author.AvatarURL
	}
	email := strings.ToLower(strings.TrimSpace(r.Commit.Author.Email))
	if email == "" {
		return ""
	}
	sum := md5.Sum([]byte(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(sum[:]))
}

// parseRateLimit parses rate limit information from response headers
func parseRateLimit(resp *http.Response) RateLimit {
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)

	return RateLimit{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Unix(reset, 0),
	}
}

// checkRateLimit logs when the API reports a nearly exhausted rate limit.
func (c *Client) checkRateLimit(resp *http.Response) {
	if resp.Header.Get("X-RateLimit-Remaining") == "" {
		return
	}
	rl := parseRateLimit(resp)
	if rl.Remaining <= rateLimitWarnThreshold {
		logger.Warn("Rate limit nearly exhausted",
			zap.Int("remaining", rl.Remaining),
			zap.Int("limit", rl.Limit),
			zap.Time("reset_time", rl.Reset))
	}
}
