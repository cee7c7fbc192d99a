// Package github reads recent repository activity from the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"automations/pkg/httpx"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.github.com"

// maxPages bounds pagination per listing.
const maxPages = 5

const perPage = 50

type PullRequest struct {
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	HTMLURL  string     `json:"html_url"`
	MergedAt *time.Time `json:"merged_at"`
	User     struct {
		Login string `json:"login"`
	} `json:"user"`
}

type Commit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// Headline returns the first line of the commit message.
func (c Commit) Headline() string {
	msg := c.Commit.Message
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

type Client struct {
	baseURL string
	token   string
	http    *httpx.Client
	logger  *logrus.Logger
}

func NewClient(baseURL, token string, hc *httpx.Client, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
		logger:  logger,
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}

// MergedPullRequests returns pull requests merged at or after since.
// repo is "owner/name".
func (c *Client) MergedPullRequests(ctx context.Context, repo string, since time.Time) ([]PullRequest, error) {
	if err := validateRepo(repo); err != nil {
		return nil, err
	}
	var out []PullRequest
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("state", "closed")
		q.Set("sort", "updated")
		q.Set("direction", "desc")
		q.Set("per_page", fmt.Sprint(perPage))
		q.Set("page", fmt.Sprint(page))

		var batch []PullRequest
		endpoint := fmt.Sprintf("%s/repos/%s/pulls?%s", c.baseURL, repo, q.Encode())
		if err := c.http.DoJSON(ctx, "GET", endpoint, c.headers(), nil, &batch); err != nil {
			return nil, fmt.Errorf("list pull requests for %s: %w", repo, err)
		}
		for _, pr := range batch {
			if pr.MergedAt != nil && !pr.MergedAt.Before(since) {
				out = append(out, pr)
			}
		}
		if len(batch) < perPage {
			break
		}
	}
	c.logger.Debugf("github: %d merged pull requests in %s since %s", len(out), repo, since.Format(time.RFC3339))
	return out, nil
}

// CommitsSince returns commits on the default branch since the given time.
func (c *Client) CommitsSince(ctx context.Context, repo string, since time.Time) ([]Commit, error) {
	if err := validateRepo(repo); err != nil {
		return nil, err
	}
	var out []Commit
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("since", since.UTC().Format(time.RFC3339))
		q.Set("per_page", fmt.Sprint(perPage))
		q.Set("page", fmt.Sprint(page))

		var batch []Commit
		endpoint := fmt.Sprintf("%s/repos/%s/commits?%s", c.baseURL, repo, q.Encode())
		if err := c.http.DoJSON(ctx, "GET", endpoint, c.headers(), nil, &batch); err != nil {
			return nil, fmt.Errorf("list commits for %s: %w", repo, err)
		}
		out = append(out, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return out, nil
}

func validateRepo(repo string) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository %q, expected owner/name", repo)
	}
	return nil
}
