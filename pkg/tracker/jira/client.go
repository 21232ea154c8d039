// Package jira fetches released versions and fixed bugs of a project from a
// Jira server's REST API v2.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// Defaults.
const (
	DefaultBaseURL           = "https://issues.apache.org/jira"
	DefaultPageSize          = 100
	DefaultRequestsPerSecond = 5
	DefaultTimeout           = 30 * time.Second
)

// CreatedLayout is the layout of issue timestamps.
const CreatedLayout = "2006-01-02T15:04:05.000-0700"

const maxErrorBody = 512

// Sentinel errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrEmptyProject     = errors.New("project key is empty")
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Project           string
	User              string
	Token             string
	PageSize          int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client is a rate-limited Jira REST client for one project.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Project == "" {
		return nil, ErrEmptyProject
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type version struct {
	Name        string `json:"name"`
	Released    bool   `json:"released"`
	ReleaseDate string `json:"releaseDate"`
}

// Releases returns the released versions that carry a release date, ordered
// by date with indices assigned.
func (c *Client) Releases(ctx context.Context) ([]release.Release, error) {
	var versions []version

	endpoint := fmt.Sprintf("%s/rest/api/2/project/%s/versions", c.cfg.BaseURL, url.PathEscape(c.cfg.Project))
	if err := c.get(ctx, endpoint, &versions); err != nil {
		return nil, fmt.Errorf("fetch versions: %w", err)
	}

	releases := make([]release.Release, 0, len(versions))

	for _, v := range versions {
		if !v.Released || v.ReleaseDate == "" {
			continue
		}

		date, err := time.Parse(release.DateLayout, v.ReleaseDate)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", v.Name, err)
		}

		releases = append(releases, release.Release{Name: v.Name, Date: date})
	}

	return release.AssignIndices(releases), nil
}

type searchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type issue struct {
	Key    string `json:"key"`
	Fields struct {
		Created  string    `json:"created"`
		Versions []version `json:"versions"`
	} `json:"fields"`
}

// JQL returns the search query for fixed bugs of the project.
func (c *Client) JQL() string {
	return fmt.Sprintf("project = '%s' AND issuetype = Bug AND status in (Resolved, Closed) "+
		"AND resolution = Fixed ORDER BY created ASC", c.cfg.Project)
}

// Defects pages through the fixed bugs of the project, oldest first.
func (c *Client) Defects(ctx context.Context) ([]*defect.Defect, error) {
	var defects []*defect.Defect

	for startAt := 0; ; {
		query := url.Values{}
		query.Set("jql", c.JQL())
		query.Set("fields", "key,created,resolutiondate,versions")
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(c.cfg.PageSize))

		var page searchPage
		if err := c.get(ctx, c.cfg.BaseURL+"/rest/api/2/search?"+query.Encode(), &page); err != nil {
			return nil, fmt.Errorf("search issues at %d: %w", startAt, err)
		}

		for _, is := range page.Issues {
			created, err := time.Parse(CreatedLayout, is.Fields.Created)
			if err != nil {
				return nil, fmt.Errorf("issue %s: %w", is.Key, err)
			}

			affected := make([]string, 0, len(is.Fields.Versions))
			for _, v := range is.Fields.Versions {
				affected = append(affected, v.Name)
			}

			defects = append(defects, defect.New(is.Key, created, affected))
		}

		c.logger.DebugContext(ctx, "fetched issue page", "start_at", startAt, "issues", len(page.Issues), "total", page.Total)

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	return defects, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.cfg.User != "" || c.cfg.Token != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
