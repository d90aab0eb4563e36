// Package thingiverse fetches thing metadata from the platform's public
// REST API.
package thingiverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Endpoint suffixes appended to the per-thing base URL.
const (
	SuffixThing      = ""
	SuffixImages     = "/images"
	SuffixFiles      = "/files"
	SuffixLikes      = "/likes"
	SuffixCategories = "/categories"
)

// Outcome classifies a fetch result.
type Outcome int

const (
	// Success is a 2xx response with a parsed JSON body.
	Success Outcome = iota
	// NotFound means the thing does not exist or was deleted. Terminal
	// for this thing, never retried.
	NotFound
	// Forbidden means access was denied, e.g. an unpublished thing.
	// Terminal for this thing, never retried.
	Forbidden
	// Empty means the retry budget was exhausted on transient failures.
	// Consumed downstream as "nothing to merge".
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	default:
		return "empty"
	}
}

// Result is the classified outcome of fetching one endpoint.
type Result struct {
	Outcome Outcome
	Body    json.RawMessage
}

// Client issues paced, bounded-retry GET requests against the API.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	pacing   time.Duration
	attempts int
	log      *zap.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Token    string
	Pacing   time.Duration
	Timeout  time.Duration
	Attempts int
}

// NewClient creates an API client.
func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.Pacing <= 0 {
		opts.Pacing = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		baseURL:  opts.BaseURL,
		token:    opts.Token,
		pacing:   opts.Pacing,
		attempts: opts.Attempts,
		log:      log,
	}
}

// URL returns the endpoint URL for a thing id and suffix.
func (c *Client) URL(thingID int64, suffix string) string {
	return c.baseURL + strconv.FormatInt(thingID, 10) + suffix
}

// Fetch retrieves one endpoint for a thing. Transient failures (network
// errors, unclassified statuses) are retried up to the attempt budget
// and degrade to Empty. A fixed pacing delay is enforced after every
// attempt regardless of outcome.
func (c *Client) Fetch(ctx context.Context, thingID int64, suffix string) Result {
	url := c.URL(thingID, suffix)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		res, retryable := c.attemptOnce(ctx, thingID, url)
		c.pause(ctx)
		if !retryable {
			return res
		}
		if ctx.Err() != nil {
			break
		}
	}

	return Result{Outcome: Empty}
}

// attemptOnce performs a single request. retryable is true only for
// transient failures.
func (c *Client) attemptOnce(ctx context.Context, thingID int64, url string) (Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logFailure(thingID, "transient", url, err)
		return Result{Outcome: Empty}, true
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logFailure(thingID, "transient", url, err)
		return Result{Outcome: Empty}, true
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.logFailure(thingID, "transient", url, err)
			return Result{Outcome: Empty}, true
		}
		if !json.Valid(body) {
			c.logFailure(thingID, "transient", url, fmt.Errorf("invalid JSON body"))
			return Result{Outcome: Empty}, true
		}
		return Result{Outcome: Success, Body: body}, false

	case resp.StatusCode == http.StatusNotFound:
		c.logFailure(thingID, "not_found", url, fmt.Errorf("status %d", resp.StatusCode))
		return Result{Outcome: NotFound}, false

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logFailure(thingID, "forbidden", url, fmt.Errorf("status %d", resp.StatusCode))
		return Result{Outcome: Forbidden}, false

	default:
		c.logFailure(thingID, "transient", url, fmt.Errorf("status %d", resp.StatusCode))
		return Result{Outcome: Empty}, true
	}
}

// pause waits for the pacing interval or until ctx is done.
func (c *Client) pause(ctx context.Context) {
	if c.pacing <= 0 {
		return
	}
	timer := time.NewTimer(c.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *Client) logFailure(thingID int64, class, url string, err error) {
	c.log.Warn("fetch failed",
		zap.Int64("thing_id", thingID),
		zap.String("class", class),
		zap.String("url", url),
		zap.Error(err),
	)
}
