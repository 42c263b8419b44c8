// Package api implements the client for the Yajutter REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"yajutter-search/pkg/yajutter"
)

// DefaultBaseURL is the production Yajutter API endpoint.
const DefaultBaseURL = "https://yajutter.yajuvideo.in/api/yajutter"

// StatusError indicates a non-success HTTP response from the API.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.URL)
}

// IsStatusError checks if an error is an HTTP status error.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Client fetches posts and users from the Yajutter API.
type Client struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// New creates a new API client. An empty baseURL selects the production
// endpoint.
func New(client *http.Client, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  client,
		logger:  logger,
		baseURL: baseURL,
	}
}

// pageEnvelope tolerates the API's inconsistent response wrapping: the
// post list may arrive bare or under data, posts, or results.
type pageEnvelope struct {
	Meta    *yajutter.PageMeta `json:"meta"`
	Data    []yajutter.Post    `json:"data"`
	Posts   []yajutter.Post    `json:"posts"`
	Results []yajutter.Post    `json:"results"`
}

// PostsPage fetches one page (1-indexed) of the post collection.
func (c *Client) PostsPage(ctx context.Context, page int, key string) (*yajutter.PageResult, error) {
	reqURL := fmt.Sprintf("%s/posts?page=%d", c.baseURL, page)
	body, err := c.get(ctx, reqURL, key, false)
	if err != nil {
		return nil, err
	}

	// Bare array first, then the wrapped envelope.
	var bare []yajutter.Post
	if err := json.Unmarshal(body, &bare); err == nil {
		return &yajutter.PageResult{Posts: bare}, nil
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode posts page: %w", err)
	}

	posts := env.Data
	if posts == nil {
		posts = env.Posts
	}
	if posts == nil {
		posts = env.Results
	}
	if posts == nil {
		posts = []yajutter.Post{}
	}
	return &yajutter.PageResult{Posts: posts, Meta: env.Meta}, nil
}

// PostDetail fetches a single post with its embedded author.
// Returns (nil, nil) when the post does not exist.
func (c *Client) PostDetail(ctx context.Context, id int64, key string) (*yajutter.Post, error) {
	reqURL := fmt.Sprintf("%s/posts/%d", c.baseURL, id)
	body, err := c.get(ctx, reqURL, key, true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var post yajutter.Post
	if err := json.Unmarshal(body, &post); err != nil {
		return nil, fmt.Errorf("decode post detail: %w", err)
	}
	return &post, nil
}

// UserByName looks a user up by exact name.
// Returns (nil, nil) when no such user exists.
func (c *Client) UserByName(ctx context.Context, name, key string) (*yajutter.User, error) {
	reqURL := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(name))
	body, err := c.get(ctx, reqURL, key, true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var user yajutter.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// get performs an authenticated GET with retries. Network errors and 5xx
// responses are retried; other non-2xx statuses fail immediately with a
// StatusError. When notFoundOK is set, a 404 yields a nil body and no
// error. Context cancellation always surfaces as ctx.Err().
func (c *Client) get(ctx context.Context, reqURL, key string, notFoundOK bool) ([]byte, error) {
	var body []byte
	var notFound bool

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+key)
			req.Header.Set("Content-Type", "application/json")

			startTime := time.Now()
			resp, err := c.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				c.logger.Warn("HTTP request failed, will retry",
					"url", reqURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Debug("HTTP request completed",
				"url", reqURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			if notFoundOK && resp.StatusCode == http.StatusNotFound {
				notFound = true
				return nil
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				serr := &StatusError{Status: resp.StatusCode, URL: reqURL}
				if resp.StatusCode >= 500 {
					c.logger.Warn("HTTP request returned server error, will retry", "status_code", resp.StatusCode)
					return serr
				}
				return retry.Unrecoverable(serr)
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.MaxJitter(time.Second),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying fetch after error", "attempt", n, "url", reqURL, "error", err)
		}),
	)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	return body, nil
}
