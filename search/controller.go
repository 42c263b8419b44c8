package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"yajutter-search/pkg/yajutter"
)

// Controller owns the single-slot active search: at most one search
// invocation is current, and starting a new one cancels the previous
// in-flight search before any work begins.
type Controller struct {
	engine *Engine
	logger *slog.Logger
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewController creates a controller around an engine.
func NewController(engine *Engine, logger *slog.Logger) *Controller {
	return &Controller{engine: engine, logger: logger}
}

// Run executes one full search invocation: the progressive post scan, the
// parallel exact-name user lookup, and the author-enrichment pass. The
// user lookup is error-swallowed; a missing user is delivered as nil.
// Cancellation (by the parent context or by a newer Run) returns the
// accumulated results with a nil error.
func (c *Controller) Run(parent context.Context, query, key string, cb Callbacks) ([]yajutter.Post, error) {
	ctx, cancel := c.begin(parent)
	defer cancel()

	searchID := uuid.NewString()
	c.logger.Info("Search started", "search_id", searchID, "query", query)

	userCh := make(chan *yajutter.User, 1)
	go func() {
		user, err := c.engine.transport.UserByName(ctx, query, key)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Warn("User lookup failed", "search_id", searchID, "query", query, "error", err)
			}
			user = nil
		}
		userCh <- user
	}()

	results, err := c.engine.Search(ctx, query, key, cb)
	if err != nil {
		c.logger.Warn("Search failed", "search_id", searchID, "query", query, "error", err)
		return nil, err
	}

	user := <-userCh
	if ctx.Err() != nil {
		c.logger.Info("Search cancelled", "search_id", searchID, "query", query, "results", len(results))
		return results, nil
	}
	if cb.OnUser != nil {
		cb.OnUser(user)
	}

	c.engine.Enrich(ctx, results, key, cb)

	c.logger.Info("Search finished",
		"search_id", searchID,
		"query", query,
		"results", len(results),
		"user_found", user != nil)
	return results, nil
}

// Cancel aborts the current in-flight search, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// begin cancels any prior search and installs a fresh cancellation handle.
func (c *Controller) begin(parent context.Context) (context.Context, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return ctx, cancel
}
