// Package search implements the progressive, cache-aware search pipeline.
// A query first consults the posts cache; on a hit filtering is synchronous
// and the only result batch is delivered immediately. On a miss the engine
// drives the transport page by page, emitting incremental result batches
// and progress ticks, and commits the complete collection to the cache once
// every page has been fetched.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"yajutter-search/cache"
	"yajutter-search/pkg/yajutter"
)

const (
	// concurrentPages is the fixed batch width for page fetches during a scan.
	concurrentPages = 3
	// enrichBatchSize is the fixed batch width for detail fetches during enrichment.
	enrichBatchSize = 5
	// maxEnrichPosts caps how many results are considered for enrichment.
	maxEnrichPosts = 20
)

// Transport fetches pages, post details, and users from the remote API.
type Transport interface {
	PostsPage(ctx context.Context, page int, key string) (*yajutter.PageResult, error)
	PostDetail(ctx context.Context, id int64, key string) (*yajutter.Post, error)
	UserByName(ctx context.Context, name, key string) (*yajutter.User, error)
}

// Callbacks receives the one-shot event stream of a single search
// invocation. Nil fields are skipped. Delivered results are only ever
// appended to across successive OnResults calls, never retracted or
// reordered. A totalPages of 0 means unknown.
type Callbacks struct {
	OnResults        func(results []yajutter.Post, fromCache bool)
	OnProgress       func(pagesFetched, totalPages int)
	OnComplete       func(results []yajutter.Post, totalPosts int)
	OnError          func(err error)
	OnUser           func(user *yajutter.User)
	OnAuthorResolved func(userID int64)
}

// Engine orchestrates fetch, filter, merge, and cache commit.
type Engine struct {
	transport Transport
	posts     *cache.PostsCache
	users     *cache.UserCache
	logger    *slog.Logger
}

// New creates a search engine over the given collaborators.
func New(transport Transport, posts *cache.PostsCache, users *cache.UserCache, logger *slog.Logger) *Engine {
	return &Engine{
		transport: transport,
		posts:     posts,
		users:     users,
		logger:    logger,
	}
}

// Search runs one search invocation. On a cache hit no network calls are
// made. On a miss, page 1 is fetched alone to learn the page count, the
// remaining pages are fetched in fixed-size concurrent batches, and the
// complete unfiltered collection is committed to the posts cache at the
// end. A hard failure on page 1 is fatal to the search; failures on later
// pages degrade to empty pages. Cancellation truncates the scan and
// returns the accumulated results with a nil error.
func (e *Engine) Search(ctx context.Context, query, key string, cb Callbacks) ([]yajutter.Post, error) {
	users := e.users.Snapshot()

	if cached := e.posts.Get(); cached != nil {
		results := yajutter.FilterByQuery(cached, query, users)
		e.logger.Info("Search served from cache",
			"query", query,
			"results", len(results),
			"cached_posts", len(cached))
		if cb.OnResults != nil {
			cb.OnResults(results, true)
		}
		if cb.OnComplete != nil {
			cb.OnComplete(results, len(cached))
		}
		return results, nil
	}

	var results []yajutter.Post

	// Page 1 alone, to learn total_pages. Without it no scan is possible.
	first, err := e.transport.PostsPage(ctx, 1, key)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return results, nil
		}
		e.logger.Warn("First page fetch failed, aborting search", "query", query, "error", err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages := 0
	if first.Meta != nil {
		totalPages = first.Meta.TotalPages
	}

	all := make([]yajutter.Post, 0, len(first.Posts))
	all = append(all, first.Posts...)
	results = append(results, yajutter.FilterByQuery(first.Posts, query, users)...)

	if cb.OnProgress != nil {
		cb.OnProgress(1, totalPages)
	}
	if len(results) > 0 && cb.OnResults != nil {
		cb.OnResults(results, false)
	}

	// Remaining pages in fixed-width concurrent batches. Every page is
	// fetched so the committed cache is complete, not just the matches.
	page := 2
	for totalPages > 1 && page <= totalPages {
		if ctx.Err() != nil {
			return results, nil
		}

		width := concurrentPages
		if rem := totalPages - page + 1; rem < width {
			width = rem
		}

		// Page-indexed slots keep the collection in page order no matter
		// which fetch completes first.
		slots := make([][]yajutter.Post, width)
		var wg sync.WaitGroup
		for i := range width {
			wg.Add(1)
			go func(slot, pageNum int) {
				defer wg.Done()
				res, err := e.transport.PostsPage(ctx, pageNum, key)
				if err != nil {
					// One bad page must not sink the search.
					e.logger.Warn("Page fetch failed, treating as empty", "page", pageNum, "error", err)
					return
				}
				slots[slot] = res.Posts
			}(i, page+i)
		}
		wg.Wait()
		page += width

		if ctx.Err() != nil {
			return results, nil
		}

		for _, posts := range slots {
			all = append(all, posts...)
			results = append(results, yajutter.FilterByQuery(posts, query, users)...)
		}
		if cb.OnProgress != nil {
			cb.OnProgress(page-1, totalPages)
		}
		if cb.OnResults != nil {
			cb.OnResults(results, false)
		}
	}

	if ctx.Err() != nil {
		return results, nil
	}

	var meta *yajutter.PageMeta
	if totalPages > 0 {
		meta = &yajutter.PageMeta{TotalPages: totalPages, TotalCount: len(all)}
	}
	e.posts.Set(all, meta)

	e.logger.Info("Scan completed and committed to cache",
		"query", query,
		"results", len(results),
		"posts", len(all),
		"total_pages", totalPages)

	if cb.OnComplete != nil {
		cb.OnComplete(results, len(all))
	}
	return results, nil
}

// Enrich backfills author identities for the leading results whose author
// is neither embedded nor cached, fetching post details in fixed-size
// concurrent batches. Individual failures leave the author unknown;
// cancellation stops between batches.
func (e *Engine) Enrich(ctx context.Context, results []yajutter.Post, key string, cb Callbacks) {
	if len(results) > maxEnrichPosts {
		results = results[:maxEnrichPosts]
	}

	var pending []yajutter.Post
	for _, p := range results {
		if p.UserID != 0 && p.User == nil && !e.users.Has(p.UserID) {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return
	}

	e.logger.Info("Enriching results with author identities", "posts", len(pending))

	for start := 0; start < len(pending); start += enrichBatchSize {
		if ctx.Err() != nil {
			return
		}
		batch := pending[start:min(start+enrichBatchSize, len(pending))]

		details := make([]*yajutter.Post, len(batch))
		var wg sync.WaitGroup
		for i, p := range batch {
			wg.Add(1)
			go func(slot int, id int64) {
				defer wg.Done()
				detail, err := e.transport.PostDetail(ctx, id, key)
				if err != nil {
					e.logger.Warn("Post detail fetch failed", "post_id", id, "error", err)
					return
				}
				details[slot] = detail
			}(i, p.ID)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return
		}
		for _, detail := range details {
			if detail == nil || detail.User == nil {
				continue
			}
			e.users.Set(detail.User.ID, detail.User)
			if cb.OnAuthorResolved != nil {
				cb.OnAuthorResolved(detail.User.ID)
			}
		}
	}
}
