// Package cache provides the in-memory caches backing the search pipeline:
// a time-bounded full-collection cache for posts and an unbounded
// identity cache for users. Both are process-local; nothing survives a
// restart and nothing is shared across processes.
package cache

import (
	"sync"
	"time"

	"yajutter-search/pkg/yajutter"
)

// DefaultTTL is how long a committed post collection stays fresh.
const DefaultTTL = 5 * time.Minute

// PostsCache holds the full post collection, or nothing. Only complete
// collections are committed by the scan; a collection older than the TTL
// is treated as absent.
type PostsCache struct {
	now        func() time.Time
	posts      []yajutter.Post
	fetchedAt  time.Time
	totalPages int
	ttl        time.Duration
	mu         sync.Mutex
}

// NewPostsCache creates a posts cache. A non-positive ttl selects DefaultTTL.
func NewPostsCache(ttl time.Duration) *PostsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostsCache{ttl: ttl, now: time.Now}
}

// Get returns the stored collection if present and younger than the TTL,
// else nil. Never performs I/O.
func (c *PostsCache) Get() []yajutter.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh() {
		return c.posts
	}
	return nil
}

// Set atomically replaces the stored collection and resets the timestamp.
// TotalPages is recorded from meta when present.
func (c *PostsCache) Set(posts []yajutter.Post, meta *yajutter.PageMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = posts
	c.fetchedAt = c.now()
	if meta != nil && meta.TotalPages > 0 {
		c.totalPages = meta.TotalPages
	}
}

// Append grows the stored collection in place and refreshes the timestamp.
func (c *PostsCache) Append(delta []yajutter.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append(c.posts, delta...)
	c.fetchedAt = c.now()
}

// Clear empties the cache. Invoked whenever the credential changes so
// stale cross-credential data never leaks.
func (c *PostsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = nil
	c.fetchedAt = time.Time{}
	c.totalPages = 0
}

// IsFresh reports whether a collection is present and within the TTL.
func (c *PostsCache) IsFresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fresh()
}

func (c *PostsCache) fresh() bool {
	return c.posts != nil && c.now().Sub(c.fetchedAt) < c.ttl
}

// TotalPages returns the last known total-page count, 0 if unknown.
func (c *PostsCache) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPages
}

// Timestamp returns when the collection was captured.
func (c *PostsCache) Timestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// Size returns the number of stored posts, fresh or not.
func (c *PostsCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posts)
}

// UserCache maps user id to identity record. No expiry: identity rarely
// changes within a session, so simplicity wins over TTL bookkeeping.
type UserCache struct {
	users map[int64]*yajutter.User
	mu    sync.RWMutex
}

// NewUserCache creates an empty user cache.
func NewUserCache() *UserCache {
	return &UserCache{users: make(map[int64]*yajutter.User)}
}

// Get returns the cached user, or nil.
func (c *UserCache) Get(id int64) *yajutter.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[id]
}

// Set stores a user record.
func (c *UserCache) Set(id int64, u *yajutter.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[id] = u
}

// Has reports whether a user is cached.
func (c *UserCache) Has(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[id]
	return ok
}

// Snapshot returns a copy of the map for read-only use by the filter.
func (c *UserCache) Snapshot() map[int64]*yajutter.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[int64]*yajutter.User, len(c.users))
	for id, u := range c.users {
		snap[id] = u
	}
	return snap
}

// Size returns the number of cached users.
func (c *UserCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Clear empties the cache.
func (c *UserCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = make(map[int64]*yajutter.User)
}
