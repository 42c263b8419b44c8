package cache

import (
	"testing"
	"time"

	"yajutter-search/pkg/yajutter"
)

func TestPostsCacheEmptyByDefault(t *testing.T) {
	c := NewPostsCache(0)
	if got := c.Get(); got != nil {
		t.Errorf("Get() on empty cache = %v, want nil", got)
	}
	if c.IsFresh() {
		t.Error("IsFresh() on empty cache = true, want false")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestPostsCacheSetAndGet(t *testing.T) {
	c := NewPostsCache(0)
	posts := []yajutter.Post{{ID: 1, Content: "hello world", UserID: 9}}
	c.Set(posts, &yajutter.PageMeta{TotalPages: 1, TotalCount: 1})

	got := c.Get()
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("Get() = %+v, want the stored post", got)
	}
	if !c.IsFresh() {
		t.Error("IsFresh() immediately after Set = false, want true")
	}
	if c.TotalPages() != 1 {
		t.Errorf("TotalPages() = %d, want 1", c.TotalPages())
	}
	if c.Timestamp().IsZero() {
		t.Error("Timestamp() is zero after Set")
	}
}

func TestPostsCacheTTLExpiry(t *testing.T) {
	c := NewPostsCache(5 * time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set([]yajutter.Post{{ID: 1}}, nil)

	c.now = func() time.Time { return base.Add(4 * time.Minute) }
	if c.Get() == nil {
		t.Error("Get() within TTL = nil, want collection")
	}

	c.now = func() time.Time { return base.Add(6 * time.Minute) }
	if got := c.Get(); got != nil {
		t.Errorf("Get() past TTL = %v, want nil", got)
	}
	if c.IsFresh() {
		t.Error("IsFresh() past TTL = true, want false")
	}
	// The stale collection is still held, just treated as absent.
	if c.Size() != 1 {
		t.Errorf("Size() past TTL = %d, want 1", c.Size())
	}
}

func TestPostsCacheSetReplacesAtomically(t *testing.T) {
	c := NewPostsCache(0)
	c.Set([]yajutter.Post{{ID: 1}, {ID: 2}}, &yajutter.PageMeta{TotalPages: 2})
	c.Set([]yajutter.Post{{ID: 3}}, &yajutter.PageMeta{TotalPages: 1})

	got := c.Get()
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("Get() after second Set = %+v, want only post 3", got)
	}
	if c.TotalPages() != 1 {
		t.Errorf("TotalPages() = %d, want 1", c.TotalPages())
	}
}

func TestPostsCacheSetKeepsTotalPagesWithoutMeta(t *testing.T) {
	c := NewPostsCache(0)
	c.Set([]yajutter.Post{{ID: 1}}, &yajutter.PageMeta{TotalPages: 4})
	c.Set([]yajutter.Post{{ID: 2}}, nil)
	if c.TotalPages() != 4 {
		t.Errorf("TotalPages() after meta-less Set = %d, want 4", c.TotalPages())
	}
}

func TestPostsCacheAppend(t *testing.T) {
	c := NewPostsCache(0)
	c.Append([]yajutter.Post{{ID: 1}})
	c.Append([]yajutter.Post{{ID: 2}, {ID: 3}})

	got := c.Get()
	if len(got) != 3 || got[0].ID != 1 || got[2].ID != 3 {
		t.Fatalf("Get() after appends = %+v, want posts 1,2,3 in order", got)
	}
}

func TestPostsCacheClear(t *testing.T) {
	c := NewPostsCache(0)
	c.Set([]yajutter.Post{{ID: 1}}, &yajutter.PageMeta{TotalPages: 3})
	c.Clear()

	if c.Get() != nil {
		t.Error("Get() after Clear() != nil")
	}
	if c.IsFresh() {
		t.Error("IsFresh() after Clear() = true")
	}
	if c.TotalPages() != 0 {
		t.Errorf("TotalPages() after Clear() = %d, want 0", c.TotalPages())
	}
	if c.Size() != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", c.Size())
	}
}

func TestUserCacheOperations(t *testing.T) {
	c := NewUserCache()
	if c.Has(9) {
		t.Error("Has(9) on empty cache = true")
	}
	if c.Get(9) != nil {
		t.Error("Get(9) on empty cache != nil")
	}

	u := &yajutter.User{ID: 9, Username: "gopher"}
	c.Set(9, u)

	if !c.Has(9) {
		t.Error("Has(9) after Set = false")
	}
	if got := c.Get(9); got == nil || got.Username != "gopher" {
		t.Errorf("Get(9) = %+v, want the stored user", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	c.Clear()
	if c.Has(9) || c.Size() != 0 {
		t.Error("cache not empty after Clear()")
	}
}

// TestUserCacheSnapshotIsolated: mutations after Snapshot must not show up
// in the snapshot a filter is reading.
func TestUserCacheSnapshotIsolated(t *testing.T) {
	c := NewUserCache()
	c.Set(1, &yajutter.User{ID: 1})

	snap := c.Snapshot()
	c.Set(2, &yajutter.User{ID: 2})

	if len(snap) != 1 {
		t.Errorf("snapshot has %d users, want 1", len(snap))
	}
	if snap[1] == nil {
		t.Error("snapshot lost user 1")
	}
}
