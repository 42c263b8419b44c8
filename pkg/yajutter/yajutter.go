// Package yajutter contains the core domain types for the Yajutter search service.
package yajutter

// Post represents a single post in the Yajutter collection.
// Posts are immutable once fetched; author identity is resolved
// separately at render time.
type Post struct {
	User       *User  `json:"user,omitempty"` // Embedded author, detail endpoint only
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at,omitempty"` // ISO-8601, as received
	LikesCount *int64 `json:"likes_count,omitempty"`
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id,omitempty"` // 0 when absent
}

// User is the loosely structured identity record returned by the API.
// Upstream endpoints disagree on field names, so every known spelling is
// decoded as received and the Resolve* functions pick the canonical value.
type User struct {
	DisplayName    string `json:"display_name"`
	DisplayNameAlt string `json:"displayName"`
	Name           string `json:"name"`
	Nickname       string `json:"nickname"`
	Username       string `json:"username"`
	UserName       string `json:"user_name"`
	ScreenName     string `json:"screen_name"`
	AvatarURL      string `json:"avatar_url"`
	AvatarURLAlt   string `json:"avatarUrl"`
	Avatar         string `json:"avatar"`
	ProfileImage   string `json:"profile_image"`
	ID             int64  `json:"id"`
}

// PageMeta carries pagination metadata for one page of the collection.
type PageMeta struct {
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
}

// PageResult is one page of posts plus its pagination metadata.
// Meta is nil when the response carried none.
type PageResult struct {
	Meta  *PageMeta
	Posts []Post
}
