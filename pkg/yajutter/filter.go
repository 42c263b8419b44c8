package yajutter

import (
	"strconv"
	"strings"
)

// UnknownName is the display-name marker for users that cannot be resolved.
const UnknownName = "unknown"

// ResolveDisplayName picks the canonical display name from a loose user
// record. Falls back through the handle candidates and never returns an
// empty string.
func ResolveDisplayName(u *User) string {
	if u == nil {
		return UnknownName
	}
	for _, s := range []string{u.DisplayName, u.DisplayNameAlt, u.Name, u.Nickname} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	if h := ResolveHandle(u); strings.TrimSpace(h) != "" {
		return h
	}
	return UnknownName
}

// ResolveHandle picks the canonical handle. The numeric user id, rendered
// as a string, is the last resort; a nil record resolves to "".
func ResolveHandle(u *User) string {
	if u == nil {
		return ""
	}
	for _, s := range []string{u.Username, u.UserName, u.ScreenName} {
		if s != "" {
			return s
		}
	}
	if u.ID != 0 {
		return strconv.FormatInt(u.ID, 10)
	}
	return ""
}

// ResolveAvatarURL picks the canonical avatar URL, or "" when the record
// is nil or carries none.
func ResolveAvatarURL(u *User) string {
	if u == nil {
		return ""
	}
	for _, s := range []string{u.AvatarURL, u.AvatarURLAlt, u.Avatar, u.ProfileImage} {
		if s != "" {
			return s
		}
	}
	return ""
}

// FilterByQuery returns the posts matching query: a case-insensitive
// substring of the content, or of the author's resolved handle or display
// name. The author is taken from the embedded record when present, else
// from the users map by id. A blank query matches everything.
//
// Filtering preserves input order and is idempotent.
func FilterByQuery(posts []Post, query string, users map[int64]*User) []Post {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return posts
	}
	var out []Post
	for _, p := range posts {
		if postMatches(p, q, users) {
			out = append(out, p)
		}
	}
	return out
}

func postMatches(p Post, q string, users map[int64]*User) bool {
	if strings.Contains(strings.ToLower(p.Content), q) {
		return true
	}
	if p.UserID != 0 && users != nil {
		if u := users[p.UserID]; u != nil && userMatches(u, q) {
			return true
		}
	}
	if p.User != nil && userMatches(p.User, q) {
		return true
	}
	return false
}

func userMatches(u *User, q string) bool {
	return strings.Contains(strings.ToLower(ResolveHandle(u)), q) ||
		strings.Contains(strings.ToLower(ResolveDisplayName(u)), q)
}
