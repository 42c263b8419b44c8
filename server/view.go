package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"yajutter-search/pkg/yajutter"
)

const excerptLimit = 200

type userView struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	ID          int64  `json:"id"`
}

type postView struct {
	Content      string `json:"content"`
	Excerpt      string `json:"excerpt"`
	Author       string `json:"author"`
	Handle       string `json:"handle"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	RelativeTime string `json:"relative_time,omitempty"`
	LikesCount   *int64 `json:"likes_count,omitempty"`
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id,omitempty"`
	AuthorKnown  bool   `json:"author_known"`
}

func newUserView(u *yajutter.User) userView {
	return userView{
		ID:          u.ID,
		DisplayName: yajutter.ResolveDisplayName(u),
		Handle:      yajutter.ResolveHandle(u),
		AvatarURL:   yajutter.ResolveAvatarURL(u),
	}
}

// postViews resolves each post's author from the embedded record or the
// user cache and renders the fields the dropdown needs. Authors that are
// still unknown are marked so the consumer can swap them in when an
// author event arrives.
func (s *Server) postViews(posts []yajutter.Post) []postView {
	now := time.Now()
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		user := p.User
		if user == nil && p.UserID != 0 {
			user = s.users.Get(p.UserID)
		}

		v := postView{
			ID:           p.ID,
			Content:      p.Content,
			Excerpt:      excerpt(p.Content),
			UserID:       p.UserID,
			CreatedAt:    p.CreatedAt,
			RelativeTime: relativeTime(p.CreatedAt, now),
			LikesCount:   p.LikesCount,
			AuthorKnown:  user != nil,
		}
		if user != nil {
			v.Author = yajutter.ResolveDisplayName(user)
			v.Handle = yajutter.ResolveHandle(user)
			v.AvatarURL = yajutter.ResolveAvatarURL(user)
		} else {
			v.Author = yajutter.UnknownName
			v.Handle = "#?"
			if p.UserID != 0 {
				v.Handle = fmt.Sprintf("#%d", p.UserID)
			}
		}
		views = append(views, v)
	}
	return views
}

// excerpt renders a plain-text preview of post content, stripping any
// markup and collapsing whitespace.
func excerpt(content string) string {
	text := content
	if strings.ContainsAny(content, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
			text = doc.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > excerptLimit {
		return string(runes[:excerptLimit]) + "…"
	}
	return text
}

// relativeTime formats an ISO-8601 timestamp relative to now; "" when the
// timestamp is absent or unparseable.
func relativeTime(iso string, now time.Time) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	sec := int64(now.Sub(t).Seconds())
	switch {
	case sec < 60:
		return "now"
	case sec < 3600:
		return fmt.Sprintf("%dm ago", sec/60)
	case sec < 86400:
		return fmt.Sprintf("%dh ago", sec/3600)
	case sec < 30*86400:
		return fmt.Sprintf("%dd ago", sec/86400)
	default:
		return t.Format("Jan 2, 2006")
	}
}
