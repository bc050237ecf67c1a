package client

import (
	"fmt"
	"strings"
)

// Command names a remote bot command endpoint.
type Command string

const (
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
	CommandPost   Command = "post"
	CommandEngage Command = "engage"
)

// Path returns the endpoint path relative to the API base URL.
func (c Command) Path() string { return "/" + string(c) }

// CommandResult is the body returned by every command endpoint.
// Manual actions may carry Error, Content or Engagements instead of Message.
type CommandResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Content     string `json:"content,omitempty"`
	Engagements *int   `json:"engagements,omitempty"`
}

// Summary returns the human readable outcome of the command.
func (r CommandResult) Summary() string {
	if msg := strings.TrimSpace(r.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(r.Error); msg != "" {
		return msg
	}
	if r.Content != "" {
		return "Posted: " + r.Content
	}
	if r.Engagements != nil {
		return fmt.Sprintf("Engaged with %d tweets", *r.Engagements)
	}
	return ""
}

// Stats is a snapshot of the bot's counters as served by GET /stats.
// Optional fields are nil when the server omits them or sends null.
type Stats struct {
	Status           string  `json:"status"`
	LastPost         *string `json:"last_post,omitempty"`
	PostsToday       *int    `json:"posts_today,omitempty"`
	EngagementsToday *int    `json:"engagements_today,omitempty"`
	ContentPoolSize  *int    `json:"content_pool_size,omitempty"`
}

// LastPostOr returns the last post timestamp or def when absent or empty.
func (s Stats) LastPostOr(def string) string {
	if s.LastPost == nil || *s.LastPost == "" {
		return def
	}
	return *s.LastPost
}

// PostsTodayOr returns the post counter or def when absent.
func (s Stats) PostsTodayOr(def int) int { return intOr(s.PostsToday, def) }

// EngagementsTodayOr returns the engagement counter or def when absent.
func (s Stats) EngagementsTodayOr(def int) int { return intOr(s.EngagementsToday, def) }

// ContentPoolSizeOr returns the content pool size or def when absent.
func (s Stats) ContentPoolSizeOr(def int) int { return intOr(s.ContentPoolSize, def) }

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
