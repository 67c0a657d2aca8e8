package channel

import (
	"fmt"
	"net/url"
	"strings"
)

// TokenFunc returns the current auth token.
type TokenFunc func() (string, error)

// Endpoints builds channel URLs. The token is fetched on every call so
// reconnects use the same construction and pick up a rotated token.
type Endpoints struct {
	WSURL             string // ws:// or wss:// base
	FeedPath          string
	ConversationPath  string // Contains {id}
	NotificationsPath string
	Token             TokenFunc
}

// FeedURL returns the feed channel URL.
func (e Endpoints) FeedURL() (string, error) {
	return e.build(e.FeedPath)
}

// ConversationURL returns the messaging channel URL for one conversation.
func (e Endpoints) ConversationURL(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("conversation id is required")
	}
	return e.build(strings.ReplaceAll(e.ConversationPath, "{id}", url.PathEscape(id)))
}

// NotificationsURL returns the notifications channel URL.
func (e Endpoints) NotificationsURL() (string, error) {
	return e.build(e.NotificationsPath)
}

func (e Endpoints) build(path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(e.WSURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse channel url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("ws url must use ws or wss, got %q", u.Scheme)
	}

	q := u.Query()
	if e.Token != nil {
		tok, err := e.Token()
		if err != nil {
			return "", fmt.Errorf("auth token: %w", err)
		}
		q.Set("token", tok)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
