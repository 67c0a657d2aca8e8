package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/feedsync/internal/model"
)

// ListFeed fetches the home feed, newest first.
func (c *Client) ListFeed(ctx context.Context) ([]model.FeedItem, error) {
	var resp FeedResponse
	if err := c.get(ctx, "/feed", nil, &resp); err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	return nonNil(resp.Items), nil
}

// ListMessages fetches the history of one conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("list messages: conversation id is required")
	}

	var resp MessagesResponse
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list messages %s: %w", conversationID, err)
	}
	return nonNil(resp.Items), nil
}

// NotificationSummary fetches the unread counter.
func (c *Client) NotificationSummary(ctx context.Context) (*model.NotificationSummary, error) {
	var resp model.NotificationSummary
	if err := c.get(ctx, "/notifications/summary", nil, &resp); err != nil {
		return nil, fmt.Errorf("notification summary: %w", err)
	}
	return &resp, nil
}

// ListNotifications fetches the loaded notification list, newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	var resp NotificationsResponse
	if err := c.get(ctx, "/notifications", nil, &resp); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return nonNil(resp.Items), nil
}

// MarkAllNotificationsRead marks every notification read on the server.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.post(ctx, "/notifications/read_all"); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
