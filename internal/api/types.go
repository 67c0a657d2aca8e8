package api

import "github.com/rickgao/feedsync/internal/model"

// ListResponse is the envelope of every list endpoint.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// FeedResponse from GET /feed
type FeedResponse = ListResponse[model.FeedItem]

// MessagesResponse from GET /conversations/{id}/messages
type MessagesResponse = ListResponse[model.Message]

// NotificationsResponse from GET /notifications
type NotificationsResponse = ListResponse[model.Notification]
