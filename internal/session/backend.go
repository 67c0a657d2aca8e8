package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/state"
)

// Backend is the REST collaborator a session fetches from. *api.Client
// implements it.
type Backend interface {
	ListFeed(ctx context.Context) ([]model.FeedItem, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	NotificationSummary(ctx context.Context) (*model.NotificationSummary, error)
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
}

// fetchNotifications loads the unread counter and the list together. Either
// failing fails the refresh.
func fetchNotifications(b Backend) state.FetchFunc[state.NotificationsSnapshot] {
	return func(ctx context.Context) (state.NotificationsSnapshot, error) {
		var (
			summary *model.NotificationSummary
			items   []model.Notification
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			summary, err = b.NotificationSummary(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			items, err = b.ListNotifications(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return state.NotificationsSnapshot{}, err
		}

		return state.NotificationsSnapshot{
			Unread: summary.UnreadCount,
			Items:  items,
		}, nil
	}
}
