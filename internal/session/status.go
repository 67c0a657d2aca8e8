package session

import (
	"context"
	"time"

	"github.com/rickgao/feedsync/internal/channel"
	"github.com/rickgao/feedsync/internal/poller"
)

// Status is a point-in-time summary of a session.
type Status struct {
	ID           string            `json:"id"`
	Uptime       time.Duration     `json:"uptime"`
	Conversation string            `json:"conversation,omitempty"`
	Feed         int               `json:"feed"`
	Messages     int               `json:"messages"`
	Notes        int               `json:"notifications"`
	Unread       int               `json:"unread"`
	Channels     []channel.Status  `json:"channels"`
	Refreshing   []string          `json:"refreshing,omitempty"` // Resources with a fetch in flight
	Failing      map[string]string `json:"failing,omitempty"`
}

// Healthy reports whether no resource is currently failing to refresh. A
// closed socket alone is not unhealthy while polling covers it.
func (st Status) Healthy() bool {
	return len(st.Failing) == 0
}

// Status collects a summary on the loop.
func (s *Session) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	started := s.cancel != nil
	startedAt := s.startedAt
	s.mu.Unlock()
	if !started {
		return Status{}, ErrNotStarted
	}

	st := Status{
		ID:     s.id,
		Uptime: time.Since(startedAt),
	}
	err := s.loop.Call(ctx, func() {
		st.Conversation = s.conv.ID()
		st.Feed = s.feedItems.Len()
		st.Messages = s.conv.Len()
		st.Notes = s.notes.Len()
		st.Unread = s.notes.Unread()
		st.Channels = []channel.Status{
			s.feed.Status(),
			s.messaging.Status(),
			s.notifications.Status(),
		}
		if s.feedRefresher.InFlight() {
			st.Refreshing = append(st.Refreshing, poller.ResourceFeed)
		}
		if s.messaging.Refresher().InFlight() {
			st.Refreshing = append(st.Refreshing, poller.ResourceMessages)
		}
		if s.notesRefresher.InFlight() {
			st.Refreshing = append(st.Refreshing, poller.ResourceNotifications)
		}
		for resource, err := range s.notices.Failing() {
			if st.Failing == nil {
				st.Failing = make(map[string]string)
			}
			st.Failing[resource] = err.Error()
		}
	})
	if err != nil {
		return Status{}, err
	}
	return st, nil
}
