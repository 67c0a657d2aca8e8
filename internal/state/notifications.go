package state

import (
	"log/slog"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/model"
)

// NotificationsSnapshot is the result of a notifications refresh.
type NotificationsSnapshot struct {
	Unread int
	Items  []model.Notification
}

// Notifications is the notification list plus the server's unread counter.
type Notifications struct {
	*Collection[model.Notification]

	unread          int
	unreadObservers []func(int)
	logger          *slog.Logger
}

// NewNotifications wraps coll, which should use the Prepend policy.
func NewNotifications(coll *Collection[model.Notification], logger *slog.Logger) *Notifications {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifications{Collection: coll, logger: logger}
}

// OnUnread registers an observer of the unread counter.
func (n *Notifications) OnUnread(fn func(unread int)) {
	n.unreadObservers = append(n.unreadObservers, fn)
}

// Unread returns the unread counter.
func (n *Notifications) Unread() int {
	return n.unread
}

// SetUnread overwrites the counter with a server value.
func (n *Notifications) SetUnread(count int) {
	if count < 0 {
		count = 0
	}
	if count == n.unread {
		return
	}
	n.unread = count
	for _, fn := range n.unreadObservers {
		fn(count)
	}
}

// Restore pre-populates the list from a cached snapshot and, until the
// server summary arrives, seeds the counter from the restored unread items.
func (n *Notifications) Restore(entry cache.Entry[model.Notification]) bool {
	if !n.Collection.Restore(entry) {
		return false
	}
	unread := 0
	for _, rec := range entry.Items {
		if !rec.Read {
			unread++
		}
	}
	n.SetUnread(unread)
	return true
}

// Apply installs a refresh result.
func (n *Notifications) Apply(snap NotificationsSnapshot) {
	n.Replace(snap.Items)
	n.SetUnread(snap.Unread)
}

// Created handles a new notification. A redelivered notification replaces
// the loaded copy without counting twice.
func (n *Notifications) Created(rec model.Notification) {
	known := n.Contains(rec.ID)
	n.Merge(rec)
	if !known && !rec.Read {
		n.SetUnread(n.unread + 1)
	}
}

// ReadAll zeroes the counter and marks every loaded item read.
func (n *Notifications) ReadAll() {
	marked := n.Update(func(rec model.Notification) (model.Notification, bool) {
		if rec.Read {
			return rec, false
		}
		rec.Read = true
		return rec, true
	})
	n.logger.Debug("marked notifications read", "items", marked)
	n.SetUnread(0)
}
