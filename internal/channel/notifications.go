package channel

import (
	"log/slog"

	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/state"
)

// Notifications keeps the notification list and unread counter current.
type Notifications struct {
	*base

	endpoints Endpoints
	notes     *state.Notifications
	refresher *state.Refresher[state.NotificationsSnapshot]
}

// NewNotifications creates an idle notifications channel.
func NewNotifications(lp *loop.Loop, endpoints Endpoints, opts Options, notes *state.Notifications, refresher *state.Refresher[state.NotificationsSnapshot], logger *slog.Logger) *Notifications {
	n := &Notifications{
		endpoints: endpoints,
		notes:     notes,
		refresher: refresher,
	}
	n.base = newBase(lp, opts, func() { refresher.Refresh(false) }, logger)
	n.base.dispatch = n.dispatch
	return n
}

// Open connects the notifications socket.
func (n *Notifications) Open() {
	n.open(n.endpoints.NotificationsURL)
}

// Close disconnects.
func (n *Notifications) Close() {
	n.close()
}

// Refresh refetches the summary and list.
func (n *Notifications) Refresh(force bool) bool {
	return n.refresher.Refresh(force)
}

func (n *Notifications) dispatch(ev Event) {
	switch ev.Type {
	case TypeNotificationCreated:
		n.notes.Created(*ev.Notification)
	case TypeNotificationReadAll:
		n.notes.ReadAll()
	default:
		n.ignore(ev)
	}
}
