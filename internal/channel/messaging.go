package channel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/state"
)

var errNoConversation = errors.New("no active conversation")

// MessagesFetcher loads one conversation's history.
type MessagesFetcher func(ctx context.Context, conversationID string) ([]model.Message, error)

// Messaging follows one conversation at a time. Switching conversations
// closes the old socket before the new one is opened.
type Messaging struct {
	*base

	endpoints Endpoints
	conv      *state.Conversation
	refresher *state.Refresher[[]model.Message]
	fetch     MessagesFetcher
	snaps     *cache.Snapshots[model.Message]
}

// NewMessaging creates an idle messaging channel. snaps and notices may be
// nil; with snaps set, a conversation's cached history is restored on
// switch.
func NewMessaging(lp *loop.Loop, endpoints Endpoints, opts Options, conv *state.Conversation, fetch MessagesFetcher, snaps *cache.Snapshots[model.Message], notices *state.Notices, logger *slog.Logger) *Messaging {
	m := &Messaging{
		endpoints: endpoints,
		conv:      conv,
		fetch:     fetch,
		snaps:     snaps,
	}
	m.refresher = state.NewRefresher[[]model.Message]("messages", lp, nil, func(items []model.Message) {
		conv.Replace(items)
	}, notices, logger)
	m.base = newBase(lp, opts, func() { m.refresher.Refresh(false) }, logger)
	m.base.dispatch = m.dispatch
	return m
}

// Refresher returns the history refresher, for wiring notices.
func (m *Messaging) Refresher() *state.Refresher[[]model.Message] {
	return m.refresher
}

// Conversation returns the active conversation state.
func (m *Messaging) Conversation() *state.Conversation {
	return m.conv
}

// SetConversation switches to id. An empty id closes messaging entirely.
func (m *Messaging) SetConversation(id string) {
	if id == m.conv.ID() && (id == "" || m.conn.Wanted()) {
		return
	}

	m.close()
	m.conv.Switch(id)

	if id == "" {
		m.refresher.SetFetch(nil)
		m.logger.Info("messaging closed")
		return
	}

	fetch := m.fetch
	m.refresher.SetFetch(func(ctx context.Context) ([]model.Message, error) {
		return fetch(ctx, id)
	})
	m.restore(id)

	m.logger.Info("switching conversation", "conversation", id)
	m.open(func() (string, error) {
		return m.endpoints.ConversationURL(id)
	})
}

// Close disconnects and forgets the active conversation.
func (m *Messaging) Close() {
	m.SetConversation("")
}

// Refresh refetches the active conversation's history.
func (m *Messaging) Refresh(force bool) bool {
	return m.refresher.Refresh(force)
}

// Inject dispatches a synthetic event. Messages with no conversation id are
// taken to belong to the active conversation.
func (m *Messaging) Inject(ev Event) error {
	if ev.Message != nil && ev.Message.ConversationID == "" {
		msg := *ev.Message
		msg.ConversationID = m.conv.ID()
		ev.Message = &msg
	}
	if m.conv.ID() == "" {
		return errNoConversation
	}
	return m.base.Inject(ev)
}

func (m *Messaging) dispatch(ev Event) {
	switch ev.Type {
	case TypeMessageCreated:
		m.conv.Created(*ev.Message)
	case TypeMessageDeleted:
		m.conv.Deleted(*ev.Message)
	default:
		m.ignore(ev)
	}
}

// restore loads cached history for id off the loop and applies it if the
// conversation is still active and no live data has arrived.
func (m *Messaging) restore(id string) {
	if m.snaps == nil {
		return
	}
	snaps := m.snaps
	loop.Async(m.loop, func() *cache.Entry[model.Message] {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entry, ok := snaps.Load(ctx, cache.MessagesKey(id))
		if !ok {
			return nil
		}
		return &entry
	}, func(entry *cache.Entry[model.Message]) {
		if entry == nil || m.conv.ID() != id {
			return
		}
		m.conv.Restore(*entry)
	})
}
