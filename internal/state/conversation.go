package state

import (
	"log/slog"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/reconcile"
)

// Conversation is the message history of the active conversation. Inbound
// events and local optimistic edits go through the same id-based merge, so
// whichever is applied last wins.
type Conversation struct {
	*Collection[model.Message]

	id     string
	logger *slog.Logger
}

// NewConversation wraps coll, which should use the Append policy.
func NewConversation(coll *Collection[model.Message], logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{Collection: coll, logger: logger}
}

// ID returns the active conversation id, empty when none.
func (c *Conversation) ID() string {
	return c.id
}

// Switch makes id the active conversation and empties the history.
func (c *Conversation) Switch(id string) {
	if id == c.id {
		return
	}
	c.id = id

	key := ""
	if id != "" {
		key = cache.MessagesKey(id)
	}
	c.Reset(key)
}

// Created merges a message for the active conversation. Messages for other
// conversations are dropped.
func (c *Conversation) Created(msg model.Message) (reconcile.Outcome, bool) {
	if !c.accepts(msg) {
		return 0, false
	}
	return c.Merge(msg), true
}

// Deleted marks a known message deleted in place. A delete for an id that
// is not loaded is ignored; the next refresh reflects it.
func (c *Conversation) Deleted(msg model.Message) bool {
	if !c.accepts(msg) {
		return false
	}
	if !c.Contains(msg.ID) {
		c.logger.Debug("delete for unknown message ignored", "message_id", msg.ID)
		return false
	}
	msg.Deleted = true
	c.Merge(msg)
	return true
}

// ApplyLocal merges a locally originated message (send or edit) before the
// server confirms it.
func (c *Conversation) ApplyLocal(msg model.Message) (reconcile.Outcome, bool) {
	if msg.ConversationID == "" {
		msg.ConversationID = c.id
	}
	return c.Created(msg)
}

// DeleteLocal marks a loaded message deleted before the server confirms.
func (c *Conversation) DeleteLocal(id string) bool {
	msg, ok := c.Get(id)
	if !ok {
		return false
	}
	return c.Deleted(msg)
}

func (c *Conversation) accepts(msg model.Message) bool {
	if c.id == "" {
		return false
	}
	if msg.ConversationID != "" && msg.ConversationID != c.id {
		c.logger.Debug("message for inactive conversation dropped",
			"message_id", msg.ID,
			"conversation", msg.ConversationID,
		)
		return false
	}
	return true
}
