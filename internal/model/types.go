package model

import "strconv"

// Record is implemented by every collection element the sync layer manages.
type Record interface {
	// RecordID returns the server-assigned identity.
	RecordID() string

	// SignatureParts returns the render-relevant mutable fields, in a fixed
	// order, that take part in change detection.
	SignatureParts() []string
}

// -----------------------------------------------------------------------------
// Feed
// -----------------------------------------------------------------------------

// FeedItem is a post shown in the home feed.
type FeedItem struct {
	ID           string   `json:"id"`
	AuthorID     string   `json:"authorId"`
	Caption      string   `json:"caption"`
	MediaURLs    []string `json:"mediaUrls,omitempty"`
	LikeCount    int64    `json:"likeCount"`
	CommentCount int64    `json:"commentCount"`
	CreatedAt    int64    `json:"createdAt"`
	UpdatedAt    int64    `json:"updatedAt"`
}

func (f FeedItem) RecordID() string { return f.ID }

func (f FeedItem) SignatureParts() []string {
	return []string{
		strconv.FormatInt(f.LikeCount, 10),
		strconv.FormatInt(f.CommentCount, 10),
		strconv.Itoa(len(f.Caption)),
		strconv.FormatBool(len(f.MediaURLs) > 0),
		strconv.FormatInt(f.UpdatedAt, 10),
	}
}

// -----------------------------------------------------------------------------
// Messaging
// -----------------------------------------------------------------------------

// Message is a direct or group chat message.
type Message struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId"`
	SenderID       string   `json:"senderId"`
	Body           string   `json:"body"`
	Attachments    []string `json:"attachments,omitempty"`
	CreatedAt      int64    `json:"createdAt"`
	EditedAt       int64    `json:"editedAt,omitempty"`
	Deleted        bool     `json:"deleted,omitempty"`
}

func (m Message) RecordID() string { return m.ID }

func (m Message) SignatureParts() []string {
	return []string{
		strconv.Itoa(len(m.Body)),
		strconv.FormatBool(len(m.Attachments) > 0),
		strconv.FormatInt(m.CreatedAt, 10),
		strconv.FormatInt(m.EditedAt, 10),
		strconv.FormatBool(m.Deleted),
	}
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// Notification is an entry in the user's notification list.
type Notification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"` // "like", "comment", "follow", "mention", ...
	ActorID   string `json:"actorId,omitempty"`
	TargetID  string `json:"targetId,omitempty"`
	Text      string `json:"text,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}

func (n Notification) RecordID() string { return n.ID }

func (n Notification) SignatureParts() []string {
	return []string{
		strconv.FormatBool(n.Read),
		strconv.Itoa(len(n.Text)),
		strconv.FormatInt(n.CreatedAt, 10),
	}
}

// NotificationSummary is the server-side unread counter.
type NotificationSummary struct {
	UnreadCount int `json:"unreadCount"`
}
