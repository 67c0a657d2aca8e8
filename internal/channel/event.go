package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/feedsync/internal/model"
)

// ErrMalformedPayload is returned for frames that cannot be decoded or are
// missing the record their type requires.
var ErrMalformedPayload = errors.New("malformed payload")

// Event types.
const (
	TypeReady               = "ready"
	TypePong                = "pong"
	TypePostCreated         = "post_created"
	TypeMessageCreated      = "message.created"
	TypeMessageDeleted      = "message.deleted"
	TypeNotificationCreated = "notification.created"
	TypeNotificationReadAll = "notification.read_all"
)

// Event is one decoded inbound frame.
type Event struct {
	Type         string              `json:"type"`
	Message      *model.Message      `json:"message,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
}

// Decode parses a frame. Unknown types decode without error so newer
// servers do not break older clients.
func Decode(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate checks that the event carries what its type requires.
func (e Event) Validate() error {
	switch e.Type {
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformedPayload)
	case TypeMessageCreated, TypeMessageDeleted:
		if e.Message == nil || e.Message.ID == "" {
			return fmt.Errorf("%w: %s without message id", ErrMalformedPayload, e.Type)
		}
	case TypeNotificationCreated:
		if e.Notification == nil || e.Notification.ID == "" {
			return fmt.Errorf("%w: %s without notification id", ErrMalformedPayload, e.Type)
		}
	}
	return nil
}

// Encode serializes the event as a wire frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
