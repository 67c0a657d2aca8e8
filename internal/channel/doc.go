// Package channel implements the feed, messaging and notification sync
// channels.
//
// Each channel owns one connection.Channel, decodes inbound JSON frames into
// Events and dispatches them into client-held state. While its socket is not
// open a channel runs a polling fallback instead; the two never run at the
// same time.
//
// Wire frames:
//
//	{"type":"ready"} / {"type":"pong"}
//	{"type":"post_created"}
//	{"type":"message.created","message":{...}}
//	{"type":"message.deleted","message":{...}}
//	{"type":"notification.created","notification":{...}}
//	{"type":"notification.read_all"}
package channel
