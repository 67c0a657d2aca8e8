// Package state holds the client-side collections the sync layer keeps
// current: the home feed, the active conversation and the notification
// list with its unread counter.
//
// Everything here is owned by the session loop. Collections are only
// mutated from loop callbacks, so there are no locks; snapshot writes are
// the one piece of work that leaves the loop.
package state
