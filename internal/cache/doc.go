// Package cache persists collection snapshots between sessions.
//
// A Store is a plain key/value byte store with several backends (memory,
// file, redis, postgres). Snapshots layers typed entries on top and never
// fails: an unreadable, corrupt or stale entry is logged and reported as a
// miss so callers simply fall back to the network.
package cache
