// Package session wires the realtime channels, pollers, caches and
// client-held state of one signed-in user into a single unit.
//
// A Session owns one event loop. Every channel, timer and fetch completion
// runs on it, so the collections it exposes are never touched concurrently.
// Public methods are safe from any goroutine: mutating calls are posted to
// the loop, and snapshot getters read the last copy the loop published.
//
// Lifecycle:
//
//	s, err := session.New(cfg, apiClient, creds.Token, store)
//	s.OnFeed(func(items []model.FeedItem) { ... })
//	err = s.Start(ctx)     // restores caches, opens channels
//	s.SetConversation("c1")
//	...
//	err = s.Stop(ctx)
package session
