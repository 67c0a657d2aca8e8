// Package api provides the REST client for the resources the sync layer
// refetches: the home feed, conversation history and notifications.
//
// Endpoints (relative to the configured base URL):
//   - GET  /feed
//   - GET  /conversations/{id}/messages
//   - GET  /notifications/summary
//   - GET  /notifications
//   - POST /notifications/read_all
//
// List endpoints answer {"items": [...]}. Every request carries a bearer
// token and an X-Request-ID.
package api
