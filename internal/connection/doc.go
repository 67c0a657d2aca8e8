// Package connection implements the generic channel connection.
//
// A Channel:
//   - Owns at most one live WebSocket client at a time
//   - Moves through Idle, Connecting, Open, Closing and Closed
//   - Sends an application heartbeat while open and treats a silent socket as dropped
//   - Reconnects with exponential backoff while the channel is wanted
//   - Hands inbound frames to registered observers on the loop
package connection
