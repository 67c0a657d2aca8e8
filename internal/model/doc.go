// Package model defines the records exchanged with the social-feed API and
// carried over the realtime channels.
//
// Conventions:
//   - IDs: opaque strings assigned by the server
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Mutable fields (counts, read/deleted flags) may be overwritten by later
//     events; everything else is treated as immutable client-side
package model
