// Package poller implements the polling fallback.
//
// While a resource's realtime channel is not open, a Scheduler refetches
// the resource at a fixed interval so the client stays eventually
// consistent. The channel stops the scheduler as soon as the socket opens
// again, so polling and live delivery never run at the same time.
package poller
