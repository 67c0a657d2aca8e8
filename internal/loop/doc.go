// Package loop implements the single logical event queue every sync
// component runs on.
//
// Socket frames, timer expirations and fetch completions are posted as
// closures and executed in FIFO order by one goroutine, so the state they
// touch needs no locking. Blocking work (dialing, HTTP, cache I/O) runs in
// helper goroutines through Async and posts its result back.
package loop
