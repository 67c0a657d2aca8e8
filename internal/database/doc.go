// Package database provides PostgreSQL connection pools.
//
// The only consumer is the postgres snapshot cache backend, which keeps one
// row per cache key so several devices of the same user can share restored
// state.
package database
