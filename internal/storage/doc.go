// Package storage writes serialized run output to a key-value store.
//
// Every backend implements "set a string value under a key" with last-write-wins semantics
// and no history: a REST endpoint speaking the Redis SET/GET commands over TLS, a GitHub gist
// (one file per key), JSON files in a local data directory, and a SQLite table. Backends that
// can read values back also implement Getter.
package storage
