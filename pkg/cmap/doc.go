// Package cmap provides a concurrent-safe sharded map keyed by string.
//
// Keys are spread over a power-of-two number of shards with a seeded
// murmur3 hash. Every single-key operation holds exactly one shard lock for
// the duration of the map access and nothing else, so callers may treat each
// operation as atomic with respect to other operations on the same key.
package cmap
