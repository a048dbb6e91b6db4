// Package cache provides a two-level cache for synthesized clip audio: an
// in-memory LRU (L1) and a compressed, persistent disk cache (L2) with TTL
// cleanup.
package cache
