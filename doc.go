// Package cache provides in-memory caching of Git repository metadata.
// Focused on avoiding repeated expensive reads of large object stores on every UI refresh.
//
// Features:
//
//   - TTL expiration with lazy removal on read and periodic cleanup job.
//   - Capacity limits by approximate size in bytes and by entries count with LRU, LFU or FIFO eviction.
//   - Composite keys of repository, category, resource and sorted parameters.
//   - Live statistics with per-category breakdown.
//   - Lifecycle events for monitoring, decoupled from operation results.
//   - Structured error results, operations never panic across the public boundary.
//   - Read-through loading with retries, per-key load locking and failed load caching.
//   - Shared object cache cleared on heap or size pressure.
//   - Allows logging, stats collection.
package cache
