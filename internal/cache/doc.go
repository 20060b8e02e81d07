/*
Package cache provides Redis-backed caching with connection pooling,
health checks and JSON serialization.

Manager wraps the go-redis client and owns the connection lifecycle:
initialization, periodic health checks and graceful shutdown. The
platform uses it as a read-through cache for the current version of
governed objects; every version bump deletes the corresponding key.

ErrCacheMiss is the sentinel for absent keys, checked via IsCacheMiss.
*/
package cache
