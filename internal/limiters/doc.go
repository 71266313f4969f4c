// Package limiters holds the Redis backed account lockout tracker.
//
// Keys:
//
//	failed_attempts:{principalId}  failure counter, TTL = counting window
//	lockout:{principalId}          lock marker, TTL = lock duration
//
// The braces are literal: they make the principal id the cluster hash tag, so
// both keys of one principal share a slot and the script runs on Redis
// Cluster.
//
// The increment and lock step run in a single Lua script so concurrent
// failures from many service instances are never undercounted.
//
// The tracker only counts and locks. Whether a lock refuses a login is
// decided by the authentication flow.
package limiters
