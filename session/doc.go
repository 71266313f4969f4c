// Package session stores login sessions in Redis.
//
// A session row ({prefix}session:{id}) is the authority on whether the
// tokens bound to it are still usable: deleting it revokes them even if
// their signatures have not expired. Rows carry a TTL equal to the session
// timeout, reset on every [Store.Touch]. A per-principal set
// ({prefix}session_index:{principalId}) lets all sessions of one principal
// be revoked together.
//
// Rows are a compact, versioned binary encoding ([Encode], [Decode]).
//
// This package does not interpret tokens or make authorization decisions.
package session
