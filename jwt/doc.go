// Package jwt issues and verifies the access/refresh token pair.
//
// Both tokens carry the principal id (uid), role, session id (sid) and a
// typ claim. [Manager.Verify] takes the expected type and reports a
// mismatch as [ErrWrongTokenType], separately from [ErrTokenInvalid] and
// [ErrTokenExpired], so a refresh token can never act as a bearer token.
//
// Token validity alone does not authorize a request: the session named by
// sid must still exist in the session store.
package jwt
