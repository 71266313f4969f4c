// Package middleware adapts the engine to net/http.
//
// [RequestContext] records the caller's IP, User-Agent and a request id on
// the request context. [Guard] validates the bearer access token and stores
// the resulting TokenInfo. [RequirePermission] authorizes the request
// against that TokenInfo.
//
// All decisions are delegated to the engine; this package only maps engine
// errors onto HTTP status codes.
package middleware
