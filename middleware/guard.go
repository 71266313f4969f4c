package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
)

// RequestIDHeader is read, and generated when absent, by RequestContext.
const RequestIDHeader = "X-Request-ID"

type tokenInfoContextKey struct{}

// TokenInfoFromContext returns the TokenInfo stored by Guard.
func TokenInfoFromContext(ctx context.Context) (*authcore.TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoContextKey{}).(*authcore.TokenInfo)
	return info, ok && info != nil
}

// ClientFromRequest builds the ClientContext for an engine call made while
// serving r. SessionID is set when Guard has run.
func ClientFromRequest(r *http.Request) authcore.ClientContext {
	client := authcore.ClientFromContext(r.Context())
	if client.IP == "" {
		client.IP = remoteIP(r)
	}
	if client.UserAgent == "" {
		client.UserAgent = r.UserAgent()
	}
	if info, ok := TokenInfoFromContext(r.Context()); ok {
		client.SessionID = info.SessionID
	}
	return client
}

// RequestContext attaches client IP, User-Agent and request id to the
// request context and echoes the request id in the response.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)

		ctx := authcore.WithRequestID(r.Context(), rid)
		ctx = authcore.WithClientIP(ctx, remoteIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Guard rejects requests without a valid access token. Token and session
// failures are 401; a backing store outage is 503.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, authcore.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, authcore.ErrInvalidToken)
				return
			}

			info, err := engine.ValidateToken(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), tokenInfoContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFunc extracts the owner of the resource a request targets. An empty
// result means the request has no ownership constraint.
type OwnerFunc func(*http.Request) string

// RequirePermission must run after Guard. When owner is non-nil its result
// scopes ":own" permissions.
func RequirePermission(engine *authcore.Engine, perm string, owner OwnerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := TokenInfoFromContext(r.Context())
			if !ok || engine == nil {
				writeError(w, authcore.ErrInvalidToken)
				return
			}

			var resource *authcore.ResourceContext
			if owner != nil {
				if id := owner(r); id != "" {
					resource = &authcore.ResourceContext{OwnerID: id}
				}
			}

			if err := engine.Authorize(r.Context(), info, perm, resource); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StatusCode maps an engine error onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authcore.ErrInsufficientPermission):
		return http.StatusForbidden
	case errors.Is(err, authcore.ErrPasswordPolicy), errors.Is(err, authcore.ErrPasswordReuse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, authcore.ErrBackingStoreUnavailable),
		errors.Is(err, authcore.ErrSessionInvalidationFailed),
		errors.Is(err, authcore.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, authcore.ErrInvalidCredentials),
		errors.Is(err, authcore.ErrAccountInactive),
		errors.Is(err, authcore.ErrAccountLocked),
		errors.Is(err, authcore.ErrPasswordExpired),
		errors.Is(err, authcore.ErrInvalidToken),
		errors.Is(err, authcore.ErrExpiredToken),
		errors.Is(err, authcore.ErrWrongTokenType),
		errors.Is(err, authcore.ErrSessionNotFound):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	http.Error(w, authcore.PublicMessage(err), code)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
