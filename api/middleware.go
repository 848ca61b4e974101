package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlyBadawy/Securial-sub000/identity"
	"github.com/AlyBadawy/Securial-sub000/session"
)

type contextKey int

const currentSessionKey contextKey = iota

// Authenticate is the per-request authentication state machine. It never
// writes a response: any failure simply leaves the request anonymous, so
// a forged or garbled token is indistinguishable from no token at all.
// On success the session is bound to the request context: request
// scoped, read only, never shared across requests.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := bearerToken(r)
		if tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.codec.Decode(tokenStr)
		if err != nil {
			a.audit.logFailure(AuditTokenRejected, r, "token decode failed")
			next.ServeHTTP(w, r)
			return
		}

		// Store-level revoked=false filter backs up the IsValid check.
		sess, err := a.sessions.FindActiveByID(r.Context(), claims.SessionID())
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				a.audit.logFailure(AuditTokenRejected, r, "session lookup failed")
			}
			next.ServeHTTP(w, r)
			return
		}

		if !sess.IsValid() {
			next.ServeHTTP(w, r)
			return
		}
		if !sess.MatchesRequest(a.extractClientIP(r), r.UserAgent()) {
			// Silent denial: the client learns nothing about why.
			a.audit.logFailure(AuditFingerprintMismatch, r, "fingerprint mismatch")
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), currentSessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous requests with 401.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentSession(r.Context()) == nil {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin composes after authentication: anonymous requests get a
// 401, authenticated non-admins a 403.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := CurrentSession(r.Context())
		if sess == nil {
			writeUnauthorized(w)
			return
		}
		user, err := a.users.FindByID(r.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				writeUnauthorized(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load identity")
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentSession returns the session bound to the request, or nil when
// the request is anonymous. The returned session is a borrowed reference
// valid only for the duration of the request.
func CurrentSession(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(currentSessionKey).(*session.Session)
	return sess
}

func (a *API) isExempt(r *http.Request) bool {
	return a.exempt[r.Method+" "+routePath(r)]
}

// routePath is the mount-relative path chi is matching, falling back to
// the raw URL path when the router context is absent (tests).
func routePath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePath != "" {
		return rc.RoutePath
	}
	return r.URL.Path
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// extractClientIP returns the client IP for fingerprinting and rate
// limiting. Proxy headers (X-Forwarded-For, X-Real-IP) are honored only
// when the direct peer falls within a configured trusted-proxy range;
// otherwise untrusted clients could spoof both their fingerprint and
// their rate-limit key.
func (a *API) extractClientIP(r *http.Request) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(a.trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range a.trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}
		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), true
	}
	return "", false
}
