package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strings"

	innercircle "github.com/aolweb/innercircle"
)

type credentialContextKey struct{}

// CredentialFromContext returns the credential a guard resolved for this
// request.
func CredentialFromContext(ctx context.Context) (innercircle.ResolvedCredential, bool) {
	cred, ok := ctx.Value(credentialContextKey{}).(innercircle.ResolvedCredential)
	return cred, ok
}

// Guard returns middleware requiring the given tier. The session cookie is
// consulted first; failing that, an Authorization bearer value shaped like
// a member key is verified. Deny reasons map onto distinct statuses so
// clients can tell "log in" from "upgrade" from "slow down".
func Guard(engine *innercircle.Engine, required innercircle.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cred, err := resolve(engine, r)
			if err != nil {
				writeDenied(w, err)
				return
			}

			decision := engine.Authorize(cred, required)
			if !decision.Allowed {
				switch decision.Reason {
				case innercircle.DenyNoCredential:
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				default:
					http.Error(w, "forbidden", http.StatusForbidden)
				}
				return
			}

			ctx := context.WithValue(r.Context(), credentialContextKey{}, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireInnerCircle guards members-only routes.
func RequireInnerCircle(engine *innercircle.Engine) func(http.Handler) http.Handler {
	return Guard(engine, innercircle.TierInnerCircle)
}

// RequirePrivate guards the most restricted routes.
func RequirePrivate(engine *innercircle.Engine) func(http.Handler) http.Handler {
	return Guard(engine, innercircle.TierPrivate)
}

func resolve(engine *innercircle.Engine, r *http.Request) (innercircle.ResolvedCredential, error) {
	if id := engine.ReadSessionCookie(r); id != "" {
		cred, err := engine.ResolveSession(r.Context(), id)
		if err != nil {
			return innercircle.ResolvedCredential{}, err
		}
		if cred.Kind != innercircle.KindNone {
			return cred, nil
		}
	}

	if key, ok := bearerKey(r.Header.Get("Authorization")); ok {
		return engine.ResolveMemberKey(r.Context(), key, clientIP(r))
	}

	return innercircle.ResolvedCredential{}, nil
}

func writeDenied(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, innercircle.ErrRateLimited), errors.Is(err, innercircle.ErrBlocked):
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	case errors.Is(err, innercircle.ErrStorageUnavailable):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func bearerKey(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	key := value[len(bearer):]
	if key == "" {
		return "", false
	}
	return key, true
}

// clientIP strips any port from RemoteAddr. Deployments behind a trusted
// proxy should rewrite RemoteAddr upstream of this guard.
func clientIP(r *http.Request) string {
	if addr, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addr.Addr().String()
	}
	return r.RemoteAddr
}
