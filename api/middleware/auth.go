package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/docreview-backend/api/responses"
	pkgAuth "github.com/angelmondragon/docreview-backend/pkg/auth"
	"github.com/angelmondragon/docreview-backend/pkg/auth/session"
	"github.com/angelmondragon/docreview-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

// TokenHeader carries the access token as an alternative to Authorization.
// Login responses set it so clients can echo it back unchanged.
const TokenHeader = "X-Docreview-Token"

// Auth resolves the reviewer session from the access token and rejects the
// request when the token is invalid or its Redis session was revoked.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := accessToken(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			sessionID := claims.SessionID()
			if verifier != nil {
				ok, err := verifier.HasSession(ctx, sessionID)
				switch {
				case err != nil:
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				case !ok:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx = WithSession(ctx, sessionID, claims.Username)
			ctx = logg.WithSessionID(ctx, sessionID)
			ctx = logg.WithReviewer(ctx, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessToken reads "Authorization: Bearer <jwt>", falling back to
// TokenHeader. Any other Authorization scheme is rejected.
func accessToken(r *http.Request) (string, error) {
	missing := pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")

	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		scheme, token, found := strings.Cut(raw, " ")
		if !found {
			// bare token
			return raw, nil
		}
		if !strings.EqualFold(scheme, "bearer") {
			return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "unsupported authorization scheme")
		}
		if token = strings.TrimSpace(token); token == "" {
			return "", missing
		}
		return token, nil
	}
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token, nil
	}
	return "", missing
}
