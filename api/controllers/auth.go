package controllers

import (
	"net/http"

	"github.com/angelmondragon/docreview-backend/api/middleware"
	"github.com/angelmondragon/docreview-backend/api/responses"
	"github.com/angelmondragon/docreview-backend/api/validators"
	"github.com/angelmondragon/docreview-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithSessionID(r.Context(), result.SessionID)
			logg.Info(logg.WithReviewer(ctx, result.Username), "auth.login")
		}
		w.Header().Set(middleware.TokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

// AuthLogout revokes the caller's session and discards its workspace. It
// runs behind the Auth middleware.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		if err := svc.Logout(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(r.Context(), "auth.logout")
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
