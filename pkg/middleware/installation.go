// Package middleware provides HTTP middleware for the engine's API surface.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

type contextKey string

const installationKey contextKey = "installation_id"

const (
	sessionName            = "joblens_session"
	sessionInstallationKey = "installation_id"
)

// Installation identifies the anonymous tenant behind a request via a
// signed session cookie. First-time visitors get a fresh installation id;
// returning visitors keep theirs. No login is involved - the cookie is the
// whole identity.
func Installation(store sessions.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := store.Get(r, sessionName)
			if err != nil {
				// A tampered or re-keyed cookie starts a fresh session
				// rather than failing the request.
				logger.Debug("resetting invalid session cookie", zap.Error(err))
				session, _ = store.New(r, sessionName)
			}

			installationID, ok := parseInstallation(session)
			if !ok {
				installationID = uuid.New()
				session.Values[sessionInstallationKey] = installationID.String()
				session.Options.HttpOnly = true
				session.Options.SameSite = http.SameSiteLaxMode
				session.Options.MaxAge = 60 * 60 * 24 * 365
				if err := session.Save(r, w); err != nil {
					logger.Error("failed to save session cookie", zap.Error(err))
					http.Error(w, "session error", http.StatusInternalServerError)
					return
				}
			}

			ctx := context.WithValue(r.Context(), installationKey, installationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseInstallation(session *sessions.Session) (uuid.UUID, bool) {
	raw, ok := session.Values[sessionInstallationKey].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// InstallationID extracts the installation id placed by the Installation
// middleware. The boolean is false on routes the middleware does not wrap.
func InstallationID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(installationKey).(uuid.UUID)
	return id, ok
}

// WithInstallation returns a context carrying the installation id, as the
// Installation middleware would set it.
func WithInstallation(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, installationKey, id)
}
