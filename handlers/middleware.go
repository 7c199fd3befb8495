package handlers

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/services"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenVerifier checks an owner token.
type TokenVerifier interface {
	VerifyJWT(token string) (services.Identity, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	log      *log.Logger
}

func NewAuthMiddleware(verifier TokenVerifier, logger *log.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, log: logger}
}

// Auth rejects requests without a valid owner token.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		id, err := m.verifier.VerifyJWT(tokenString)
		if err != nil {
			m.log.WithError(err).Debug("Rejected owner token")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityContextKey, id)))
	})
}

// OptionalAuth attaches the owner when a valid token is present and lets the
// request through either way.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenString, err := bearerToken(r); err == nil {
			if id, err := m.verifier.VerifyJWT(tokenString); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), identityContextKey, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

type authError string

func (e authError) Error() string { return string(e) }

// bearerToken reads the token from the Authorization header or, for websocket
// upgrades, the token query parameter.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", authError("missing authorization header")
	}

	authParts := strings.Split(authHeader, " ")
	if len(authParts) != 2 || authParts[0] != "Bearer" {
		return "", authError("invalid authorization format")
	}
	return authParts[1], nil
}

// identityFrom returns the signed-in owner, or the zero identity.
func identityFrom(ctx context.Context) services.Identity {
	id, _ := ctx.Value(identityContextKey).(services.Identity)
	return id
}

func ownerFrom(r *http.Request) string {
	return identityFrom(r.Context()).OwnerID
}
