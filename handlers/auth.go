package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/services"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	log         *log.Logger
}

func NewAuthHandler(authService *services.AuthService, logger *log.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: logger}
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	magicLink, err := h.authService.GenerateMagicLink(email, baseURL)
	if err != nil {
		h.log.WithError(err).Error("Error generating magic link")
		writeError(w, http.StatusInternalServerError, "Failed to generate login link")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Magic link has been sent",
		"magicLink": magicLink, // For development only
	})
}

// HandleMagicLink exchanges a magic link token for an owner token and
// redirects to the frontend.
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing token")
		return
	}

	email, err := h.authService.VerifyMagicLinkToken(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	jwtToken, err := h.authService.CreateJWT(email)
	if err != nil {
		h.log.WithError(err).Error("Error creating JWT")
		writeError(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	h.log.WithField("owner", services.OwnerID(email)).Info("Owner signed in")
	q := url.Values{"token": {jwtToken}, "email": {email}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

// VerifyToken reports the identity of a valid owner token. Mounted behind Auth.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "valid",
		"email":   id.Email,
		"ownerId": id.OwnerID,
	})
}
