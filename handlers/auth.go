package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/CrowderSoup/launchpad/launch"
	"github.com/CrowderSoup/launchpad/services"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService *services.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, launch.ErrValidation, "Invalid request format")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !launch.ValidEmail(req.Email) {
		writeError(w, launch.ErrValidation, "Invalid email address")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name, _, _ = strings.Cut(req.Email, "@")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	magicLink, err := h.authService.GenerateMagicLink(r.Context(), launch.User{Name: name, Email: req.Email}, baseURL)
	if err != nil {
		h.logger.Error("error generating magic link", slog.String("error", err.Error()))
		writeError(w, err, "Failed to generate login link")
		return
	}

	// Return success response with magic link for development
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Magic link has been sent",
		"magicLink": magicLink, // For development only
	})
}

// HandleMagicLink processes a magic link token and redirects to the frontend
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, launch.ErrValidation, "Missing token")
		return
	}

	user, err := h.authService.VerifyMagicLinkToken(token)
	if err != nil {
		writeError(w, launch.ErrValidation, "Invalid or expired token")
		return
	}

	jwtToken, err := h.authService.CreateJWT(user)
	if err != nil {
		h.logger.Error("error creating JWT", slog.String("error", err.Error()))
		writeError(w, err, "Authentication error")
		return
	}

	q := url.Values{}
	q.Set("token", jwtToken)
	q.Set("email", user.Email)
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

// VerifyToken checks if a JWT token is valid
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, launch.ErrUnauthenticated, "Missing authorization header")
		return
	}

	user, err := h.authService.VerifyJWT(token)
	if err != nil {
		writeError(w, launch.ErrUnauthenticated, "Invalid token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":  user.Email,
		"name":   user.Name,
		"status": "valid",
	})
}
