package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes bundles everything the HTTP surface is built from.
type Routes struct {
	Auth     *AuthHandler
	Projects *ProjectHandler
	Live     *LiveHandler
	Mail     *MailHandler
	Guard    *AuthMiddleware
	// StaticDir is served at the root when set.
	StaticDir string
}

// NewRouter mounts the public auth routes and the guarded API.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()

	// Auth routes
	r.HandleFunc("/api/auth/login", rt.Auth.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/verify", rt.Auth.VerifyToken).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/magic-link", rt.Auth.HandleMagicLink).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(rt.Guard.Auth)
	rt.Projects.Routes(api)
	if rt.Mail != nil {
		// Sends through the operator's SMTP account, so never public.
		api.HandleFunc("/send-email", rt.Mail.SendEmail).Methods(http.MethodPost)
	}
	if rt.Live != nil {
		api.HandleFunc("/ws", rt.Live.HandleWebSocket)
	}

	if rt.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(rt.StaticDir)))
	}
	return r
}
