package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// defaultReturnPath is where a login without a return parameter lands.
const defaultReturnPath = "/dashboard"

// AuthHandler serves the SSO session endpoints.
type AuthHandler struct {
	gate   *auth.Gate
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(gate *auth.Gate, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{gate: gate, logger: logger}
}

// RegisterRoutes registers the session endpoints on router.
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/session", h.Session).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/login", h.Login).Methods(http.MethodGet)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
}

// Session handles GET /auth/session
// Reports who is signed in. A missing or invalid cookie is not an error.
//
// Responses:
//   - 200: {user: string|null, isAuthenticated: bool}
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	info := models.SessionInfo{}
	if user, ok := h.gate.Identity(r); ok {
		info.User = &user
		info.IsAuthenticated = true
	}
	writeJSONResponse(w, h.logger, info, http.StatusOK)
}

// Login handles GET /auth/login?return
// Redirects to the SSO login page, which returns to the given local path.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("return")
	// Only local paths; "//host" would leave the site.
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		path = defaultReturnPath
	}

	http.Redirect(w, r, h.gate.LoginURL(h.gate.Origin(r)+path), http.StatusTemporaryRedirect)
}

// Logout handles GET /auth/logout?service
// Clears the session cookie and redirects to the SSO logout page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user, ok := h.gate.Identity(r); ok {
		requestLogger(r, h.logger).WithField("user", user).Info("User signed out")
	}

	h.gate.Cookies().Clear(w)
	service := r.URL.Query().Get(constants.QueryService)
	http.Redirect(w, r, h.gate.LogoutURL(r, service), http.StatusTemporaryRedirect)
}
