package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/middleware"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// PageHandler describes the role-gated dashboard pages. Rendering is left to
// the presentation layer; this returns which components a page shows.
type PageHandler struct {
	registry models.Registry
	logger   *logrus.Logger
}

// NewPageHandler creates a page handler over the component registry.
func NewPageHandler(registry models.Registry, logger *logrus.Logger) *PageHandler {
	return &PageHandler{registry: registry, logger: logger}
}

// RegisterRoutes registers one route per registry page plus the unauthorized page.
// Access control is applied by the gate before these handlers run.
func (h *PageHandler) RegisterRoutes(router *mux.Router) {
	for name := range h.registry {
		router.HandleFunc("/"+name, h.Page(name)).Methods(http.MethodGet)
	}
	router.HandleFunc("/unauthorized", h.Unauthorized).Methods(http.MethodGet)
}

// Page returns the handler of one registry page.
//
// Responses:
//   - 200: {page, user, roles, components}
//   - 401: No identity on the request
//   - 404: Unknown page
func (h *PageHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components, ok := h.registry.Page(name)
		if !ok {
			writeErrorResponse(w, h.logger, models.NewNotFoundError("unknown page "+name))
			return
		}

		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, h.logger, models.NewAuthenticationError("no session"))
			return
		}

		roles := id.Roles
		if roles == nil {
			roles = []string{}
		}
		writeJSONResponse(w, h.logger, models.PageView{
			Page:       name,
			User:       id.User,
			Roles:      roles,
			Components: components,
		}, http.StatusOK)
	}
}

// Unauthorized handles GET /unauthorized, where the gate sends rejected requests.
func (h *PageHandler) Unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, h.logger, map[string]string{
		"code":  "forbidden",
		"error": "You do not have permission to view this page",
	}, http.StatusForbidden)
}
