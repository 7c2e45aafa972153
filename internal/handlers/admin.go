package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
)

// AdminHandler handles the cache, credential and role administration endpoints.
type AdminHandler struct {
	adminSvc auth.AdminService
	logger   *logrus.Logger
}

// NewAdminHandler creates a new admin handler instance with the provided dependencies.
func NewAdminHandler(adminSvc auth.AdminService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		adminSvc: adminSvc,
		logger:   logger,
	}
}

// RegisterRoutes registers admin routes on the provided router.
// Note: The router must sit under a prefix the gate restricts to admins.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/cache/stats", h.GetCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodPost)
	router.HandleFunc("/credentials/invalidate", h.InvalidateCredential).Methods(http.MethodPost)
	router.HandleFunc("/roles/{username}", h.LookupRoles).Methods(http.MethodGet)
}

// GetCacheStats handles GET /admin/cache/stats
// Returns the response cache backend, entry count and TTL.
//
// Responses:
//   - 200: Cache statistics retrieved successfully
//   - 500: Cache backend unreachable
func (h *AdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminSvc.CacheStats(r.Context())
	if err != nil {
		requestLogger(r, h.logger).WithError(err).Error("Failed to get cache stats")
		writeErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, stats, http.StatusOK)
}

// ClearCache handles POST /admin/cache/clear
// Drops every cached upstream response. The next metric requests go upstream.
//
// Responses:
//   - 200: Cache cleared successfully
//   - 500: Internal server error
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.logger)
	log.Warn("Processing clear cache request")

	response, err := h.adminSvc.ClearCache(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to clear cache")
		writeErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, response, http.StatusOK)
	log.WithField("entries_cleared", response.Cleared).Info("Cache cleared successfully")
}

// InvalidateCredential handles POST /admin/credentials/invalidate?system=3DPOS|SUMS
// Drops the shared upstream credential so the next request logs in again.
//
// Query Parameters:
//   - system: The upstream system (case-insensitive)
//
// Responses:
//   - 200: Credential invalidated
//   - 404: Unknown system
func (h *AdminHandler) InvalidateCredential(w http.ResponseWriter, r *http.Request) {
	system := r.URL.Query().Get("system")

	response, err := h.adminSvc.InvalidateCredential(r.Context(), system)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).WithField("system", system).Warn("Failed to invalidate credential")
		writeErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, response, http.StatusOK)
}

// LookupRoles handles GET /admin/roles/{username}
// Resolves a user's roles the same way the gate does.
//
// Path Parameters:
//   - username: The SSO username
//
// Responses:
//   - 200: {user, roles}
//   - 400: Missing username
//   - 500: Role directory failure
func (h *AdminHandler) LookupRoles(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	response, err := h.adminSvc.LookupRoles(r.Context(), username)
	if err != nil {
		requestLogger(r, h.logger).WithError(err).WithField("user", username).Error("Failed to look up roles")
		writeErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, response, http.StatusOK)
}
