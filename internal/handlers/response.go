// Package handlers provides the HTTP handlers of the dashboard service: the
// metric API, the SSO session endpoints, the dashboard pages, the admin API
// and the health probes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, log logrus.FieldLogger, data any, statusCode int) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes err as an APIError payload. Errors outside the
// taxonomy are reported as internal errors without their detail.
func writeErrorResponse(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := models.StatusCode(err)
	body := &models.APIError{Code: models.CodeInternal, Description: models.PublicMessage(err)}

	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		body.Code = apiErr.Code
		body.Fields = apiErr.Fields
	} else if models.IsTimeout(err) {
		body.Code = models.CodeUpstreamTimeout
	}

	writeJSONResponse(w, log, body, status)
}

// requestLogger returns the handler logger tagged with the request's correlation id.
func requestLogger(r *http.Request, log *logrus.Logger) *logrus.Entry {
	return logger.WithCorrelationID(r.Context(), log).WithField("path", r.URL.Path)
}
