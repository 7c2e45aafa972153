package models_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func TestAPIErrorError(t *testing.T) {
	tests := []struct {
		name        string
		error       *models.APIError
		expectedMsg string
	}{
		{
			name:        "error_with_description",
			error:       &models.APIError{Code: models.CodeUpstream, Description: "Invalid report range"},
			expectedMsg: "upstream_error: Invalid report range",
		},
		{
			name:        "error_without_description",
			error:       &models.APIError{Code: models.CodeNotFound},
			expectedMsg: "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMsg, tt.error.Error())
		})
	}
}

func TestNewErrorFunctions(t *testing.T) {
	tests := []struct {
		name           string
		createFunc     func(string) *models.APIError
		expectedCode   string
		expectedStatus int
	}{
		{"authentication", models.NewAuthenticationError, models.CodeAuthentication, http.StatusUnauthorized},
		{"upstream", models.NewUpstreamError, models.CodeUpstream, http.StatusInternalServerError},
		{"upstream_timeout", models.NewUpstreamTimeout, models.CodeUpstreamTimeout, http.StatusGatewayTimeout},
		{"not_found", models.NewNotFoundError, models.CodeNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.createFunc("some detail")

			assert.Equal(t, tt.expectedCode, err.Code)
			assert.Equal(t, tt.expectedStatus, err.StatusCode)
			assert.Equal(t, "some detail", err.Description)
		})
	}
}

func TestAPIErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("fetching job 42: %w", models.NewNotFoundError("job 42 does not exist"))

	assert.True(t, errors.Is(wrapped, models.ErrNotFound))
	assert.False(t, errors.Is(wrapped, models.ErrUpstream))
	assert.False(t, errors.Is(errors.New("plain"), models.ErrNotFound))
}

func TestValidationFailure(t *testing.T) {
	var errs models.ValidationErrors
	errs.Add("period", "must be day or week")
	errs.Add("date", "must be YYYY-MM-DD")

	err := models.NewValidationFailure(errs)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Len(t, err.Fields, 2)
	assert.Equal(t, "validation failed with 2 errors", err.Description)
	assert.True(t, errors.Is(err, models.ErrValidation))

	single := models.NewValidationError("from", "is required")
	assert.Equal(t, "from: is required", single.Description)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"api_error", models.NewAuthenticationError("x"), http.StatusUnauthorized},
		{"wrapped_api_error", fmt.Errorf("ctx: %w", models.NewValidationError("a", "b")), http.StatusBadRequest},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, models.StatusCode(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Authentication failed", models.PublicMessage(models.NewAuthenticationError("bad password for svc-account")))
	assert.Equal(t, "Report range too large", models.PublicMessage(models.NewUpstreamError("Report range too large")))
	assert.Equal(t, "Upstream request timed out", models.PublicMessage(context.DeadlineExceeded))
	assert.Equal(t, "Internal server error", models.PublicMessage(errors.New("dial tcp: refused")))
}

func TestValidationErrorsHasErrors(t *testing.T) {
	var errs models.ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "validation failed", errs.Error())

	errs.Add("limit", "must be positive")
	assert.True(t, errs.HasErrors())
	assert.Equal(t, "limit: must be positive", errs.Error())
}
