package auth

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// CASSystem is the source tag used for SSO calls in logs and metrics.
const CASSystem = "CAS"

const opServiceValidate = "p3/serviceValidate"

// maxValidationBody bounds the CAS response read into memory.
const maxValidationBody = 64 << 10

// TicketValidator exchanges a one-time SSO ticket for a username.
type TicketValidator interface {
	// Validate returns the username the ticket was issued to. service must be
	// the exact URL the ticket was issued for.
	Validate(ctx context.Context, ticket, service string) (string, error)
}

// CASValidator validates tickets against a CAS 3.0 server.
type CASValidator struct {
	*client.BaseClient
	logger *logrus.Logger
}

// NewCASValidator creates a validator for the CAS server at baseURL
// (for example https://sso.gatech.edu:443/cas). observer may be nil.
func NewCASValidator(baseURL string, timeout time.Duration, logger *logrus.Logger, observer client.Observer) *CASValidator {
	return &CASValidator{
		BaseClient: client.NewBaseClient(CASSystem, baseURL, timeout, logger, observer),
		logger:     logger,
	}
}

type serviceResponse struct {
	XMLName xml.Name               `xml:"serviceResponse"`
	Success *authenticationSuccess `xml:"authenticationSuccess"`
	Failure *authenticationFailure `xml:"authenticationFailure"`
}

type authenticationSuccess struct {
	User string `xml:"user"`
}

type authenticationFailure struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// Validate calls <cas>/p3/serviceValidate and parses the XML answer. Every
// failure, including transport errors, is an AuthenticationError.
func (v *CASValidator) Validate(ctx context.Context, ticket, service string) (string, error) {
	if ticket == "" {
		return "", models.NewAuthenticationError("missing service ticket")
	}

	resp, err := v.Get(ctx, opServiceValidate, url.Values{
		constants.QueryTicket:  {ticket},
		constants.QueryService: {service},
	})
	if err != nil {
		return "", models.NewAuthenticationError("ticket validation unavailable").WithDescription(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", models.NewAuthenticationError(fmt.Sprintf("ticket validation returned HTTP %d", resp.StatusCode))
	}

	var parsed serviceResponse
	decoder := xml.NewDecoder(http.MaxBytesReader(nil, resp.Body, maxValidationBody))
	if err := decoder.Decode(&parsed); err != nil {
		return "", models.NewAuthenticationError("malformed ticket validation response")
	}

	switch {
	case parsed.Failure != nil:
		v.logger.WithField("code", parsed.Failure.Code).Warn("CAS rejected service ticket")
		return "", models.NewAuthenticationError(fmt.Sprintf("ticket rejected: %s %s",
			parsed.Failure.Code, strings.TrimSpace(parsed.Failure.Message)))
	case parsed.Success == nil || strings.TrimSpace(parsed.Success.User) == "":
		return "", models.NewAuthenticationError("ticket validation returned no user")
	}

	return strings.TrimSpace(parsed.Success.User), nil
}

// BypassValidator accepts any ticket as the configured test user. It exists for
// local development only; configuration refuses it in PROD.
type BypassValidator struct {
	User string
}

// Validate returns the test user for any non-empty ticket.
func (v BypassValidator) Validate(_ context.Context, ticket, _ string) (string, error) {
	if ticket == "" {
		return "", models.NewAuthenticationError("missing service ticket")
	}
	if v.User == "" {
		return "", errors.New("bypass validator has no user configured")
	}
	return v.User, nil
}
