package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/token"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

// Outcome is the result of evaluating a request at the gate.
type Outcome string

// Gate outcomes.
const (
	// OutcomeAnonymous lets an unauthenticated request through to an
	// unprotected route.
	OutcomeAnonymous Outcome = "anonymous"
	// OutcomeAuthenticated lets a request with a valid session through.
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeSignedIn means a ticket was just validated. The caller sets the
	// session cookie and redirects to the ticket-free URL.
	OutcomeSignedIn Outcome = "signed_in"
	// OutcomeUnauthorized redirects to the unauthorized page.
	OutcomeUnauthorized Outcome = "unauthorized"
)

// Decision is what the gate wants done with a request.
type Decision struct {
	Outcome Outcome
	User    string
	// Roles is only resolved on protected routes.
	Roles []string
	// Redirect is set for SignedIn and Unauthorized.
	Redirect string
	// Session is the signed cookie value for SignedIn.
	Session string
	// Reason explains an Unauthorized decision in logs.
	Reason string
}

// DecisionObserver receives one sample per gate evaluation.
type DecisionObserver interface {
	ObserveAuthDecision(outcome string)
}

// GateOptions configures route protection and URL construction.
type GateOptions struct {
	// Rules are matched in order; the first prefix match wins.
	Rules []config.RouteRule
	// CASBaseURL is the SSO server, e.g. https://sso.gatech.edu:443/cas.
	CASBaseURL string
	// ServiceBaseURL is the public origin; empty derives it from the request.
	ServiceBaseURL string
	// UnauthorizedPath receives rejected requests.
	UnauthorizedPath string
}

// Gate enforces SSO sign-in and role-based route protection.
type Gate struct {
	validator TicketValidator
	signer    token.Signer
	roles     RoleDirectory
	cookies   CookiePolicy
	opts      GateOptions
	logger    *logrus.Logger
	observer  DecisionObserver
}

// NewGate creates a gate. observer may be nil.
func NewGate(
	validator TicketValidator,
	signer token.Signer,
	roles RoleDirectory,
	cookies CookiePolicy,
	opts GateOptions,
	logger *logrus.Logger,
	observer DecisionObserver,
) *Gate {
	if opts.UnauthorizedPath == "" {
		opts.UnauthorizedPath = "/unauthorized"
	}
	opts.CASBaseURL = strings.TrimSuffix(opts.CASBaseURL, "/")
	opts.ServiceBaseURL = strings.TrimSuffix(opts.ServiceBaseURL, "/")
	return &Gate{
		validator: validator,
		signer:    signer,
		roles:     roles,
		cookies:   cookies,
		opts:      opts,
		logger:    logger,
		observer:  observer,
	}
}

// Cookies returns the cookie policy the gate reads sessions with.
func (g *Gate) Cookies() CookiePolicy {
	return g.cookies
}

// Evaluate decides what to do with r. The error is only non-nil when a session
// value could not be signed.
func (g *Gate) Evaluate(r *http.Request) (Decision, error) {
	d, err := g.evaluate(r)
	if err == nil && g.observer != nil {
		g.observer.ObserveAuthDecision(string(d.Outcome))
	}
	return d, err
}

func (g *Gate) evaluate(r *http.Request) (Decision, error) {
	ctx := r.Context()
	log := logger.WithCorrelationID(ctx, g.logger).WithField("path", r.URL.Path)
	rule, protected := g.match(r.URL.Path)

	if ticket := r.URL.Query().Get(constants.QueryTicket); ticket != "" {
		service := g.ServiceURL(r)
		user, err := g.validator.Validate(ctx, ticket, service)
		if err != nil {
			log.WithError(err).Warn("Service ticket validation failed")
			if protected {
				return g.unauthorized("ticket validation failed"), nil
			}
			return g.fromSession(r, rule, protected)
		}

		var roles []string
		if protected {
			roles, err = g.roles.Roles(ctx, user)
			if err != nil {
				log.WithError(err).WithField("user", user).Error("Role lookup failed")
				return g.unauthorized("role lookup failed"), nil
			}
			if !HasAnyRole(roles, rule.Roles) {
				log.WithFields(logrus.Fields{"user": user, "roles": roles}).Info("User lacks a required role")
				return g.unauthorized("missing role"), nil
			}
		}

		value, err := g.signer.Sign(user)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to sign session: %w", err)
		}

		log.WithField("user", user).Info("User signed in")
		return Decision{
			Outcome:  OutcomeSignedIn,
			User:     user,
			Roles:    roles,
			Redirect: service,
			Session:  value,
		}, nil
	}

	return g.fromSession(r, rule, protected)
}

func (g *Gate) fromSession(r *http.Request, rule config.RouteRule, protected bool) (Decision, error) {
	user, ok := g.Identity(r)
	if !protected {
		if ok {
			return Decision{Outcome: OutcomeAuthenticated, User: user}, nil
		}
		return Decision{Outcome: OutcomeAnonymous}, nil
	}
	if !ok {
		return g.unauthorized("no session"), nil
	}

	roles, err := g.roles.Roles(r.Context(), user)
	if err != nil {
		logger.WithCorrelationID(r.Context(), g.logger).WithError(err).
			WithField("user", user).Error("Role lookup failed")
		return g.unauthorized("role lookup failed"), nil
	}
	if !HasAnyRole(roles, rule.Roles) {
		return g.unauthorized("missing role"), nil
	}
	return Decision{Outcome: OutcomeAuthenticated, User: user, Roles: roles}, nil
}

func (g *Gate) unauthorized(reason string) Decision {
	return Decision{Outcome: OutcomeUnauthorized, Redirect: g.opts.UnauthorizedPath, Reason: reason}
}

func (g *Gate) match(path string) (config.RouteRule, bool) {
	for _, rule := range g.opts.Rules {
		if strings.HasPrefix(path, rule.Prefix) {
			return rule, true
		}
	}
	return config.RouteRule{}, false
}

// Protected reports whether path falls under a route rule.
func (g *Gate) Protected(path string) bool {
	_, ok := g.match(path)
	return ok
}

// Identity returns the username of a valid session cookie on r.
func (g *Gate) Identity(r *http.Request) (string, bool) {
	value, ok := g.cookies.Read(r)
	if !ok {
		return "", false
	}
	user, err := g.signer.Verify(value)
	if err != nil {
		g.logger.WithError(err).Debug("Ignoring invalid session cookie")
		return "", false
	}
	return user, true
}

// Origin returns the public scheme://host of the service.
func (g *Gate) Origin(r *http.Request) string {
	if g.opts.ServiceBaseURL != "" {
		return g.opts.ServiceBaseURL
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host
}

// ServiceURL is the current URL with the ticket parameter removed. The order
// of the remaining parameters is kept so it matches the URL the ticket was
// issued for.
func (g *Gate) ServiceURL(r *http.Request) string {
	kept := make([]string, 0, 4)
	for _, part := range strings.Split(r.URL.RawQuery, "&") {
		if part == "" {
			continue
		}
		name, _, _ := strings.Cut(part, "=")
		if key, err := url.QueryUnescape(name); err == nil && key == constants.QueryTicket {
			continue
		}
		kept = append(kept, part)
	}

	service := g.Origin(r) + r.URL.EscapedPath()
	if len(kept) > 0 {
		service += "?" + strings.Join(kept, "&")
	}
	return service
}

// LoginURL is the SSO login page that returns to service.
func (g *Gate) LoginURL(service string) string {
	return g.opts.CASBaseURL + "/login?" + constants.QueryService + "=" + url.QueryEscape(service)
}

// LogoutURL is the SSO logout page that returns to service, defaulting to the
// account page of this service.
func (g *Gate) LogoutURL(r *http.Request, service string) string {
	if service == "" {
		service = g.Origin(r) + "/account"
	}
	return g.opts.CASBaseURL + "/logout?" + constants.QueryService + "=" + url.QueryEscape(service)
}
