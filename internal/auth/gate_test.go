package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func newTestGate(t *testing.T, cas *fakeCAS, observer auth.DecisionObserver) *auth.Gate {
	t.Helper()
	validator := auth.NewCASValidator(cas.BaseURL(), 0, quietLogger(), nil)
	return auth.NewGate(validator, testSigner(), testRoles(), testCookies(), auth.GateOptions{
		Rules:      config.DefaultPolicy().ProtectedRoutes,
		CASBaseURL: cas.BaseURL(),
	}, quietLogger(), observer)
}

func withSession(t *testing.T, r *http.Request, user string) *http.Request {
	t.Helper()
	value, err := testSigner().Sign(user)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: "gt_session", Value: value})
	return r
}

func TestGateEvaluate(t *testing.T) {
	cas := newFakeCAS(t, map[string]string{
		"ST-pi":      "gburdell3",
		"ST-student": "jdoe7",
		"ST-admin":   "admin1",
	})

	tests := []struct {
		name          string
		target        string
		sessionUser   string
		expected      auth.Outcome
		expectedUser  string
		expectedRoles []string
		redirect      string
	}{
		{
			name:     "protected_without_session",
			target:   "http://example.com/dashboard",
			expected: auth.OutcomeUnauthorized,
			redirect: "/unauthorized",
		},
		{
			name:     "unprotected_without_session",
			target:   "http://example.com/",
			expected: auth.OutcomeAnonymous,
		},
		{
			name:         "unprotected_with_session_skips_roles",
			target:       "http://example.com/account",
			sessionUser:  "jdoe7",
			expected:     auth.OutcomeAuthenticated,
			expectedUser: "jdoe7",
		},
		{
			name:          "protected_with_matching_role",
			target:        "http://example.com/dashboard/printers",
			sessionUser:   "jdoe7",
			expected:      auth.OutcomeAuthenticated,
			expectedUser:  "jdoe7",
			expectedRoles: []string{models.RoleStudent},
		},
		{
			name:        "protected_with_wrong_role",
			target:      "http://example.com/pi",
			sessionUser: "jdoe7",
			expected:    auth.OutcomeUnauthorized,
			redirect:    "/unauthorized",
		},
		{
			name:        "admin_route_requires_admin",
			target:      "http://example.com/admin/cache",
			sessionUser: "gburdell3",
			expected:    auth.OutcomeUnauthorized,
			redirect:    "/unauthorized",
		},
		{
			name:          "admin_route_for_admin",
			target:        "http://example.com/admin/cache",
			sessionUser:   "admin1",
			expected:      auth.OutcomeAuthenticated,
			expectedUser:  "admin1",
			expectedRoles: []string{models.RoleAdmin, models.RoleStaff},
		},
		{
			name:     "bad_ticket_on_protected_route",
			target:   "http://example.com/dashboard?ticket=ST-unknown",
			expected: auth.OutcomeUnauthorized,
			redirect: "/unauthorized",
		},
		{
			name:     "bad_ticket_on_unprotected_route",
			target:   "http://example.com/?ticket=ST-unknown",
			expected: auth.OutcomeAnonymous,
		},
		{
			name:     "valid_ticket_without_required_role",
			target:   "http://example.com/pi?ticket=ST-student",
			expected: auth.OutcomeUnauthorized,
			redirect: "/unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gate := newTestGate(t, cas, nil)

			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.sessionUser != "" {
				r = withSession(t, r, tt.sessionUser)
			}

			decision, err := gate.Evaluate(r)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, decision.Outcome)
			assert.Equal(t, tt.expectedUser, decision.User)
			assert.Equal(t, tt.expectedRoles, decision.Roles)
			assert.Equal(t, tt.redirect, decision.Redirect)
			assert.Empty(t, decision.Session)
		})
	}
}

func TestGateSignInWithTicket(t *testing.T) {
	cas := newFakeCAS(t, map[string]string{"ST-pi": "gburdell3"})
	observer := &countingObserver{}
	gate := newTestGate(t, cas, observer)

	r := httptest.NewRequest(http.MethodGet, "http://example.com/pi/overview?tab=jobs&ticket=ST-pi&sort=desc", nil)
	decision, err := gate.Evaluate(r)
	require.NoError(t, err)

	assert.Equal(t, auth.OutcomeSignedIn, decision.Outcome)
	assert.Equal(t, "gburdell3", decision.User)
	assert.Equal(t, []string{models.RolePI}, decision.Roles)
	assert.Equal(t, "http://example.com/pi/overview?tab=jobs&sort=desc", decision.Redirect)
	assert.Equal(t, decision.Redirect, cas.lastService())
	assert.Equal(t, 1, observer.count(auth.OutcomeSignedIn))

	user, err := testSigner().Verify(decision.Session)
	require.NoError(t, err)
	assert.Equal(t, "gburdell3", user)

	// The session alone now passes the gate.
	follow := httptest.NewRequest(http.MethodGet, decision.Redirect, nil)
	follow.AddCookie(&http.Cookie{Name: "gt_session", Value: decision.Session})
	decision, err = gate.Evaluate(follow)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, decision.Outcome)
	assert.Equal(t, 1, observer.count(auth.OutcomeAuthenticated))
}

func TestGateRejectsForgedSession(t *testing.T) {
	cas := newFakeCAS(t, nil)
	gate := newTestGate(t, cas, nil)

	r := httptest.NewRequest(http.MethodGet, "http://example.com/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: "gt_session", Value: "gburdell3"})

	decision, err := gate.Evaluate(r)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeUnauthorized, decision.Outcome)

	_, ok := gate.Identity(r)
	assert.False(t, ok)
}

func TestGateFirstMatchingRuleWins(t *testing.T) {
	cas := newFakeCAS(t, nil)
	validator := auth.NewCASValidator(cas.BaseURL(), 0, quietLogger(), nil)
	gate := auth.NewGate(validator, testSigner(), testRoles(), testCookies(), auth.GateOptions{
		Rules: []config.RouteRule{
			{Prefix: "/dashboard/pi", Roles: []string{models.RolePI}},
			{Prefix: "/dashboard", Roles: []string{models.RoleStudent}},
		},
		CASBaseURL: cas.BaseURL(),
	}, quietLogger(), nil)

	r := withSession(t, httptest.NewRequest(http.MethodGet, "http://example.com/dashboard/pi", nil), "jdoe7")
	decision, err := gate.Evaluate(r)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeUnauthorized, decision.Outcome)

	assert.True(t, gate.Protected("/dashboard/overview"))
	assert.False(t, gate.Protected("/api/metrics/leaderboard"))
}

func TestGateURLs(t *testing.T) {
	gate := auth.NewGate(auth.BypassValidator{User: "testuser"}, testSigner(), testRoles(), testCookies(), auth.GateOptions{
		CASBaseURL: "https://sso.gatech.edu:443/cas/",
	}, quietLogger(), nil)

	t.Run("service_url_strips_ticket", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/dashboard?ticket=ST-1&tab=2", nil)
		assert.Equal(t, "http://example.com/dashboard?tab=2", gate.ServiceURL(r))

		r = httptest.NewRequest(http.MethodGet, "http://example.com/dashboard?ticket=ST-1", nil)
		assert.Equal(t, "http://example.com/dashboard", gate.ServiceURL(r))
	})

	t.Run("login_url", func(t *testing.T) {
		assert.Equal(t,
			"https://sso.gatech.edu:443/cas/login?service=http%3A%2F%2Fexample.com%2Fdashboard",
			gate.LoginURL("http://example.com/dashboard"))
	})

	t.Run("logout_url_defaults_to_account", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/api/auth/logout", nil)
		assert.Equal(t,
			"https://sso.gatech.edu:443/cas/logout?service=http%3A%2F%2Fexample.com%2Faccount",
			gate.LogoutURL(r, ""))
		assert.Equal(t,
			"https://sso.gatech.edu:443/cas/logout?service=https%3A%2F%2Fgatech.edu",
			gate.LogoutURL(r, "https://gatech.edu"))
	})

	t.Run("configured_origin", func(t *testing.T) {
		fixed := auth.NewGate(auth.BypassValidator{User: "testuser"}, testSigner(), testRoles(), testCookies(), auth.GateOptions{
			CASBaseURL:     "https://sso.gatech.edu:443/cas",
			ServiceBaseURL: "https://dash.example.edu/",
		}, quietLogger(), nil)
		r := httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8080/pi?ticket=ST-1&x=1", nil)
		assert.Equal(t, "https://dash.example.edu/pi?x=1", fixed.ServiceURL(r))
	})
}

func TestBypassSignsInConfiguredUser(t *testing.T) {
	gate := auth.NewGate(auth.BypassValidator{User: "gburdell3"}, testSigner(), testRoles(), testCookies(), auth.GateOptions{
		Rules: config.DefaultPolicy().ProtectedRoutes,
	}, quietLogger(), nil)

	r := httptest.NewRequest(http.MethodGet, "http://localhost:3000/pi?ticket=anything", nil)
	decision, err := gate.Evaluate(r)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeSignedIn, decision.Outcome)
	assert.Equal(t, "gburdell3", decision.User)
	assert.Equal(t, "http://localhost:3000/pi", decision.Redirect)
}
