package auth_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef" // pragma: allowlist secret

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeCAS answers p3/serviceValidate for the tickets it was seeded with and
// records the service URL of every call.
type fakeCAS struct {
	*httptest.Server
	mu       sync.Mutex
	tickets  map[string]string
	services []string
}

func newFakeCAS(t *testing.T, tickets map[string]string) *fakeCAS {
	t.Helper()
	f := &fakeCAS{tickets: tickets}
	mux := http.NewServeMux()
	mux.HandleFunc("/cas/p3/serviceValidate", func(w http.ResponseWriter, r *http.Request) {
		ticket := r.URL.Query().Get("ticket")
		f.mu.Lock()
		f.services = append(f.services, r.URL.Query().Get("service"))
		user, ok := f.tickets[ticket]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/xml")
		if !ok {
			fmt.Fprintf(w, `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationFailure code="INVALID_TICKET">Ticket %s not recognized</cas:authenticationFailure>
</cas:serviceResponse>`, ticket)
			return
		}
		fmt.Fprintf(w, `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationSuccess>
    <cas:user>%s</cas:user>
    <cas:attributes><cas:email>%s@gatech.edu</cas:email></cas:attributes>
  </cas:authenticationSuccess>
</cas:serviceResponse>`, user, user)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeCAS) BaseURL() string { return f.URL + "/cas" }

func (f *fakeCAS) lastService() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.services) == 0 {
		return ""
	}
	return f.services[len(f.services)-1]
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveAuthDecision(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) count(outcome auth.Outcome) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[string(outcome)]
}

func testRoles() *auth.StaticRoleDirectory {
	return auth.NewStaticRoleDirectory(config.RolePolicy{
		Assignments: map[string][]string{
			"gburdell3": {models.RolePI},
			"admin1":    {models.RoleAdmin, models.RoleStaff},
		},
		DefaultRoles: []string{models.RoleStudent},
	})
}

func testSigner() *token.SessionSigner {
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	return token.NewSessionSigner(testSecret, "makerspace-dashboard", 24*time.Hour, func() time.Time { return now })
}

func testCookies() auth.CookiePolicy {
	return auth.CookiePolicy{Name: "gt_session", MaxAge: 24 * time.Hour}
}
