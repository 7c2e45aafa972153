package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

// AuthGate applies the SSO gate to every request. Sign-ins set the session
// cookie and redirect to the ticket-free URL; rejections redirect to the
// unauthorized page. Both redirects are 307 so the method is kept.
func (m *Stack) AuthGate(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := gate.Evaluate(r)
			if err != nil {
				logger.WithCorrelationID(r.Context(), m.logger).WithError(err).Error("Gate evaluation failed")
				writeJSONError(w, http.StatusInternalServerError, "An unexpected error occurred")
				return
			}

			switch decision.Outcome {
			case auth.OutcomeSignedIn:
				gate.Cookies().Set(w, decision.Session)
				http.Redirect(w, r, decision.Redirect, http.StatusTemporaryRedirect)
			case auth.OutcomeUnauthorized:
				logger.WithCorrelationID(r.Context(), m.logger).WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"reason": decision.Reason,
				}).Info("Request rejected by gate")
				http.Redirect(w, r, decision.Redirect, http.StatusTemporaryRedirect)
			case auth.OutcomeAuthenticated:
				ctx := WithIdentity(r.Context(), Identity{User: decision.User, Roles: decision.Roles})
				next.ServeHTTP(w, r.WithContext(ctx))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// UpstreamCredential ensures a valid credential for broker's system is
// available before the handler runs. When acceptSupplied is set the client may
// pass its own credential in header; otherwise the shared one is always used.
// The credential is written back into header on the request and attached to
// the context as a client.Session. Failure answers 401.
func (m *Stack) UpstreamCredential(broker client.SessionBroker, header string, acceptSupplied bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := ""
			if acceptSupplied {
				supplied = r.Header.Get(header)
			}

			credential, err := broker.GetCredential(r.Context(), supplied)
			if err != nil {
				logger.WithCorrelationID(r.Context(), m.logger).WithError(err).
					WithField("system", broker.System()).Warn("Upstream credential unavailable")
				writeJSONError(w, http.StatusUnauthorized, models.PublicMessage(models.ErrAuthenticationFailed))
				return
			}

			r.Header.Set(header, credential)
			ctx := client.WithSession(r.Context(), client.NewSession(broker, credential))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
