package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func TestWithRetryOnAuthFailure(t *testing.T) {
	tests := []struct {
		name          string
		maxAttempts   int
		failures      int
		failWith      error
		expectedCalls int
		expectErr     error
	}{
		{name: "success_first_try", maxAttempts: 1, failures: 0, expectedCalls: 1},
		{name: "one_auth_failure_retried", maxAttempts: 1, failures: 1, failWith: models.NewAuthenticationError("expired"), expectedCalls: 2},
		{name: "retry_budget_exhausted", maxAttempts: 1, failures: 5, failWith: models.NewAuthenticationError("expired"), expectedCalls: 2, expectErr: models.ErrAuthenticationFailed},
		{name: "zero_attempts_never_retries", maxAttempts: 0, failures: 1, failWith: models.NewAuthenticationError("expired"), expectedCalls: 1, expectErr: models.ErrAuthenticationFailed},
		{name: "upstream_error_not_retried", maxAttempts: 1, failures: 1, failWith: models.NewUpstreamError("boom"), expectedCalls: 1, expectErr: models.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			auth := &fakeAuthenticator{}
			broker := client.NewSessionBroker("3DPOS", auth, testLogger(), nil)
			ctx := context.Background()

			initial, err := broker.GetCredential(ctx, "")
			require.NoError(t, err)
			session := client.NewSession(broker, initial)

			var seen []string
			result, err := client.WithRetryOnAuthFailure(ctx, session, tt.maxAttempts,
				func(_ context.Context, credential string) (int, error) {
					seen = append(seen, credential)
					if len(seen) <= tt.failures {
						return 0, tt.failWith
					}
					return 42, nil
				})

			assert.Len(t, seen, tt.expectedCalls)
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, result)
			if tt.expectedCalls > 1 {
				assert.NotEqual(t, seen[0], seen[1], "retry must use a refreshed credential")
				assert.Equal(t, seen[1], session.Credential())
			}
		})
	}
}

func TestWithRetryRefreshFailure(t *testing.T) {
	auth := &fakeAuthenticator{login: func(n int32) (string, error) {
		if n == 1 {
			return "first", nil
		}
		return "", errors.New("vendor down")
	}}
	broker := client.NewSessionBroker("3DPOS", auth, testLogger(), nil)
	ctx := context.Background()

	initial, err := broker.GetCredential(ctx, "")
	require.NoError(t, err)
	session := client.NewSession(broker, initial)

	_, err = client.WithRetryOnAuthFailure(ctx, session, 1, func(context.Context, string) (string, error) {
		return "", models.NewAuthenticationError("expired")
	})
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestWithRetryParallelAuthFailuresLogInOnce(t *testing.T) {
	auth := &fakeAuthenticator{}
	broker := client.NewSessionBroker("3DPOS", auth, testLogger(), nil)
	ctx := context.Background()

	stale, err := broker.GetCredential(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int32(1), auth.logins.Load())
	session := client.NewSession(broker, stale)

	const workers = 7
	var failed sync.WaitGroup
	failed.Add(workers)
	release := make(chan struct{})
	go func() {
		failed.Wait()
		close(release)
	}()

	results := make([]string, workers)
	errs := make([]error, workers)
	var done sync.WaitGroup
	for i := range workers {
		done.Add(1)
		go func() {
			defer done.Done()
			results[i], errs[i] = client.WithRetryOnAuthFailure(ctx, session, 1,
				func(_ context.Context, credential string) (string, error) {
					if credential == stale {
						failed.Done()
						<-release
						return "", models.NewAuthenticationError("session expired")
					}
					return credential, nil
				})
		}()
	}
	done.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, session.Credential(), results[i])
	}
	assert.NotEqual(t, stale, session.Credential())
	assert.Equal(t, int32(2), auth.logins.Load(), "parallel failures must share one refresh")
}

func TestSessionRefreshKeepsNewerCredential(t *testing.T) {
	auth := &fakeAuthenticator{}
	broker := client.NewSessionBroker("3DPOS", auth, testLogger(), nil)
	ctx := context.Background()

	stale, err := broker.GetCredential(ctx, "")
	require.NoError(t, err)
	session := client.NewSession(broker, stale)

	fresh, err := session.Refresh(ctx, stale)
	require.NoError(t, err)
	assert.NotEqual(t, stale, fresh)

	again, err := session.Refresh(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, fresh, again)
	assert.Equal(t, int32(2), auth.logins.Load())
}

func TestSessionContext(t *testing.T) {
	broker := client.NewSessionBroker("SUMS", &fakeAuthenticator{}, testLogger(), nil)
	session := client.NewSession(broker, "key:id")

	ctx := client.WithSession(context.Background(), session)

	got, ok := client.SessionFromContext(ctx, "SUMS")
	require.True(t, ok)
	assert.Equal(t, "key:id", got.Credential())
	assert.Equal(t, "SUMS", got.System())

	_, ok = client.SessionFromContext(ctx, "3DPOS")
	assert.False(t, ok)
}
