package startup_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/startup"
)

type recordingRepo struct {
	mu      sync.Mutex
	written map[string][]string
	failFor string
}

func (r *recordingRepo) GetRoles(context.Context, string) ([]string, error) { return nil, nil }

func (r *recordingRepo) SetRoles(_ context.Context, username string, roles []string) error {
	if username == r.failFor {
		return errors.New("write failed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written[username] = roles
	return nil
}

func (r *recordingRepo) DeleteUser(context.Context, string) error { return nil }

func (r *recordingRepo) ListAssignments(context.Context) ([]models.RoleAssignment, error) {
	return nil, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// writeSeedFile writes content under a relative configs-like directory so the
// path passes validation.
func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	dir, err := os.MkdirTemp(".", "seed")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(filepath.Base(dir), "roles.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedRoles(t *testing.T) {
	path := writeSeedFile(t, `[
  {"username": "gburdell3", "roles": ["PI"]},
  {"username": "broken", "roles": ["STAFF"]},
  {"username": "admin1", "roles": ["ADMIN", "STAFF"]}
]`)

	repo := &recordingRepo{written: map[string][]string{}, failFor: "broken"}
	seeder := startup.NewRoleSeeder(&config.RolesConfig{SeedEnabled: true, SeedPath: path}, repo, quietLogger())

	seeded, err := seeder.SeedRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seeded)
	assert.Equal(t, map[string][]string{
		"gburdell3": {"PI"},
		"admin1":    {"ADMIN", "STAFF"},
	}, repo.written)
}

func TestSeedRolesSkips(t *testing.T) {
	repo := &recordingRepo{written: map[string][]string{}}

	t.Run("disabled", func(t *testing.T) {
		seeder := startup.NewRoleSeeder(&config.RolesConfig{SeedEnabled: false, SeedPath: "configs/roles.json"}, repo, quietLogger())
		seeded, err := seeder.SeedRoles(context.Background())
		require.NoError(t, err)
		assert.Zero(t, seeded)
	})

	t.Run("missing_file", func(t *testing.T) {
		seeder := startup.NewRoleSeeder(&config.RolesConfig{SeedEnabled: true, SeedPath: "does-not-exist/roles.json"}, repo, quietLogger())
		seeded, err := seeder.SeedRoles(context.Background())
		require.NoError(t, err)
		assert.Zero(t, seeded)
	})

	assert.Empty(t, repo.written)
}

func TestLoadAssignmentsRejects(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{name: "traversal", path: func(*testing.T) string { return "../../etc/roles.json" }},
		{name: "not_json", path: func(*testing.T) string { return "configs/roles.yaml" }},
		{name: "absolute_outside_configs", path: func(*testing.T) string { return "/tmp/roles.json" }},
		{name: "malformed", path: func(t *testing.T) string { return writeSeedFile(t, `{"username":`) }},
		{name: "missing_username", path: func(t *testing.T) string { return writeSeedFile(t, `[{"roles":["PI"]}]`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := startup.LoadAssignments(tt.path(t))
			require.Error(t, err)
		})
	}
}
