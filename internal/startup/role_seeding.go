// Package startup provides service initialization steps, currently seeding
// the role store from a configuration file.
package startup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/repository"
)

// RoleSeeder loads role assignments from a JSON file into the role store.
type RoleSeeder struct {
	config *config.RolesConfig
	repo   repository.RoleRepository
	logger *logrus.Logger
}

// NewRoleSeeder creates a seeder.
func NewRoleSeeder(cfg *config.RolesConfig, repo repository.RoleRepository, logger *logrus.Logger) *RoleSeeder {
	return &RoleSeeder{config: cfg, repo: repo, logger: logger}
}

// SeedRoles writes every assignment of the seed file. A missing file is
// skipped; a failing assignment is logged and the rest continue. It returns
// the number of users written.
func (s *RoleSeeder) SeedRoles(ctx context.Context) (int, error) {
	if !s.config.SeedEnabled {
		return 0, nil
	}

	path := s.config.SeedPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.logger.WithField("seed_path", path).Warn("Role seed file not found, skipping seeding")
		return 0, nil
	}

	assignments, err := LoadAssignments(path)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load role seed file")
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"seed_path":  path,
		"user_count": len(assignments),
	}).Info("Seeding role assignments")

	seeded := 0
	for i, a := range assignments {
		if err := s.repo.SetRoles(ctx, a.User, a.Roles); err != nil {
			s.logger.WithError(err).WithField("user", a.User).Error("Failed to seed role assignment")
			continue
		}
		seeded++
		s.logger.WithFields(logrus.Fields{
			"user":  a.User,
			"roles": a.Roles,
			"index": i + 1,
			"total": len(assignments),
		}).Debug("Role assignment seeded")
	}

	return seeded, nil
}

// LoadAssignments reads and validates a role assignment file.
func LoadAssignments(path string) ([]models.RoleAssignment, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid seed path: %w", err)
	}

	// #nosec G304 - path is validated above to prevent directory traversal
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open role file: %w", err)
	}
	defer file.Close()

	var assignments []models.RoleAssignment
	if err := json.NewDecoder(file).Decode(&assignments); err != nil {
		return nil, fmt.Errorf("failed to parse role file: %w", err)
	}

	for i, a := range assignments {
		if strings.TrimSpace(a.User) == "" {
			return nil, fmt.Errorf("role file entry %d has no username", i+1)
		}
	}
	return assignments, nil
}

// validateConfigPath rejects traversal and non-JSON files.
func validateConfigPath(configPath string) error {
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return errors.New("directory traversal not allowed in config path")
	}
	if filepath.IsAbs(cleanPath) {
		if err := validateAbsolutePath(cleanPath); err != nil {
			return err
		}
	}
	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must be a JSON file")
	}
	return nil
}

// validateAbsolutePath allows absolute paths only inside known config
// directories or the configs/ directory under the working directory.
func validateAbsolutePath(cleanPath string) error {
	for _, prefix := range []string{"/app/configs/", "/opt/app/configs/", "/etc/makerspace-dashboard/"} {
		if strings.HasPrefix(cleanPath, prefix) {
			return nil
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if strings.HasPrefix(cleanPath, filepath.Join(cwd, "configs")+string(filepath.Separator)) {
			return nil
		}
	}

	return errors.New("absolute paths not allowed outside of permitted directories")
}
