// Package main provides a CLI tool for managing dashboard role assignments
// stored in the PostgreSQL or MySQL role database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/database/mysql"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/database/postgres"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/repository"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/startup"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

const commandTimeout = 30 * time.Second

// RoleManager runs one action against the role store.
type RoleManager struct {
	repo   repository.RoleRepository
	out    io.Writer
	logger *logrus.Logger
}

func main() {
	var (
		action   = flag.String("action", "list", "Action to perform: list, grant, revoke, seed")
		backend  = flag.String("backend", "", "Role store: postgres or mysql (default: ROLES_BACKEND)")
		username = flag.String("user", "", "SSO username for grant/revoke")
		roles    = flag.String("roles", "", "Comma-separated roles for grant, e.g. PI,STAFF")
		seedFile = flag.String("file", "", "Role assignment JSON file for seed (default: ROLES_SEED_PATH)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Roles.Backend = *backend
	}
	if *seedFile != "" {
		cfg.Roles.SeedPath = *seedFile
	}

	log := logger.New("warn", "text", "stderr")

	repo, closeStore, err := openStore(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening role store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	manager := &RoleManager{repo: repo, out: os.Stdout, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := manager.run(ctx, *action, *username, parseStringList(*roles), &cfg.Roles); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		closeStore()
		os.Exit(1)
	}
}

// loadConfig reads only the settings the tool needs, so it runs without the
// server's secrets.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := envconfig.Process("POSTGRES", &cfg.PostgresDatabase); err != nil {
		return nil, err
	}
	if err := envconfig.Process("MYSQL", &cfg.MySQLDatabase); err != nil {
		return nil, err
	}
	if err := envconfig.Process("ROLES", &cfg.Roles); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config, log *logrus.Logger) (repository.RoleRepository, func(), error) {
	switch cfg.Roles.Backend {
	case config.RolesBackendPostgres:
		if !cfg.IsPostgresDatabaseConfigured() {
			return nil, nil, errors.New("POSTGRES_USER and POSTGRES_PASSWORD are required")
		}
		mgr := postgres.NewManager(cfg, log)
		if !mgr.IsAvailable() {
			mgr.Close()
			return nil, nil, errors.New("PostgreSQL is unreachable")
		}
		return repository.NewPostgresRoleRepository(mgr.Pool), mgr.Close, nil
	case config.RolesBackendMySQL:
		if !cfg.IsMySQLDatabaseConfigured() {
			return nil, nil, errors.New("MYSQL_USER and MYSQL_PASSWORD are required")
		}
		mgr := mysql.NewManager(cfg, log)
		if !mgr.IsAvailable() {
			_ = mgr.Close()
			return nil, nil, errors.New("MySQL is unreachable")
		}
		return repository.NewMySQLRoleRepository(mgr.DB), func() { _ = mgr.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("role store %q has no database; use -backend postgres or mysql", cfg.Roles.Backend)
	}
}

func (rm *RoleManager) run(ctx context.Context, action, username string, roles []string, cfg *config.RolesConfig) error {
	switch action {
	case "list":
		return rm.list(ctx)
	case "grant":
		if username == "" || len(roles) == 0 {
			return errors.New("-user and -roles are required for grant")
		}
		return rm.grant(ctx, username, roles)
	case "revoke":
		if username == "" {
			return errors.New("-user is required for revoke")
		}
		return rm.revoke(ctx, username, roles)
	case "seed":
		seedCfg := *cfg
		seedCfg.SeedEnabled = true
		n, err := startup.NewRoleSeeder(&seedCfg, rm.repo, rm.logger).SeedRoles(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(rm.out, "Seeded %d users from %s\n", n, seedCfg.SeedPath)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

func (rm *RoleManager) list(ctx context.Context) error {
	assignments, err := rm.repo.ListAssignments(ctx)
	if err != nil {
		return err
	}
	printAssignments(rm.out, assignments)
	return nil
}

// grant adds roles to the user's existing ones.
func (rm *RoleManager) grant(ctx context.Context, username string, roles []string) error {
	current, err := rm.repo.GetRoles(ctx, username)
	if err != nil {
		return err
	}
	if err := rm.repo.SetRoles(ctx, username, append(current, roles...)); err != nil {
		return err
	}
	return rm.show(ctx, username)
}

// revoke removes the given roles, or every role when none are given.
func (rm *RoleManager) revoke(ctx context.Context, username string, roles []string) error {
	if len(roles) == 0 {
		if err := rm.repo.DeleteUser(ctx, username); err != nil {
			return err
		}
		fmt.Fprintf(rm.out, "Removed all roles of %s\n", username)
		return nil
	}

	current, err := rm.repo.GetRoles(ctx, username)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(current))
	for _, r := range current {
		if !containsFold(roles, r) {
			kept = append(kept, r)
		}
	}
	if err := rm.repo.SetRoles(ctx, username, kept); err != nil {
		return err
	}
	return rm.show(ctx, username)
}

func (rm *RoleManager) show(ctx context.Context, username string) error {
	roles, err := rm.repo.GetRoles(ctx, username)
	if err != nil {
		return err
	}
	printAssignments(rm.out, []models.RoleAssignment{{User: username, Roles: roles}})
	return nil
}

func printAssignments(w io.Writer, assignments []models.RoleAssignment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLES")
	for _, a := range assignments {
		roles := strings.Join(a.Roles, ",")
		if roles == "" {
			roles = "(default)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", a.User, roles)
	}
	_ = tw.Flush()
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
