// Package main provides the entry point for the makerspace dashboard service.
// It initializes all dependencies, sets up HTTP routes with middleware,
// and starts the server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/auth"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client/printfleet"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client/toolusage"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/dashboard"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/database/mysql"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/database/postgres"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/handlers"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/middleware"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/repository"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/scheduler"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/startup"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/telemetry"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/token"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

const version = "1.0.0"

// app holds the long-lived components built at startup.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	redisClient *redis.Client
	store       cache.Store
	memory      *cache.MemoryStore
	loader      *cache.Loader

	pfBroker   client.SessionBroker
	sumsBroker client.SessionBroker
	dashboard  dashboard.Service

	roles  auth.RoleDirectory
	db     handlers.DatabaseChecker
	gate   *auth.Gate
	admin  auth.AdminService
	closer []func()
}

func main() {
	// Load .env.local only outside deployed environments.
	env := os.Getenv("ENVIRONMENT_ENV")
	if env == "" || env == string(config.Local) {
		if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env.local file: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(&cfg.Logging)
	log.Info("Starting makerspace dashboard service")
	log.WithFields(logrus.Fields{
		"version":     version,
		"port":        cfg.Server.Port,
		"host":        cfg.Server.Host,
		"tls":         cfg.IsTLSEnabled(),
		"environment": cfg.Environment.Environment,
		"cache":       cfg.Cache.Backend,
		"roles":       cfg.Roles.Backend,
	}).Info("Service configuration loaded")

	a, err := initializeServices(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize services")
	}
	defer a.close()

	sched := scheduler.NewService(&cfg.Scheduler, schedulerOptions(a)...)
	if err := sched.Start(); err != nil {
		log.WithError(err).Error("Failed to start scheduler")
	}

	server := setupServer(a)
	runServer(server, cfg, log)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("Scheduled jobs did not finish before shutdown")
	}
}

func initializeServices(cfg *config.Config, log *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = telemetry.NewMetrics(a.registry)

	if err := a.initCache(); err != nil {
		return nil, err
	}

	urls := cfg.GetServiceURLs()
	pf := printfleet.NewClient(
		urls.PrintFleetBaseURL, cfg.PrintFleet.Username, cfg.PrintFleet.Password,
		cfg.PrintFleet.Timeout, log, a.metrics,
	)
	sums := toolusage.NewClient(
		urls.ToolUsageBaseURL, cfg.ToolUsage.OrgKey, cfg.ToolUsage.OrgID,
		cfg.ToolUsage.Timeout, log, a.metrics,
	)
	a.pfBroker = client.NewSessionBroker(printfleet.System, pf, log, a.metrics)
	a.sumsBroker = client.NewSessionBroker(toolusage.System, sums, log, a.metrics)

	if !cfg.IsPrintFleetConfigured() {
		log.Warn("Print fleet account is not configured, print metrics will fail")
	}
	if !cfg.IsToolUsageConfigured() {
		log.Warn("Tool usage organization is not configured, usage metrics will fail")
	}

	hours, err := metrics.NewHoursPolicy(cfg.Policy.OperatingHours)
	if err != nil {
		return nil, fmt.Errorf("invalid operating hours: %w", err)
	}

	a.dashboard = dashboard.NewService(pf, sums, a.loader, dashboard.Options{
		Metrics:  cfg.Metrics,
		Policy:   cfg.Policy,
		Location: cfg.Location(),
		Hours:    hours,
	}, log)

	if err := a.initRoles(); err != nil {
		return nil, err
	}

	var validator auth.TicketValidator
	if cfg.CAS.Bypass {
		log.WithField("user", cfg.CAS.BypassUser).Warn("SSO bypass is enabled, every ticket signs in the test user")
		validator = auth.BypassValidator{User: cfg.CAS.BypassUser}
	} else {
		validator = auth.NewCASValidator(urls.CASBaseURL, cfg.CAS.Timeout, log, a.metrics)
	}

	signer := token.NewSessionSigner(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.MaxAge, nil)
	a.gate = auth.NewGate(
		validator,
		signer,
		a.roles,
		auth.NewCookiePolicy(&cfg.Session, cfg.Environment.Environment),
		auth.GateOptions{
			Rules:            cfg.Policy.ProtectedRoutes,
			CASBaseURL:       urls.CASBaseURL,
			ServiceBaseURL:   cfg.CAS.ServiceBaseURL,
			UnauthorizedPath: cfg.CAS.UnauthorizedPath,
		},
		log,
		a.metrics,
	)

	a.admin = auth.NewAdminService(a.store, cfg.Cache.TTL, a.roles, log, a.pfBroker, a.sumsBroker)

	return a, nil
}

// initCache picks the response cache backend. "auto" prefers Redis and falls
// back to memory when Redis is unreachable.
func (a *app) initCache() error {
	cfg, log := a.cfg, a.log

	if cfg.Cache.Backend != config.CacheBackendMemory {
		rdb, err := cache.NewRedisClient(&cfg.Redis, log)
		switch {
		case err == nil:
			log.Info("Successfully connected to Redis cache")
			a.redisClient = rdb
			a.store = cache.NewRedisStore(rdb, cfg.Cache.KeyPrefix, log)
		case cfg.Cache.Backend == config.CacheBackendRedis:
			return fmt.Errorf("redis cache backend unavailable: %w", err)
		default:
			log.WithError(err).Warn("Failed to connect to Redis, falling back to in-memory cache")
		}
	}

	if a.store == nil {
		// The scheduler sweeps expired entries when it runs.
		interval := cfg.Cache.CleanupInterval
		if cfg.Scheduler.Enabled {
			interval = 0
		}
		a.memory = cache.NewMemoryStore(cfg.Cache.MaxEntries, interval, log)
		a.store = a.memory
	}
	a.closer = append(a.closer, func() {
		if err := a.store.Close(); err != nil {
			log.WithError(err).Error("Failed to close cache store")
		}
	})

	a.loader = cache.NewLoader(a.store, cfg.Cache.TTL, log, a.metrics)
	return nil
}

// initRoles builds the role directory. The policy file always backs the
// database so a store outage never locks users out.
func (a *app) initRoles() error {
	cfg, log := a.cfg, a.log
	static := auth.NewStaticRoleDirectory(cfg.Policy.Roles)

	var repo repository.RoleRepository
	switch cfg.Roles.Backend {
	case config.RolesBackendStatic:
		a.roles = static
		return nil
	case config.RolesBackendPostgres:
		mgr := postgres.NewManager(cfg, log)
		a.closer = append(a.closer, mgr.Close)
		a.db = mgr
		repo = repository.NewPostgresRoleRepository(mgr.Pool)
	case config.RolesBackendMySQL:
		mgr := mysql.NewManager(cfg, log)
		a.closer = append(a.closer, func() {
			if err := mgr.Close(); err != nil {
				log.WithError(err).Error("Failed to close MySQL connection")
			}
		})
		a.db = mgr
		repo = repository.NewMySQLRoleRepository(mgr.DB)
	default:
		return fmt.Errorf("unknown role backend %q", cfg.Roles.Backend)
	}

	if a.db.IsAvailable() {
		seeder := startup.NewRoleSeeder(&cfg.Roles, repo, log)
		if _, err := seeder.SeedRoles(context.Background()); err != nil {
			log.WithError(err).Error("Failed to seed role assignments")
		}
	} else {
		log.WithField("backend", cfg.Roles.Backend).Warn("Role database unavailable, using policy roles until it recovers")
	}

	loader := cache.NewLoader(a.store, cfg.Roles.CacheTTL, log, a.metrics)
	a.roles = repository.NewRoleDirectory(repo, static, loader, log)
	return nil
}

func (a *app) close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	a.log.Info("Connections closed")
}

func schedulerOptions(a *app) []scheduler.Option {
	opts := []scheduler.Option{
		scheduler.WithLogger(a.log),
		scheduler.WithLocation(a.cfg.Location()),
		scheduler.WithJobTimeout(a.cfg.Server.WriteTimeout),
	}
	if a.cfg.IsToolUsageConfigured() {
		opts = append(opts, scheduler.WithWarmer(a.dashboard, a.sumsBroker))
	}
	if a.memory != nil {
		opts = append(opts, scheduler.WithSweeper(a.memory))
	}
	return opts
}

func setupServer(a *app) *http.Server {
	cfg, log := a.cfg, a.log

	metricsHandler := handlers.NewMetricsHandler(a.dashboard, cfg.Metrics.TrendLength, log)
	authHandler := handlers.NewAuthHandler(a.gate, log)
	pageHandler := handlers.NewPageHandler(cfg.Policy.Registry, log)
	adminHandler := handlers.NewAdminHandler(a.admin, log)

	healthHandler := handlers.NewHealthHandler(cfg, a.store, a.db, log, a.metrics, version)

	stack := middleware.NewStack(cfg, a.redisClient, log, a.metrics)

	router := mux.NewRouter()
	router.Use(
		stack.RequestLogger,
		stack.Recovery,
		stack.SecurityHeaders,
		stack.CORS,
		stack.RateLimit,
		stack.AuthGate(a.gate),
	)

	healthHandler.RegisterRoutes(router, a.registry)

	api := router.PathPrefix("/api/metrics").Subrouter()
	pfRoutes := api.NewRoute().Subrouter()
	pfRoutes.Use(stack.UpstreamCredential(a.pfBroker, constants.HeaderPrinterSession, true))
	metricsHandler.RegisterPrintFleetRoutes(pfRoutes)

	sumsRoutes := api.NewRoute().Subrouter()
	sumsRoutes.Use(stack.UpstreamCredential(a.sumsBroker, constants.HeaderSUMSToken, false))
	metricsHandler.RegisterToolUsageRoutes(sumsRoutes)

	authHandler.RegisterRoutes(router.PathPrefix("/api/auth").Subrouter())
	adminHandler.RegisterRoutes(router.PathPrefix("/admin").Subrouter())
	pageHandler.RegisterRoutes(router)

	handler := gorillahandlers.ProxyHeaders(router)
	handler = gorillahandlers.CompressHandler(handler)

	return &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func runServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	go startServer(server, cfg, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	} else {
		log.Info("Server exited gracefully")
	}
}

func startServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	log.WithFields(logrus.Fields{
		"addr": server.Addr,
		"tls":  cfg.IsTLSEnabled(),
	}).Info("Starting HTTP server")

	var err error
	if cfg.IsTLSEnabled() {
		err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Failed to start server")
	}
}
