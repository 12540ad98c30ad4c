package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/vehicle-scheduler/internal/application"
	"github.com/example/vehicle-scheduler/internal/config"
	httptransport "github.com/example/vehicle-scheduler/internal/http"
	"github.com/example/vehicle-scheduler/internal/logging"
	"github.com/example/vehicle-scheduler/internal/metrics"
	"github.com/example/vehicle-scheduler/internal/persistence/sqldb"
	"github.com/example/vehicle-scheduler/internal/scheduler"
	"github.com/example/vehicle-scheduler/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stdout, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scheduler terminated", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	dialect, err := sqldb.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}

	pool, err := sqldb.Open(ctx, sqldb.Config{Dialect: dialect, DSN: cfg.DBDSN}, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	notifier, closeNotifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := newApp(cfg, pool, notifier, registry, logger)
	if err := a.start(ctx); err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Event streams hold their connection open; closing the calendar ends them.
	server.RegisterOnShutdown(a.calendar.Stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("scheduler API listening", "addr", server.Addr, "db_driver", dialect, "timezone", cfg.Location.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// app holds the wired services and the HTTP handler serving them.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	reservations *store.Adapter
	users        *application.UserService
	calendar     *application.LiveCalendar
	limiter      *httptransport.RateLimiter
	handler      http.Handler

	cancel context.CancelFunc
	done   <-chan struct{}
}

func newApp(cfg config.Config, pool *sqldb.Pool, notifier store.Notifier, registry *prometheus.Registry, logger *slog.Logger) *app {
	collector := metrics.NewCollector(registry)
	now := time.Now
	idGenerator := uuid.NewString

	userRepo := sqldb.NewUserRepository(pool)
	reservations := store.NewAdapter(sqldb.NewReservationRepository(pool), notifier, collector, logger)

	hasher := application.NewPasswordHasher(application.DefaultArgon2idParams)
	userService := application.NewUserServiceWithLogger(
		newUserRepositoryAdapter(userRepo),
		newAccountRepositoryAdapter(userRepo),
		hasher.Hash,
		idGenerator,
		now,
		logger,
	)
	authService := application.NewAuthServiceWithLogger(
		newCredentialStoreAdapter(userRepo),
		userService,
		newSessionRepositoryAdapter(sqldb.NewSessionRepository(pool)),
		application.AuthConfig{
			Digester:    application.NewTokenDigester([]byte(cfg.SessionSecret)),
			Limiter:     application.NewLoginLimiter(cfg.LoginRateLimit, now),
			Verify:      hasher.Verify,
			IDGenerator: idGenerator,
			Now:         now,
			SessionTTL:  cfg.SessionTTL,
		},
		logger,
	)
	detector := scheduler.NewDetector(reservations, collector, logger)
	bookings := application.NewBookingWorkflowWithLogger(reservations, detector, userService, collector, cfg.Location, now, logger)
	battery := application.NewBatteryService(newBatteryRepositoryAdapter(sqldb.NewSettingsRepository(pool)), now, logger)
	liveCalendar := application.NewLiveCalendar(reservations, cfg.Location, now, logger)
	limiter := httptransport.NewRateLimiter(httptransport.PerMinute(cfg.RateLimit), logger)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Logger:         logger,
		Sessions:       authService,
		RateLimiter:    limiter,
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
		HealthCheck:    pool.Ping,
		Auth:           httptransport.NewAuthHandler(authService, logger),
		Reservations:   httptransport.NewReservationHandler(bookings, liveCalendar, logger),
		Calendar:       httptransport.NewCalendarHandler(liveCalendar, now, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		Battery:        httptransport.NewBatteryHandler(battery, logger),
	})

	return &app{
		cfg:          cfg,
		logger:       logger,
		reservations: reservations,
		users:        userService,
		calendar:     liveCalendar,
		limiter:      limiter,
		handler:      handler,
	}
}

// start seeds the bootstrap administrator, starts the change listener and
// loads the first calendar snapshot.
func (a *app) start(ctx context.Context) error {
	if a.cfg.BootstrapAdminEmail != "" {
		admin, created, err := a.users.BootstrapAdmin(ctx, a.cfg.BootstrapAdminEmail, a.cfg.BootstrapAdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap administrator: %w", err)
		}
		a.logger.Info("bootstrap administrator ready", "user_id", admin.ID, "created", created)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done, err := a.reservations.Start(runCtx)
	if err != nil {
		cancel()
		return err
	}
	a.cancel = cancel
	a.done = done

	if err := a.calendar.Start(runCtx); err != nil {
		a.close()
		return fmt.Errorf("start live calendar: %w", err)
	}
	return nil
}

func (a *app) close() {
	a.calendar.Stop()
	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
	}
	a.reservations.Close()
	a.limiter.Stop()
}

// newNotifier selects Redis pub/sub when an address is configured and the
// in-process notifier otherwise.
func newNotifier(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Notifier, func(), error) {
	if cfg.RedisAddr == "" {
		return store.NewLocalNotifier(), func() {}, nil
	}

	notifier, err := store.NewRedisNotifier(ctx, store.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Channel:  cfg.RedisChannel,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect change notifier: %w", err)
	}
	logger.Info("using redis change notifications", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	return notifier, func() {
		if err := notifier.Close(); err != nil {
			logger.Error("failed to close redis notifier", "error", err)
		}
	}, nil
}
