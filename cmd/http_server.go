package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/averhoeven/roster-management/internal"
	"github.com/averhoeven/roster-management/internal/auth"
	authPostgres "github.com/averhoeven/roster-management/internal/auth/postgres"
	"github.com/averhoeven/roster-management/internal/core/events"
	"github.com/averhoeven/roster-management/internal/department"
	departmentPostgres "github.com/averhoeven/roster-management/internal/department/postgres"
	"github.com/averhoeven/roster-management/internal/identifier"
	identifierPostgres "github.com/averhoeven/roster-management/internal/identifier/postgres"
	"github.com/averhoeven/roster-management/internal/platform"
	"github.com/averhoeven/roster-management/internal/promotion"
	promotionPostgres "github.com/averhoeven/roster-management/internal/promotion/postgres"
	"github.com/averhoeven/roster-management/internal/ranklimit"
	ranklimitPostgres "github.com/averhoeven/roster-management/internal/ranklimit/postgres"
	"github.com/averhoeven/roster-management/internal/reconcile"
	reconcilePostgres "github.com/averhoeven/roster-management/internal/reconcile/postgres"
	"github.com/averhoeven/roster-management/internal/roster"
	rosterPostgres "github.com/averhoeven/roster-management/internal/roster/postgres"
	"github.com/averhoeven/roster-management/internal/syncqueue"
	"github.com/averhoeven/roster-management/internal/transport/middleware"
	"github.com/averhoeven/roster-management/internal/transport/rest"
	"github.com/averhoeven/roster-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Router *chi.Mux
	Logger *slog.Logger

	AuthMiddleware    *auth.Middleware
	Authorizer        *auth.Authorizer
	DepartmentHandler *department.Handler
	RosterHandler     *roster.Handler
	PromotionHandler  *promotion.Handler
	ReconcileHandler  *reconcile.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.Redis.Close(); err != nil {
			slog.Error("Redis close error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	// CORS runs outermost so the configured origin list covers every route
	deps.Router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.Redis,
		deps.AuthMiddleware,
		deps.Authorizer,
		deps.DepartmentHandler,
		deps.RosterHandler,
		deps.PromotionHandler,
		deps.ReconcileHandler,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := openGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to open orm layer: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// Authentication: token verification for actors, key lookup for relays,
	// rank permissions for the route guards.
	credentialRepo := authPostgres.NewCredentialRepository(gormDB)
	actorRepo := authPostgres.NewActorRepository(gormDB)
	credentialService := auth.NewService(credentialRepo, config.Security.BCryptCost, log)
	verifier := auth.NewHMACVerifier(config.Security.ActorTokenSecret)
	authMiddleware := auth.NewMiddleware(verifier, credentialService)
	authorizer := auth.NewAuthorizer(actorRepo)

	// The platform client is shared between the request-time synchronizer
	// and the webhook reconciler.
	platformClient := platform.NewClient(platform.Config{
		BaseURL:     config.Platform.BaseURL,
		BotToken:    config.Platform.BotToken,
		CallTimeout: config.Platform.CallTimeout,
		MaxRetries:  config.Platform.MaxRetries,
	}, log)
	queue := syncqueue.NewQueue(redisClient, log)
	synchronizer := platform.NewSynchronizer(platformClient, queue, log)

	eventBus := events.NewEventBus(log)
	registerAuditSubscribers(eventBus, log)

	departmentRepo := departmentPostgres.NewDepartmentRepository(gormDB)
	departmentService := department.NewService(departmentRepo, log)

	identifierRepo := identifierPostgres.NewIdentifierRepository(gormDB)
	identifierService := identifier.NewService(identifierRepo, log)

	departmentHandler := department.NewHandler(departmentService, identifierService)

	rosterRepo := rosterPostgres.NewMemberRepository(gormDB)
	rosterService := roster.NewService(rosterRepo, identifierService, synchronizer, eventBus, log)
	rosterHandler := roster.NewHandler(rosterService)

	limitRepo := ranklimitPostgres.NewRankLimitRepository(gormDB)
	limitService := ranklimit.NewService(limitRepo, log)

	promotionRepo := promotionPostgres.NewPromotionRepository(gormDB)
	promotionService := promotion.NewService(promotionRepo, limitService, synchronizer, eventBus, log)
	promotionHandler := promotion.NewHandler(promotionService)

	reconcileRepo := reconcilePostgres.NewReconcileRepository(gormDB)
	reconcileService := reconcile.NewService(reconcileRepo, platformClient, eventBus, log)
	reconcileHandler := reconcile.NewHandler(reconcileService)

	return &Dependencies{
		Config: config,
		Logger: log,
		DB:     db,
		Redis:  redisClient,
		Router: chi.NewRouter(),

		AuthMiddleware:    authMiddleware,
		Authorizer:        authorizer,
		DepartmentHandler: departmentHandler,
		RosterHandler:     rosterHandler,
		PromotionHandler:  promotionHandler,
		ReconcileHandler:  reconcileHandler,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// openGorm layers the ORM over the already-configured connection pool so
// the repositories and the health check share one pool.
func openGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
}
