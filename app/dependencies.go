package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/config"
	"github.com/upb/coffee-main-api/handlers"
	"github.com/upb/coffee-main-api/middleware"
	"github.com/upb/coffee-main-api/repositories"
	"github.com/upb/coffee-main-api/repositories/file"
	"github.com/upb/coffee-main-api/repositories/memory"
	"github.com/upb/coffee-main-api/repositories/postgres"
	"github.com/upb/coffee-main-api/services"
	"github.com/upb/coffee-main-api/services/audit"
	"github.com/upb/coffee-main-api/services/tokens"
)

// defaultAuditStopTimeout bounds the audit drain on Close when ctx has no deadline
const defaultAuditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil unless CREDENTIAL_STORE=postgres
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Credentials repositories.CredentialStore
	AuthEvents  repositories.AuthEventRepository

	// Services
	Tokens      *tokens.Codec
	Audit       *audit.AuditService // nil when AUDIT_ENABLED=false
	AuthService *services.AuthService

	// HTTP
	IdentityFilter *middleware.IdentityFilter
	Access         *middleware.Access
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	HealthHandler  *handlers.HealthHandler

	closed bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initRepositories(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.closeRepositories()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := deps.initHTTP(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize http layer: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("credential_store", cfg.Credentials.Store),
		zap.String("identity_source", cfg.Credentials.IdentitySource),
		zap.Bool("audit_enabled", cfg.Audit.Enabled))
	return deps, nil
}

// initRepositories selects the credential store and auth event repository
func (d *Dependencies) initRepositories(ctx context.Context, cfg *config.Config) error {
	switch cfg.Credentials.Store {
	case config.CredentialStorePostgres:
		return d.initDatabase(ctx, cfg)

	case config.CredentialStoreFile:
		store, err := file.Load(cfg.Credentials.File, d.Logger)
		if err != nil {
			return err
		}
		d.Credentials = store

	case config.CredentialStoreMemory:
		if cfg.Credentials.MemoryPasswordHash == "" && cfg.IsProduction() {
			d.Logger.Warn("in-memory credential store is using the built-in password hash")
		}
		d.Credentials = memory.NewDefaultCredentialStore(cfg.Credentials.MemoryPasswordHash)

	default:
		return services.WrapConfiguration(fmt.Sprintf("unknown credential store %q", cfg.Credentials.Store), nil)
	}

	d.AuthEvents = memory.NewAuthEventRepository(0, d.Logger)
	return nil
}

// initDatabase initializes the PostgreSQL connection and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Credentials.InitSchema {
		if err := factory.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.Logger.Info("database schema initialized")
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	repos := factory.NewRepositories()
	d.Credentials = repos.Credentials
	d.AuthEvents = repos.AuthEvents

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	codec, err := tokens.NewCodec(tokens.Config{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		return err
	}
	d.Tokens = codec

	// Interfaces stay nil when auditing is off so callers skip it
	var loginAuditor services.LoginAuditor
	if cfg.Audit.Enabled {
		d.Audit = audit.NewAuditService(d.AuthEvents, d.Logger, audit.Config{
			BufferSize:  cfg.Audit.BufferSize,
			WorkerCount: cfg.Audit.Workers,
		})
		if err := d.Audit.Start(); err != nil {
			return fmt.Errorf("failed to start audit service: %w", err)
		}
		loginAuditor = d.Audit
	}

	d.AuthService = services.NewAuthService(
		d.Credentials,
		codec,
		loginAuditor,
		cfg.Credentials.LookupTimeout,
		cfg.Credentials.HashCost,
		d.Logger,
	)
	return nil
}

func (d *Dependencies) initHTTP(cfg *config.Config) error {
	var tokenAuditor middleware.TokenAuditor
	var auditStatus handlers.AuditStatus
	if d.Audit != nil {
		tokenAuditor = d.Audit
		auditStatus = d.Audit
	}

	filter, err := middleware.NewIdentityFilter(d.Tokens, d.Credentials, tokenAuditor, middleware.IdentityFilterConfig{
		ResolveFromStore: cfg.Credentials.IdentitySource == config.IdentitySourceStore,
		LookupTimeout:    cfg.Credentials.LookupTimeout,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.IdentityFilter = filter
	d.Access = middleware.NewAccess(d.Logger)

	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}

	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(db, auditStatus, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies. The audit trail is drained
// before the database it writes to is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := defaultAuditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if err := d.closeRepositories(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (d *Dependencies) closeRepositories() error {
	if d.RepoFactory == nil {
		return nil
	}
	err := d.RepoFactory.Close()
	d.RepoFactory = nil
	if err == nil {
		d.Logger.Info("database connection closed")
	}
	return err
}
