// Package daemon assembles the application: database, session storage,
// OIDC federation and the web service.
package daemon

import (
	"fmt"
	"path/filepath"

	sessionmemory "github.com/gofiber/storage/memory"
	sessionmysql "github.com/gofiber/storage/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/dsn"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/oidc"
	"github.com/go-admin-template/go-admin-template/internal/web"
	"github.com/go-admin-template/go-admin-template/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	port := d.cfg.Webserver.Port
	if port == 0 {
		port = 8080
	}

	return d.webService.Start(fmt.Sprintf(":%d", port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.UserPermission{},
		&models.Setting{},
	); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	if err = seed(cfg, db); err != nil {
		return nil, errors.Wrap(err, "failed to seed database")
	}

	initSessionStore(cfg)

	flow, err := buildFlow(cfg, db)
	if err != nil {
		return nil, err
	}

	webService, err := web.New(cfg, db, flow)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build web service")
	}

	return &Daemon{
		cfg:        cfg,
		webService: webService,
	}, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "sqlite":
		dialector = gormsqlite.Open(dsn.Create(cfg))
	case "mysql":
		dialector = gormmysql.Open(dsn.Create(cfg))
	default:
		return nil, errors.Errorf("unsupported database engine: %q", cfg.DB.GormEngine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	return db, nil
}

// initSessionStore picks the session backend matching the database engine.
// The sqlite engine keeps sessions in process memory.
func initSessionStore(cfg *config.Config) {
	if cfg.DB.GormEngine == "mysql" {
		session.Init(sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		}))

		return
	}

	session.Init(sessionmemory.New())
}

// buildFlow loads the provider registry and assembles the federated login
// flow. Returns nil when OIDC federation is disabled.
func buildFlow(cfg *config.Config, db *gorm.DB) (*oidc.Flow, error) {
	if !cfg.Auth.OIDC.Enabled {
		return nil, nil
	}

	registryPath := cfg.Auth.OIDC.ProvidersFile
	if registryPath == "" {
		registryPath = "oidc_providers.yaml"
	}

	if !filepath.IsAbs(registryPath) {
		registryPath = filepath.Join(cfg.Root, registryPath)
	}

	registry, err := oidc.LoadRegistry(registryPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load OIDC provider registry")
	}

	log.Info().
		Int("providers", len(registry.ListEnabled())).
		Str("registry", registryPath).
		Msg("OIDC federation enabled")

	issuer := auth.NewTokenIssuer(cfg.Auth.JWT.Secret, cfg.Auth.JWT.ExpiryTime)

	return oidc.NewFlow(
		registry,
		oidc.NewCache(cfg.Root),
		oidc.NewProvisioner(db),
		issuer,
	), nil
}
