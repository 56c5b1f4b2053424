// Package web implements the HTTP service exposing the JSON API.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	fiberlogger "github.com/go-admin-template/go-admin-template/internal/logger/adapter/fiber"
	"github.com/go-admin-template/go-admin-template/internal/oidc"
	"github.com/go-admin-template/go-admin-template/internal/rbac"
	rbacadmin "github.com/go-admin-template/go-admin-template/internal/web/handler/admin/rbac"
	useradmin "github.com/go-admin-template/go-admin-template/internal/web/handler/admin/user"
	oidchandler "github.com/go-admin-template/go-admin-template/internal/web/handler/auth/oidc"
	"github.com/go-admin-template/go-admin-template/internal/web/handler/health"
	"github.com/go-admin-template/go-admin-template/internal/web/handler/login"
	"github.com/go-admin-template/go-admin-template/internal/web/handler/logout"
	"github.com/go-admin-template/go-admin-template/internal/web/handler/profile"
	"github.com/go-admin-template/go-admin-template/internal/web/handler/settings"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	rbacService  *rbac.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	// Wait interrupt or shutdown request through /shutdown
	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration. The flow may
// be nil when OIDC federation is disabled.
func New(cfg *config.Config, db *gorm.DB, flow *oidc.Flow) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "go-admin-template",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	// access logging through zerolog
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: health.Path,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	issuer := auth.NewTokenIssuer(cfg.Auth.JWT.Secret, cfg.Auth.JWT.ExpiryTime)
	rbacService := rbac.NewService(db)
	guard := auth.NewGuard(rbacService, issuer)

	// The registry's global settings can disable username/password login
	// once federation is configured.
	allowTraditional := true
	if flow != nil {
		allowTraditional = flow.Registry().AllowTraditionalLogin()
	}

	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		rbacService: rbacService,
	}
	service.alive.Store(true)

	// init handlers (they register their own routes with permission checks)
	if err := health.Handler.Init(app, cfg, db, &service.alive); err != nil {
		return nil, err
	}

	if err := login.Handler.Init(app, cfg, db, issuer, allowTraditional); err != nil {
		return nil, err
	}

	logout.Handler.Init(app, cfg)

	if err := oidchandler.Handler.Init(app, cfg, flow); err != nil {
		return nil, err
	}

	if err := profile.Handler.Init(app, cfg, db, guard, rbacService); err != nil {
		return nil, err
	}

	if err := useradmin.Handler.Init(app, cfg, db, guard); err != nil {
		return nil, err
	}

	if err := rbacadmin.Handler.Init(app, cfg, rbacService, guard); err != nil {
		return nil, err
	}

	if err := settings.Handler.Init(app, cfg, db, guard); err != nil {
		return nil, err
	}

	return service, nil
}
