package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/punchamoorthee/invosafe/internal/api"
	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/authz"
	"github.com/punchamoorthee/invosafe/internal/config"
	"github.com/punchamoorthee/invosafe/internal/directory"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/migrations"
	"github.com/punchamoorthee/invosafe/internal/reconcile"
	"github.com/punchamoorthee/invosafe/internal/service"
	"github.com/punchamoorthee/invosafe/internal/store"
	"github.com/punchamoorthee/invosafe/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.Load,
			newStore,
			newDirectory,
			newIssuer,
			newKeyGenerator,
			authz.New,
			newInvoiceService,
			newCreditService,
			newAccountService,
			newAPIClientService,
			newExternalService,
			newHandler,
		),
		fx.Invoke(setupLogging, setupTelemetry, migrate, run),
	)
	app.Run()
}

func setupLogging(cfg *config.Config) error {
	return logger.Setup(cfg.LoggerConfig())
}

func setupTelemetry(lc fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := telemetry.Setup(context.Background(), cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return shutdown(ctx) }})
	return nil
}

func newStore(lc fx.Lifecycle, cfg *config.Config) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		s.Close()
		return nil
	}})
	return s, nil
}

func migrate(cfg *config.Config, s *store.Store) error {
	if !cfg.AutoMigrate {
		return nil
	}
	if err := migrations.Up(s.Db); err != nil {
		return err
	}
	log.Info().Msg("Database migrations applied")
	return nil
}

func newDirectory(lc fx.Lifecycle, cfg *config.Config) *directory.Client {
	rdb := directory.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb == nil {
		return directory.New(cfg.DirectoryBaseURL, directory.NopCache{}, cfg.DirectoryCacheTTL)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return rdb.Close() }})
	return directory.New(cfg.DirectoryBaseURL, directory.NewRedisCache(rdb), cfg.DirectoryCacheTTL)
}

func newIssuer(cfg *config.Config) *auth.Issuer {
	return auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
}

func newKeyGenerator(cfg *config.Config) (*auth.KeyGenerator, error) {
	return auth.NewKeyGenerator(cfg.NodeID)
}

func newInvoiceService(cfg *config.Config, s *store.Store) *service.InvoiceService {
	return service.NewInvoiceService(s, s, s, reconcile.Options{
		Concurrency: cfg.BulkConcurrency,
		RowDelay:    cfg.BulkRowDelay,
	})
}

func newCreditService(s *store.Store) *service.CreditService {
	return service.NewCreditService(s, s, s)
}

func newAccountService(s *store.Store, issuer *auth.Issuer) *service.AccountService {
	return service.NewAccountService(s, s, s, issuer)
}

func newAPIClientService(s *store.Store, keys *auth.KeyGenerator) *service.APIClientService {
	return service.NewAPIClientService(s, s, keys)
}

func newExternalService(s *store.Store, invoices *service.InvoiceService, credits *service.CreditService) *service.ExternalService {
	return service.NewExternalService(s, invoices, credits)
}

func newHandler(
	s *store.Store,
	invoices *service.InvoiceService,
	credits *service.CreditService,
	accounts *service.AccountService,
	clients *service.APIClientService,
	external *service.ExternalService,
	dir *directory.Client,
	issuer *auth.Issuer,
	authorizer *authz.Authorizer,
) *api.Handler {
	return api.NewHandler(api.Services{
		Invoices:   invoices,
		Credits:    credits,
		Accounts:   accounts,
		APIClients: clients,
		External:   external,
		Directory:  dir,
		DB:         s,
	}, issuer, authorizer)
}

func run(lc fx.Lifecycle, cfg *config.Config, h *api.Handler) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("Server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
