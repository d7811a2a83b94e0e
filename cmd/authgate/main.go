package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	core "github.com/dropDatabas3/authgate/internal/authorize"
	"github.com/dropDatabas3/authgate/internal/cache"
	memcache "github.com/dropDatabas3/authgate/internal/cache/memory"
	redcache "github.com/dropDatabas3/authgate/internal/cache/redis"
	"github.com/dropDatabas3/authgate/internal/config"
	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	cpfs "github.com/dropDatabas3/authgate/internal/controlplane/fs"
	cppg "github.com/dropDatabas3/authgate/internal/controlplane/pg"
	httpserver "github.com/dropDatabas3/authgate/internal/http"
	admctrl "github.com/dropDatabas3/authgate/internal/http/controllers/admin"
	authzctrl "github.com/dropDatabas3/authgate/internal/http/controllers/authorize"
	cbctrl "github.com/dropDatabas3/authgate/internal/http/controllers/callback"
	healthctrl "github.com/dropDatabas3/authgate/internal/http/controllers/health"
	provctrl "github.com/dropDatabas3/authgate/internal/http/controllers/providers"
	"github.com/dropDatabas3/authgate/internal/http/router"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/rate"
	"github.com/dropDatabas3/authgate/internal/statestore"
	ssmemory "github.com/dropDatabas3/authgate/internal/statestore/memory"
	ssredis "github.com/dropDatabas3/authgate/internal/statestore/redis"
)

var configPath string

func main() {
	// .env es opcional; las variables reales del entorno pisan al archivo.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "authgate",
		Short:         "Resolución multi-tenant de authorization requests OAuth2",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "ruta al config.yaml (opcional)")

	root.AddCommand(serveCmd(), migrateCmd())
	root.RunE = serveCmd().RunE // sin subcomando, servir

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			defer func() { _ = logger.Sync() }()
			log := logger.Named("main")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// ── Control plane ────────────────────────────────────────
			var provider cp.ConfigProvider
			switch cfg.ControlPlane.Driver {
			case "postgres":
				store, err := cppg.New(ctx, cfg.ControlPlane.DSN, cppg.Config{
					QueryTimeout: cfg.Authorize.LookupTimeout,
				})
				if err != nil {
					return fmt.Errorf("conectar postgres: %w", err)
				}
				defer store.Close()
				provider = store
				log.Info("control plane postgres")
			default:
				provider = cpfs.New(cfg.ControlPlane.FSRoot)
				log.Info("control plane fs", logger.String("root", cfg.ControlPlane.FSRoot))
			}

			// ── Cache de registrations ───────────────────────────────
			var regCache cache.Cache
			switch cfg.Cache.Kind {
			case "redis":
				regCache = redcache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
				log.Info("cache redis", logger.String("addr", cfg.Cache.Redis.Addr))
			case "off":
				regCache = nil
			default:
				regCache = memcache.New(cfg.Cache.TTL, "reg")
			}

			// ── State store ──────────────────────────────────────────
			var states statestore.Store
			if cfg.StateStore.Kind == "redis" {
				rs := ssredis.New(cfg.StateStore.Redis.Addr, cfg.StateStore.Redis.DB)
				if err := rs.Ping(ctx); err != nil {
					return fmt.Errorf("conectar redis (state store): %w", err)
				}
				states = rs
				log.Info("state store redis", logger.String("addr", cfg.StateStore.Redis.Addr))
			} else {
				states = ssmemory.New(cfg.Authorize.StateTTL)
			}

			// ── Rate limiting ────────────────────────────────────────
			var limiter rate.Limiter
			if cfg.Rate.Enabled {
				if cfg.Rate.Backend == "redis" {
					client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
					limiter = rate.NewRedisLimiter(client, "", cfg.Rate.MaxRequests, cfg.Rate.Window)
				} else {
					limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window)
				}
			}

			// ── Core de autorización ─────────────────────────────────
			matcher, err := core.NewMatcher(cfg.Authorize.Pattern)
			if err != nil {
				return err
			}
			registrations := core.NewRegistrationResolver(core.RegistrationResolverConfig{
				Store:         provider,
				Cache:         regCache,
				CacheTTL:      cfg.Cache.TTL,
				LookupTimeout: cfg.Authorize.LookupTimeout,
			})
			builder := core.NewRedirectURIBuilder(core.RedirectURIBuilderConfig{
				DefaultBaseURL:        cfg.Server.BaseURL,
				TrustForwarded:        cfg.Proxy.TrustForwarded,
				AllowedForwardedHosts: cfg.Proxy.AllowedForwardedHosts,
			})

			var opts []core.Option
			if cfg.Authorize.StateMode == "signed" {
				codec, err := core.NewSignedStateCodec([]byte(cfg.Authorize.StateSigningKey), cfg.Authorize.StateTTL)
				if err != nil {
					return err
				}
				opts = append(opts, core.WithStateGenerator(codec))
			}
			resolver := core.NewResolver(matcher, registrations, builder, opts...)

			// ── HTTP ─────────────────────────────────────────────────
			handler := router.New(router.Deps{
				Authorize: authzctrl.NewController(authzctrl.Deps{
					Matcher:  matcher,
					Resolver: resolver,
					Builder:  builder,
					States:   states,
					StateTTL: cfg.Authorize.StateTTL,
				}),
				Callback:  cbctrl.NewController(states),
				Providers: provctrl.NewController(provider, cfg.Authorize.Pattern),
				Admin: admctrl.NewRegistrationsController(admctrl.Deps{
					CP:       provider,
					OnChange: registrations.Invalidate,
				}),
				Health:  healthctrl.NewController(provider),
				Limiter: limiter,
			})

			srv := httpserver.NewServer(cfg.Server.Addr, handler)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			log.Info("bye")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL del control plane postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.ControlPlane.Driver != "postgres" {
				return fmt.Errorf("migrate solo aplica con control_plane.driver=postgres")
			}

			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			store, err := cppg.New(ctx, cfg.ControlPlane.DSN, cppg.Config{})
			if err != nil {
				return fmt.Errorf("conectar postgres: %w", err)
			}
			defer store.Close()

			return cppg.Migrate(ctx, store.Pool())
		},
	}
}
