package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/cache"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/config"
	gwhttp "github.com/Tepexicuapan3/SIRES-sub001/internal/http"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/handlers"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/metrics"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/observability/logger"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/rate"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/session"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/sessionstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "ruta del archivo de configuración")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("cargar configuración: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: "sires-auth",
	})
	defer func() { _ = logger.Sync() }()

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("registrar métricas: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store de session records.
	var storeCfg sessionstore.Config
	storeCfg.Driver = cfg.Store.Driver
	storeCfg.Redis.Addr = cfg.Store.Redis.Addr
	storeCfg.Redis.Password = cfg.Store.Redis.Password
	storeCfg.Redis.DB = cfg.Store.Redis.DB
	storeCfg.Redis.Prefix = cfg.Store.Redis.Prefix
	storeCfg.Postgres.DSN = cfg.Store.Postgres.DSN
	records, err := sessionstore.New(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() { _ = records.Close() }()
	logger.L().Info("session store ready", logger.Driver(cfg.Store.Driver))
	go purgeLoop(ctx, records)

	// Cache para lockout y rate limiting.
	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = cacheClient.Close() }()

	lockout := session.NewLockout(cacheClient, session.LockoutConfig{
		Threshold:  cfg.Lockout.Threshold,
		BaseWindow: config.Dur(cfg.Lockout.BaseWindow),
		Multiplier: cfg.Lockout.Multiplier,
		MaxWindow:  config.Dur(cfg.Lockout.MaxWindow),
	})

	var loginLimiter, forgotLimiter rate.Limiter
	if cfg.Rate.Enabled {
		loginLimiter = rate.NewFixedWindow(cacheClient, "rl:login",
			cfg.Rate.Login.Limit, config.Dur(cfg.Rate.Login.Window))
		forgotLimiter = rate.NewFixedWindow(cacheClient, "rl:forgot",
			cfg.Rate.Forgot.Limit, config.Dur(cfg.Rate.Forgot.Window))
	}

	gateway := gwhttp.NewGateway(gwhttp.GatewayDeps{
		API:     identity.NewAPI(cfg.Identity.BaseURL, config.Dur(cfg.Identity.Timeout)),
		Records: records,
		Lockout: lockout,
		Cookie: gwhttp.CookieConfig{
			Name:     cfg.Session.CookieName,
			Domain:   cfg.Session.Domain,
			SameSite: cfg.Session.SameSite,
			Secure:   cfg.Session.Secure,
			TTL:      config.Dur(cfg.Session.TTL),
		},
		RefreshWithin: config.Dur(cfg.Session.RefreshWithin),
	})

	router := handlers.NewRouter(handlers.RouterDeps{
		Gateway:            gateway,
		Records:            records,
		Lockout:            lockout,
		LoginLimiter:       loginLimiter,
		ForgotLimiter:      forgotLimiter,
		AdminAPIKey:        cfg.Admin.APIKey,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	return gwhttp.Serve(ctx, cfg.Server.Addr, router)
}

// purgeLoop barre records vencidos en stores sin TTL nativo (Postgres).
func purgeLoop(ctx context.Context, records sessionstore.Store) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := records.PurgeExpired(ctx)
			if err != nil {
				logger.L().Warn("session purge failed", logger.Err(err))
				continue
			}
			if n > 0 {
				logger.L().Info("purged expired sessions", logger.Count(int(n)))
			}
		}
	}
}
