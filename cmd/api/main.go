package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/config"
	"github.com/Badshah-h/v0-production-grade-review/internal/httpapi"
	"github.com/Badshah-h/v0-production-grade-review/internal/migrate"
	"github.com/Badshah-h/v0-production-grade-review/internal/obs"
	"github.com/Badshah-h/v0-production-grade-review/internal/store/memory"
	"github.com/Badshah-h/v0-production-grade-review/internal/store/pg"
	"github.com/Badshah-h/v0-production-grade-review/internal/store/redisstore"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := obs.ConfigureLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("configure logger")
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, deps, closers, err := openStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open stores")
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, auth.WithCodecIssuer(cfg.Auth.Issuer))
	if err != nil {
		log.WithError(err).Fatal("token codec")
	}
	var hasher auth.PasswordHasher = auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if cfg.Auth.Hasher == config.HasherArgon2id {
		hasher = auth.Argon2Hasher{}
	}
	svc, err := auth.NewService(store, codec,
		auth.WithHasher(hasher),
		auth.WithStoreTimeout(cfg.Auth.StoreTimeout),
		auth.WithLogger(log.WithField("component", "auth")),
	)
	if err != nil {
		log.WithError(err).Fatal("auth service")
	}

	janitor, err := auth.NewJanitor(svc, cfg.Auth.SweepSchedule, log.WithField("component", "janitor"))
	if err != nil {
		log.WithError(err).Fatal("session janitor")
	}
	janitor.Start()

	probe := httpapi.ReadyProbe{Deps: deps, Timeout: 2 * time.Second}
	api := httpapi.New(svc, probe, version,
		httpapi.WithCORSOrigins(cfg.Server.CORSOrigins...),
		httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		httpapi.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		httpapi.WithSecureCookies(cfg.Server.SecureCookies),
	)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	grpcServer := grpc.NewServer()
	httpapi.NewGRPCServer(probe, version).Register(grpcServer)
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.WithError(err).Fatal("grpc listen")
	}

	errc := make(chan error, 2)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "version": version}).Info("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		log.WithField("addr", cfg.Server.GRPCAddr).Info("grpc server starting")
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errc:
		log.WithError(err).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	grpcServer.GracefulStop()
	if err := janitor.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("janitor stop")
	}
	log.Info("stopped")
}

// openStores builds the credential store selected by cfg, optionally fronted
// by a Redis session store, and returns the dependencies readiness must ping.
func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (auth.Store, map[string]httpapi.Pinger, []func() error, error) {
	deps := map[string]httpapi.Pinger{}
	var closers []func() error

	var store auth.Store
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := memory.New()
		deps["store"] = mem
		store = mem
		log.Warn("using in-memory store; data is lost on restart")
	default:
		pgs, err := pg.Open(cfg.Store.DatabaseURL, pg.PoolConfig{
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, pgs.Close)
		if cfg.Store.MigrateOnStart {
			applied, err := migrate.NewManager(pgs.DB(), migrate.WithLogger(log)).Up(ctx)
			if err != nil {
				_ = pgs.Close()
				return nil, nil, nil, err
			}
			log.WithField("applied", applied).Info("migrations up to date")
		}
		deps["postgres"] = pgs
		store = pgs
	}

	if cfg.Store.SessionDriver == config.SessionDriverRedis {
		rs, err := redisstore.Open(ctx, redisstore.Config{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, nil, err
		}
		closers = append(closers, rs.Close)
		deps["redis"] = rs
		store = auth.WithSessionStore(store, rs)
	}
	return store, deps, closers, nil
}
