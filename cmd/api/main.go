package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/schema"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "events-api",
		Short:         "HTTP API for events, registrations, likes and comments",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Create missing tables and serve the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create missing tables and indexes, then exit",
			RunE:  runMigrate,
		},
	)
	return root
}

// runtime is what both commands need before doing their own work.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func bootstrap(ctx context.Context) (*runtime, error) {
	// config.Load reads .env first so the LOG_ and DATABASE_ loaders see it too
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return nil, err
	}
	dbCfg, err := database.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		lg.Sugar().Errorw("db connect failed", "driver", dbCfg.Driver, "err", err)
		return nil, err
	}
	if err := schema.Ensure(ctx, db); err != nil {
		db.Close()
		lg.Sugar().Errorw("schema setup failed", "err", err)
		return nil, err
	}
	return &runtime{cfg: cfg, logger: lg, db: db}, nil
}

func (rt *runtime) close() {
	_ = rt.db.Close()
	_ = rt.logger.Sync()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()
	rt.logger.Sugar().Info("schema is up to date")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	sugar := rt.logger.Sugar()
	sugar.Infow("starting service-events-go", "addr", rt.cfg.HTTPAddr)

	tp, err := telemetry.NewProvider(ctx, rt.cfg.Tracing)
	if err != nil {
		sugar.Errorw("tracing setup failed", "err", err)
		return err
	}

	var rdb *redis.Client
	if rt.cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     rt.cfg.Redis.Addr,
			Password: rt.cfg.Redis.Password,
			DB:       rt.cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// quota fails open, so keep serving
			sugar.Warnw("redis unreachable, quota checks will be skipped", "addr", rt.cfg.Redis.Addr, "err", err)
		}
	}

	a, err := app.New(ctx, rt.cfg, rt.db, rdb, sugar)
	if err != nil {
		sugar.Errorw("wiring failed", "err", err)
		return err
	}

	srv := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			sugar.Errorw("http server failed", "err", err)
			return err
		}
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	if err := tp.Shutdown(doneCtx); err != nil {
		sugar.Warnw("tracer shutdown failed", "err", err)
	}
	sugar.Info("goodbye")
	return nil
}
