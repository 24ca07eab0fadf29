package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ticsummit/ticsite/internal/auth"
	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/internal/database"
	"github.com/ticsummit/ticsite/internal/engagement"
	"github.com/ticsummit/ticsite/internal/events"
	"github.com/ticsummit/ticsite/internal/middleware/ratelimit"
	"github.com/ticsummit/ticsite/internal/search"
	"github.com/ticsummit/ticsite/internal/server"
	"github.com/ticsummit/ticsite/internal/telemetry"
	"github.com/ticsummit/ticsite/internal/upload"
	"github.com/ticsummit/ticsite/internal/web"
)

const poolStatsInterval = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, a.cfg.Telemetry, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			a.log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	if err := database.Migrate(a.db); err != nil {
		return err
	}

	rdb, err := database.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	var limiter *ratelimit.Limiter
	if rdb != nil {
		defer rdb.Close()
		limiter = ratelimit.New(rdb, a.cfg.RateLimit.Window, a.cfg.RateLimit.Limit, a.log)
	} else {
		a.log.Warn("redis is not configured; rate limiting is off and views are deduplicated in SQL only")
	}

	authSvc, err := auth.NewService(a.db, a.cfg.Auth, a.log)
	if err != nil {
		return err
	}
	uploader, err := upload.New(a.cfg.Upload)
	if err != nil {
		return err
	}
	publisher := events.New(a.cfg.Events, a.log)
	defer func() {
		if err := publisher.Close(); err != nil {
			a.log.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	catalog := content.NewCatalog(a.db, content.NewSanitizer())
	eng := engagement.NewService(a.db, rdb, a.cfg.Engagement.ViewWindow, a.log)
	pages, err := web.New(catalog, eng, a.log)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Deps{
		Config:     a.cfg,
		Logger:     a.log,
		DB:         a.db,
		Catalog:    catalog,
		Engagement: eng,
		Auth:       authSvc,
		Uploader:   uploader,
		Search:     search.NewService(a.db),
		Events:     publisher,
		Limiter:    limiter,
		Pages:      pages,
	})
	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	g.Go(func() error {
		return auth.NewJanitor(authSvc, a.cfg.Auth.CleanupInterval, a.log).Run(gctx)
	})
	g.Go(func() error {
		database.CollectPoolStats(gctx, a.db, a.cfg.Database.Driver, poolStatsInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server stopped")
	return nil
}
