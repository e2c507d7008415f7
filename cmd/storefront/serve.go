package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/storefront/internal/httpapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g)
		},
	}
}

func serve(ctx context.Context, g *globalFlags) error {
	a, err := loadApp(ctx, g)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(closeCtx)
	}()

	hc := a.cfg.HTTP
	if hc.UploadDir != "" {
		if err := os.MkdirAll(hc.UploadDir, 0o755); err != nil {
			return fmt.Errorf("create upload dir: %w", err)
		}
	}

	api := httpapi.New(httpapi.Config{
		BodyLimit:       hc.BodyLimit,
		CORSOrigins:     hc.CORSOrigins,
		RateLimit:       hc.RateLimit,
		RateLimitWindow: hc.RateLimitWindow,
		UploadDir:       hc.UploadDir,
		TLS:             hc.TLS(),
		ValidationMode:  a.cfg.Engine().ValidationMode,
	}, httpapi.Deps{
		Engine:  a.engine,
		Catalog: a.catalog,
		Orders:  a.orders,
		Log:     a.log,
		Ready:   a.ready,
	})
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            hc.Addr,
		ReadTimeout:     hc.ReadTimeout,
		WriteTimeout:    hc.WriteTimeout,
		IdleTimeout:     hc.IdleTimeout,
		ShutdownTimeout: hc.ShutdownTimeout,
		TLSCertFile:     hc.TLSCertFile,
		TLSKeyFile:      hc.TLSKeyFile,
	}, api.Handler(), a.log)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return srv.Run(gctx) })
	grp.Go(func() error {
		<-gctx.Done()
		a.log.Info("stopping", zap.Uint64("audit_dropped", a.engine.AuditDropped()))
		return nil
	})
	return grp.Wait()
}
