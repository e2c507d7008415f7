package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/internal/audit"
	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/config"
	"github.com/MrEthical07/storefront/internal/httpapi"
	"github.com/MrEthical07/storefront/internal/logger"
	"github.com/MrEthical07/storefront/internal/mailer"
	"github.com/MrEthical07/storefront/internal/orders"
	"github.com/MrEthical07/storefront/internal/store/memstore"
	"github.com/MrEthical07/storefront/internal/store/mongostore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// store is what both backends provide.
type store interface {
	storefront.UserProvider
	catalog.Repository
	orders.Repository
	Ping(ctx context.Context) error
}

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	engine  *storefront.Engine
	store   store
	catalog *catalog.Service
	orders  *orders.Service
	ready   []httpapi.ReadyCheck

	closers []func(context.Context) error
}

func loadApp(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := config.Load(config.Options{Path: g.configPath, Dev: g.dev})
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	rdb, err := a.openRedis(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if err := a.openStore(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}

	var m mailer.Mailer
	if cfg.Mail.SMTPEnabled() {
		sm, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		m = sm
	} else {
		log.Warn("smtp not configured, emails are only logged")
		m = mailer.NewLogMailer(log)
	}

	engine, err := storefront.New().
		WithConfig(cfg.Engine()).
		WithRedis(rdb).
		WithUserProvider(a.store).
		WithNotifier(mailer.NewLinkNotifier(m, cfg.Mail.FrontendURL)).
		WithAuditSink(audit.NewZapSink(log)).
		Build()
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("build auth engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, func(context.Context) error {
		engine.Close()
		return nil
	})

	a.catalog = catalog.NewService(a.store)
	a.orders = orders.NewService(a.store, a.catalog)
	a.ready = append(a.ready,
		httpapi.ReadyCheck{Name: "redis", Check: engine.Ping},
		httpapi.ReadyCheck{Name: "store", Check: a.store.Ping},
	)
	return a, nil
}

func (a *app) openRedis(ctx context.Context) (redis.UniversalClient, error) {
	addr, password, db := a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB
	if a.cfg.Dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			mr.Close()
			return nil
		})
		addr, password, db = mr.Addr(), "", 0
		a.log.Info("using embedded redis", zap.String("addr", addr))
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.Dev {
		a.store = memstore.New()
		a.log.Info("using in-memory store")
		return nil
	}
	ms, err := mongostore.Connect(ctx, a.cfg.Mongo.Store())
	if err != nil {
		return err
	}
	a.store = ms
	a.closers = append(a.closers, ms.Close)
	a.log.Info("connected to mongodb", zap.String("database", a.cfg.Mongo.Database))
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown", zap.Error(err))
	}
	_ = a.log.Sync()
}
