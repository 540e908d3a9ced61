package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/kingdavid28/iyaya-contracts/internal/config"
	"github.com/kingdavid28/iyaya-contracts/internal/engine"
	"github.com/kingdavid28/iyaya-contracts/internal/export"
	"github.com/kingdavid28/iyaya-contracts/internal/identity"
	"github.com/kingdavid28/iyaya-contracts/internal/notify"
	"github.com/kingdavid28/iyaya-contracts/internal/store"
	"github.com/kingdavid28/iyaya-contracts/pkg/db"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	var st store.Store
	if cfg.Database.URL != "" {
		pool, err := db.Connect(context.Background(), cfg.Database.URL)
		if err != nil {
			logger.Error("database connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	} else {
		logger.Warn("no database configured, contracts are held in memory")
		st = store.NewMemory()
	}

	var dispatcher notify.Dispatcher = notify.Log{Logger: logger}
	if cfg.Notify.WebhookURL != "" {
		dispatcher = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret)
	}
	queue := notify.NewQueue(dispatcher, cfg.Notify.QueueSize, logger)
	defer queue.Close()

	var resolver identity.Resolver = identity.Passthrough{}
	if cfg.Identity.BaseURL != "" {
		resolver = identity.NewClient(cfg.Identity.BaseURL)
	}

	eng := engine.New(engine.Config{
		Store:    st,
		Events:   queue,
		Identity: resolver,
		Exporter: export.NewClient(cfg.Export.BaseURL),
		Logger:   logger,
		ListTTL:  time.Duration(cfg.Cache.ListTTLSeconds) * time.Second,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("contract service listening", "addr", addr)
	if err := http.ListenAndServe(addr, newRouter(eng, cfg, logger)); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
