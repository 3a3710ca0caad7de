package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rssmerge/api"
	"rssmerge/config"
	"rssmerge/files"
	"rssmerge/logger"
	"rssmerge/mirror"
	"rssmerge/security"
	"rssmerge/store"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" && *configPath == "config/config.yaml" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("error").Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := store.OpenMySQL(openCtx, cfg.Database.DSN())
	cancel()
	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	fm, err := files.NewManager(cfg.File.StoragePath, cfg.File.URLPrefix())
	if err != nil {
		log.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	log.Info("storage ready", "root", fm.Root())

	var publisher api.Publisher
	if cfg.GitHub.Enabled {
		up, err := mirror.NewUploader(cfg.GitHub.Token, cfg.GitHub.Repo)
		if err != nil {
			log.Error("github uploader init failed", "err", err)
			os.Exit(1)
		}
		publisher = up
		log.Info("github mirroring enabled", "repo", cfg.GitHub.Repo, "branch", cfg.GitHub.Branch)
	}

	gate := security.NewGate(cfg.Security, log.With("component", "security"))
	server := api.NewServer(cfg, gate, st, fm, publisher, log)

	// Hot-reload security and aggregation settings on config file changes.
	go func() {
		if err := config.Watch(ctx, *configPath, server.SetConfig); err != nil {
			log.Warn("config watch unavailable", "err", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", "addr", cfg.App.Addr(), "recent_days", cfg.Data.RecentDays)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
