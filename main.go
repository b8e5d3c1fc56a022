// Sandstone is a collaborative document editing service: REST endpoints
// for document CRUD and find-and-replace changes, plus a websocket
// channel for realtime presence and content broadcast.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdamiba/sandstone-project/api"
	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/config"
	"github.com/jdamiba/sandstone-project/document"
	"github.com/jdamiba/sandstone-project/engine"
	"github.com/jdamiba/sandstone-project/events"
	"github.com/jdamiba/sandstone-project/hub"
	sandhttp "github.com/jdamiba/sandstone-project/http"
	"github.com/jdamiba/sandstone-project/security"
)

func main() {
	var cfgFile string
	flag.StringVar(&cfgFile, "config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig("SANDSTONE", cfgFile)
	if err != nil {
		common.Logger.WithError(err).Fatal("failed to load configuration")
	}
	common.ConfigureLogging(cfg.Logging.Level, cfg.Logging.Format)

	store, err := newStore(cfg)
	if err != nil {
		common.Logger.WithError(err).Fatal("failed to open store")
	}
	defer store.Close()

	publisher, err := events.New(context.Background(), events.Config{
		Addr:     cfg.Events.RedisAddr,
		Password: cfg.Events.RedisPassword,
		DB:       cfg.Events.RedisDB,
		Channel:  cfg.Events.Channel,
	})
	if err != nil {
		common.Logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer publisher.Close()

	collab := hub.New(store, publisher, hub.Options{SendBuffer: cfg.Realtime.SendBuffer})
	transport := hub.NewTransport(collab, hub.TransportConfig{
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		PingInterval:   cfg.Realtime.PingInterval,
	})

	handlers := &api.Handlers{
		Store:    store,
		Engine:   engine.New(store, publisher),
		Realtime: transport,
		JWT:      security.NewJWTService(cfg.Security.JWTSecret),
		Events:   publisher,
	}

	e := sandhttp.NewEchoServer(sandhttp.ServerConfig{
		Port:            cfg.Server.Port,
		Debug:           cfg.Server.Debug,
		BodyLimit:       cfg.Server.BodyLimit,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
	})
	api.SetupRoutes(e, handlers, cfg)

	go func() {
		if err := sandhttp.StartServer(e, sandhttp.ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}); err != nil {
			common.Logger.WithError(err).Info("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	if err := sandhttp.GracefulShutdown(e, cfg.Server.ShutdownTimeout); err != nil {
		common.Logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}

// newStore selects the persistence backend. An empty database URL
// selects the in-memory store for local development.
func newStore(cfg *config.Config) (document.Store, error) {
	if cfg.Database.URL == "" {
		common.Logger.Warn("no database configured, using in-memory store")
		return document.NewMemoryStore(), nil
	}

	pg := document.PostgresConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		AutoMigrate:     cfg.Database.AutoMigrate,
	}
	return document.NewPostgresStore(cfg.Database.URL, pg)
}
