// chatgated serves the multi-session chat gateway over HTTP.
//
// On start it restores every session whose credential directory survived
// the previous run, then serves the REST API until SIGINT/SIGTERM, at
// which point it closes every provider connection best-effort and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate"
	"github.com/opd-ai/chatgate/config"
	"github.com/opd-ai/chatgate/credstore"
	"github.com/opd-ai/chatgate/httpapi"
	"github.com/opd-ai/chatgate/provider/sim"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.toml (or CHATGATE_CONFIG)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	setupLogging(cfg)

	store := credstore.New(cfg.AuthDir)
	registry := chatgate.NewRegistry(cfg.IndexFile)

	// Development provider; a real network binding implements
	// provider.Connector and slots in here.
	connector := sim.NewConnector()

	gw := chatgate.NewGateway(connector, store, registry, chatgate.Settings{
		RetryLimit:     cfg.RetryLimit,
		ReconnectDelay: cfg.ReconnectDelay,
		LoginCodeTTL:   cfg.LoginCodeTTL,
		QueryTimeout:   cfg.QueryTimeout,
		CountryPrefix:  cfg.CountryPrefix,
		JIDDomain:      cfg.JIDDomain,
	})

	if err := gw.Restore(); err != nil {
		logrus.WithField("error", err.Error()).Fatal("Failed to restore sessions")
	}

	api := httpapi.New(gw, cfg.UploadsDir)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":     cfg.ListenAddr,
			"sessions": registry.Size(),
		}).Info("Gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("error", err.Error()).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logrus.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithField("error", err.Error()).Warn("HTTP shutdown incomplete")
	}
	gw.Shutdown()
	logrus.Info("Gateway stopped")
}

// loadConfig resolves the config path from the flag or environment and
// falls back to defaults when no file is configured.
func loadConfig(path string) config.Config {
	if path == "" {
		path = os.Getenv("CHATGATE_CONFIG")
	}
	if path == "" {
		cfg := config.Default()
		cfg.ApplyDerived()
		return cfg
	}
	cfg, err := config.Load(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}
	return cfg
}

func setupLogging(cfg config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
