// Command feed-api serves the social feed JSON API.
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

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"socialfeed/internal/auth"
	"socialfeed/internal/config"
	"socialfeed/internal/feed"
	"socialfeed/internal/store"
)

var logger = logrus.New()

func initLogger(cfg *config.Config) {
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown log level, using warn")
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	if cfg.LogstashAddr == "" {
		return
	}
	conn, err := net.Dial("tcp", cfg.LogstashAddr)
	if err != nil {
		logger.WithError(err).WithField("addr", cfg.LogstashAddr).Error("Failed to connect to logstash")
		return
	}
	hook := logrustash.New(conn, logrustash.DefaultFormatter(logrus.Fields{"type": "socialfeed"}))
	logger.Hooks.Add(hook)
}

func newSessionStore(key string) *sessions.CookieStore {
	s := sessions.NewCookieStore([]byte(key))
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 16, // 16 hours
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	return s
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	initLogger(cfg)

	passwords, err := auth.ForMode(cfg.PasswordHashing)
	if err != nil {
		logger.WithError(err).Fatal("Invalid PASSWORD_HASHING")
	}

	db, err := store.Open(cfg, store.Options{
		Timeout:   cfg.StoreTimeout,
		Passwords: passwords,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to the database")
	}
	defer db.Close()

	agg := feed.NewAggregator(db, logger)
	api := NewAPI(feed.NewGateway(db, logger), agg, NewMetrics(prometheus.DefaultRegisterer), newSessionStore(cfg.SessionKey))

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           newRouter(api, promhttp.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("addr", cfg.Port).Warn("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
