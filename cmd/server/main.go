package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/auth"
	"github.com/harrylevesque/bloodscan/internal/backend"
	"github.com/harrylevesque/bloodscan/internal/config"
	"github.com/harrylevesque/bloodscan/internal/crypto"
	"github.com/harrylevesque/bloodscan/internal/finger"
	"github.com/harrylevesque/bloodscan/internal/session"
	"github.com/harrylevesque/bloodscan/internal/utils"
	"github.com/harrylevesque/bloodscan/internal/web"
)

func main() {
	configPath := flag.String("config", utils.DefaultConfigPath(), "Path to config.toml")
	listen := flag.String("listen", "", "Override listen address (e.g. :8080)")
	predictURL := flag.String("predict-url", "", "Override prediction service base URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *predictURL != "" {
		cfg.Backend.PredictURL = *predictURL
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Fatal("config")
		}
	}

	logger, err := utils.NewLogger(utils.LoggerOptions{
		Level:       cfg.Log.Level,
		Dir:         cfg.Log.Dir,
		RotateEvery: cfg.Log.RotateEvery.Duration,
		Keep:        cfg.Log.Keep.Duration,
		JSON:        cfg.Log.JSON,
	})
	if err != nil {
		log.WithError(err).Fatal("logger")
	}
	defer logger.Close()

	secret, err := crypto.ReadSecret(cfg.Session.Secret, cfg.Session.SecretFile)
	if err != nil {
		if cfg.Release {
			logger.WithError(err).Fatal("session secret")
		}
		logger.WithError(err).Warn("no session secret, using an ephemeral one; cookies will not survive a restart")
		secret = crypto.MustRandom(crypto.MinSecretLen)
	}
	keys, err := crypto.DeriveCookieKeys(secret)
	if err != nil {
		logger.WithError(err).Fatal("derive cookie keys")
	}

	client := backend.New(backend.Options{
		PredictURL:  cfg.Backend.PredictURL,
		AuthURL:     cfg.Backend.AuthURL,
		UploadField: cfg.Backend.UploadField,
		Timeout:     cfg.Backend.Timeout.Duration,
		Logger:      logger.WithField("component", "backend"),
	})

	ctrlLog := logger.WithField("component", "view")
	registry := session.NewRegistry(session.Options{
		Store:       session.NewCookieStore(keys.Hash, keys.Block, cfg.Session.MaxAge, cfg.Release),
		CookieName:  cfg.Session.CookieName,
		IdleTimeout: cfg.Session.IdleTimeout.Duration,
		Logger:      logger.WithField("component", "session"),
		Factory: func(id string) (*auth.Controller, *finger.Controller) {
			l := ctrlLog.WithField("view", id)
			return auth.NewController(client, l), finger.NewController(client, cfg.Backend.AcceptedExt, l)
		},
	})

	srv, err := web.NewServer(web.Options{
		Registry:       registry,
		Logger:         logger.WithField("component", "web"),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	if err != nil {
		logger.WithError(err).Fatal("web server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweep := cfg.Session.IdleTimeout.Duration / 4
	go registry.Run(ctx, sweep)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           web.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithFields(log.Fields{"addr": cfg.Listen, "predict": cfg.Backend.PredictURL}).Info("server running")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown")
	}
}
