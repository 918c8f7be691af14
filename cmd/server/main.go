// Command server hosts the crop-market auth subsystem: sqlite-backed
// accounts, cookie sessions, Google OAuth and the prediction endpoint.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/rpratheek/cropauth"
	authoauth2 "github.com/rpratheek/cropauth/oauth2"
	"github.com/rpratheek/cropauth/predict"
	gormstore "github.com/rpratheek/cropauth/stores/gorm"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error("creating data dir", "error", err)
		os.Exit(1)
	}
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Error("opening database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		logger.Error("migrating database", "error", err)
		os.Exit(1)
	}

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		// Generated secrets invalidate outstanding reset links on restart;
		// good enough for development, set CROPAUTH_AUTH_TOKENSECRET in prod.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Error("generating token secret", "error", err)
			os.Exit(1)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("auth.tokensecret not set, generated an ephemeral one")
	}
	tokens, err := cropauth.NewTokenService(secret)
	if err != nil {
		logger.Error("creating token service", "error", err)
		os.Exit(1)
	}

	users := gormstore.NewStore(db)

	gateway := &cropauth.AuthGateway{
		Credentials: cropauth.NewCredentialStore(users),
		Tokens:      tokens,
		Sessions:    cropauth.NewSessionManager(),
		Linker:      cropauth.NewOAuthLinker(users),
		Mailer:      &cropauth.ConsoleMailer{Logger: logger},
		Predictor:   predictorFromConfig(cfg),
		BaseURL:     cfg.Server.BaseURL,
		Logger:      logger,
	}
	if cfg.Google.ClientID != "" {
		gateway.Provider = authoauth2.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	} else {
		logger.Warn("google oauth not configured, /google_login disabled")
	}

	logger.Info("listening", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, gateway.Handler()); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func predictorFromConfig(cfg Config) predict.Service {
	model := &predict.Linear{
		PriceIntercept: cfg.Predict.PriceIntercept,
		YieldIntercept: cfg.Predict.YieldIntercept,
	}
	for i := 0; i < 3; i++ {
		if len(cfg.Predict.Mean) > i {
			model.Mean[i] = cfg.Predict.Mean[i]
		}
		if len(cfg.Predict.Scale) > i {
			model.Scale[i] = cfg.Predict.Scale[i]
		}
		if len(cfg.Predict.PriceCoef) > i {
			model.PriceCoef[i] = cfg.Predict.PriceCoef[i]
		}
		if len(cfg.Predict.YieldCoef) > i {
			model.YieldCoef[i] = cfg.Predict.YieldCoef[i]
		}
	}
	return model
}
