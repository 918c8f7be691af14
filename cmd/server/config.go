package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates server configuration from environment variables and an
// optional config file.
type Config struct {
	Server struct {
		Addr    string
		BaseURL string
	}
	Database struct {
		Path string
	}
	Auth struct {
		TokenSecret string
	}
	Google struct {
		ClientID     string
		ClientSecret string
		CallbackURL  string
	}
	Predict struct {
		Mean           []float64
		Scale          []float64
		PriceCoef      []float64
		PriceIntercept float64
		YieldCoef      []float64
		YieldIntercept float64
	}
}

func loadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CROPAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.baseurl", "http://localhost:8080")
	v.SetDefault("database.path", "data/cropauth.db")
	v.SetDefault("auth.tokensecret", "")
	v.SetDefault("google.clientid", "")
	v.SetDefault("google.clientsecret", "")
	v.SetDefault("google.callbackurl", "http://localhost:8080/google_login/callback")
	v.SetDefault("predict.mean", []float64{25, 100, 2.5})
	v.SetDefault("predict.scale", []float64{10, 80, 1.5})
	v.SetDefault("predict.pricecoef", []float64{12.5, -4.2, 30.1})
	v.SetDefault("predict.priceintercept", 220)
	v.SetDefault("predict.yieldcoef", []float64{0.4, 0.9, 1.2})
	v.SetDefault("predict.yieldintercept", 2.8)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
