package config

import "github.com/nvkumar/shopkart/pkg/config"

type ServiceConfig struct {
	config.Config
}

func Load() ServiceConfig {
	cfg := config.Load()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmpty(cfg.PaymentKeyID, "PAYMENT_KEY_ID")
	config.MustNonEmpty(cfg.PaymentKeySecret, "PAYMENT_KEY_SECRET")

	return ServiceConfig{Config: cfg}
}
