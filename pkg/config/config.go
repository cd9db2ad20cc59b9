package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string

	ServerPort int

	DatabaseURL string

	JWTAccessSecret []byte

	KafkaBrokers       []string
	OrderEventsTopic   string
	NotificationsTopic string

	RedisAddr string

	PaymentBaseURL   string
	PaymentKeyID     string
	PaymentKeySecret string

	CouponSweepInterval time.Duration
	ReaperInterval      time.Duration
	StaleOrderWindow    time.Duration

	LogLevel string
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "shopkart"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		KafkaBrokers:       CSV(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:   EnvDefault("KAFKA_ORDER_EVENTS_TOPIC", "order_events"),
		NotificationsTopic: EnvDefault("KAFKA_NOTIFICATIONS_TOPIC", "notifications"),

		RedisAddr: EnvDefault("REDIS_ADDR", "localhost:6379"),

		PaymentBaseURL:   EnvDefault("PAYMENT_BASE_URL", "https://api.razorpay.com"),
		PaymentKeyID:     os.Getenv("PAYMENT_KEY_ID"),
		PaymentKeySecret: os.Getenv("PAYMENT_KEY_SECRET"),

		CouponSweepInterval: EnvDurationDefault("COUPON_SWEEP_INTERVAL", time.Hour),
		ReaperInterval:      EnvDurationDefault("ORDER_REAPER_INTERVAL", 15*time.Minute),
		StaleOrderWindow:    EnvDurationDefault("STALE_ORDER_WINDOW", 24*time.Hour),

		LogLevel: os.Getenv("LOG_LEVEL"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
