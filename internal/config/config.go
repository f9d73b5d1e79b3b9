// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/billing"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	TCPAddr  string // line protocol listener
	HTTPAddr string // operator API listener

	DB database.Options

	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	SlotMinutes        int
	GraceMinutes       int
	MinNoticeMinutes   int
	HorizonDays        int
	OpenTime           string // HH:MM
	CloseTime          string // HH:MM
	Timezone           string // IANA name, empty for the host zone
	UnitPriceCents     int64
	SubscriberDiscount int

	SweepInterval   time.Duration
	SuggestionCount int

	RabbitURL     string
	NotifyEnabled bool
	NotifyLogDir  string

	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// Load reads configuration values from environment variables. Missing
// required variables are reported together in one error.
func Load() (Config, error) {
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		TCPAddr:  envStr("TCP_ADDR", ":5555"),
		HTTPAddr: envStr("HTTP_ADDR", ":8081"),
		DB: database.Options{
			Driver:     strings.ToLower(envStr("DB_DRIVER", "mysql")),
			User:       os.Getenv("DB_USER"),
			Pass:       os.Getenv("DB_PASS"),
			Host:       os.Getenv("DB_HOST"),
			Port:       envStr("DB_PORT", "3306"),
			Name:       os.Getenv("DB_NAME"),
			SQLitePath: envStr("SQLITE_PATH", "restaurant.db"),
		},
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTTLMin:       envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:         envInt("BCRYPT_COST", 12),
		SlotMinutes:        envInt("SLOT_MINUTES", 120),
		GraceMinutes:       envInt("GRACE_MINUTES", 15),
		MinNoticeMinutes:   envInt("MIN_NOTICE_MINUTES", 60),
		HorizonDays:        envInt("BOOKING_HORIZON_DAYS", 30),
		OpenTime:           envStr("OPEN_TIME", "11:00"),
		CloseTime:          envStr("CLOSE_TIME", "23:00"),
		Timezone:           os.Getenv("TIMEZONE"),
		UnitPriceCents:     int64(envInt("UNIT_PRICE_CENTS", int(billing.DefaultUnitPrice))),
		SubscriberDiscount: envInt("SUBSCRIBER_DISCOUNT", billing.DefaultSubscriberDiscount),
		SweepInterval:      envDur("SWEEP_INTERVAL", time.Minute),
		SuggestionCount:    envInt("SUGGESTION_COUNT", 3),
		RabbitURL:          os.Getenv("RABBITMQ_URL"),
		NotifyEnabled:      envBool("NOTIFY_ENABLED", false),
		NotifyLogDir:       envStr("NOTIFY_LOG_DIR", "logs"),
		Redis:              LoadRedisConfig(),
		RateLimit:          LoadRateLimitConfig(),
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.DB.Driver == "mysql" {
		for k, v := range map[string]string{"DB_USER": cfg.DB.User, "DB_HOST": cfg.DB.Host, "DB_NAME": cfg.DB.Name} {
			if v == "" {
				missing = append(missing, k)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return cfg, fmt.Errorf("missing required env var(s): %s", strings.Join(missing, ", "))
	}
	if _, err := database.DialectFor(cfg.DB.Driver); err != nil {
		return cfg, err
	}
	if _, err := cfg.Policy(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Policy builds the booking rules from the configured durations and hours.
func (c Config) Policy() (timewindow.Policy, error) {
	hours, err := timewindow.ParseHours(c.OpenTime, c.CloseTime)
	if err != nil {
		return timewindow.Policy{}, fmt.Errorf("OPEN_TIME/CLOSE_TIME: %w", err)
	}
	loc := time.Local
	if c.Timezone != "" {
		if loc, err = time.LoadLocation(c.Timezone); err != nil {
			return timewindow.Policy{}, fmt.Errorf("TIMEZONE: %w", err)
		}
	}
	if c.SlotMinutes <= 0 || c.HorizonDays < 0 || c.GraceMinutes < 0 || c.MinNoticeMinutes < 0 {
		return timewindow.Policy{}, fmt.Errorf("slot, grace, notice and horizon settings must not be negative")
	}
	return timewindow.Policy{
		SlotDuration: time.Duration(c.SlotMinutes) * time.Minute,
		Grace:        time.Duration(c.GraceMinutes) * time.Minute,
		MinNotice:    time.Duration(c.MinNoticeMinutes) * time.Minute,
		HorizonDays:  c.HorizonDays,
		Hours:        hours,
		Location:     loc,
	}, nil
}

// Billing returns the calculator for the configured prices.
func (c Config) Billing() billing.Calculator {
	calc := billing.NewCalculator()
	if c.UnitPriceCents > 0 {
		calc.UnitPrice = c.UnitPriceCents
	}
	if c.SubscriberDiscount >= 0 && c.SubscriberDiscount <= 100 {
		calc.SubscriberDiscountPercent = c.SubscriberDiscount
	}
	return calc
}
