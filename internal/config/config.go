// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waterlog/routeledger/internal/database"
)

// DefaultBottlePrice is the global price of one bottle when BOTTLE_PRICE is
// not set.
var DefaultBottlePrice = decimal.RequireFromString("60.00")

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env          string // APP_ENV (dev, test, prod)
	Port         string // APP_PORT
	DB           database.Options
	JWTSecret    string // JWT_SECRET
	AccessTTLMin int    // ACCESS_TOKEN_TTL_MIN
	BcryptCost   int    // BCRYPT_COST

	BottlePrice decimal.Decimal // BOTTLE_PRICE, global unit price
	PlantID     string          // PLANT_ID
	PlantName   string          // PLANT_NAME

	LogLevel string // LOG_LEVEL
	LogDir   string // LOG_DIR, where settlements.log is written

	RabbitURL       string        // RABBITMQ_URL
	ConsumerEnabled bool          // SETTLEMENT_CONSUMER_ENABLED
	CheckInLockTTL  time.Duration // CHECKIN_LOCK_TTL
}

// Load reads the configuration from the environment.  Every missing or
// malformed required variable is reported in a single error.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}
	mustInt := func(key string) int {
		s := must(key)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			missing = append(missing, fmt.Sprintf("%s (invalid int %q)", key, s))
		}
		return n
	}

	cfg := Config{
		Env:          must("APP_ENV"),
		Port:         envStr("APP_PORT", "8080"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   envInt("BCRYPT_COST", 12),

		PlantID:   envStr("PLANT_ID", "plant-1"),
		PlantName: envStr("PLANT_NAME", "Planta Purificadora"),

		LogLevel: envStr("LOG_LEVEL", "info"),
		LogDir:   envStr("LOG_DIR", "logs"),

		RabbitURL:       os.Getenv("RABBITMQ_URL"),
		ConsumerEnabled: envBool("SETTLEMENT_CONSUMER_ENABLED", false),
		CheckInLockTTL:  envDur("CHECKIN_LOCK_TTL", 30*time.Second),
	}

	cfg.DB = database.Options{Driver: envStr("DB_DRIVER", database.DriverMySQL)}
	switch cfg.DB.Driver {
	case database.DriverMySQL:
		cfg.DB.User = must("DB_USER")
		cfg.DB.Pass = os.Getenv("DB_PASS")
		cfg.DB.Host = must("DB_HOST")
		cfg.DB.Port = must("DB_PORT")
		cfg.DB.Name = must("DB_NAME")
	case database.DriverSQLite:
		cfg.DB.Path = envStr("DB_PATH", "routeledger.db")
	default:
		missing = append(missing, fmt.Sprintf("DB_DRIVER (unsupported %q)", cfg.DB.Driver))
	}

	price, err := envDecimal("BOTTLE_PRICE", DefaultBottlePrice)
	if err != nil {
		missing = append(missing, err.Error())
	} else if !price.IsPositive() {
		missing = append(missing, fmt.Sprintf("BOTTLE_PRICE (must be positive, got %s)", price))
	}
	cfg.BottlePrice = price

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing or invalid env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func envDecimal(k string, d decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	dec, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s (invalid decimal %q)", k, v)
	}
	return dec, nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
