package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret         string // signs standard user tokens
	AdminJWTSecret    string // signs admin tokens; must differ from JWTSecret
	AccessTTLMin      int    // standard token time-to-live in minutes
	AdminAccessTTLMin int    // admin token time-to-live in minutes
	BcryptCost        int    // bcrypt cost for password hashing

	LogLevel              string // DEBUG, INFO, WARN, ERROR, OFF
	BlacklistSweepSpec    string // cron spec for the blacklist sweep
	ResolveReferenceNames bool   // join catalog tables for reference_name
	DBAutoMigrate         bool   // create missing tables on boot
	EventsEnabled         bool   // publish and consume unavailability events
	AMQPURL               string // RabbitMQ URL
	EventLogDir           string // where the event consumer appends its log
	ShutdownTimeout       time.Duration
}

// Load reads an optional .env file and then environment variables.
// Required variables are enforced by must() and missing or inconsistent
// values cause the program to exit with a fatal log message.
func Load() Config {
	// .env is a convenience for local runs; real deployments set env vars.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg := Config{
		Env:    envStr("APP_ENV", "dev"),
		Port:   envStr("APP_PORT", "8080"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		JWTSecret:         must("JWT_SECRET"),
		AdminJWTSecret:    must("ADMIN_JWT_SECRET"),
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 60),
		AdminAccessTTLMin: envInt("ADMIN_ACCESS_TOKEN_TTL_MIN", 30),
		BcryptCost:        envInt("BCRYPT_COST", 10),

		LogLevel:              envStr("LOG_LEVEL", "INFO"),
		BlacklistSweepSpec:    envStr("BLACKLIST_SWEEP_SPEC", "0 0 * * *"),
		ResolveReferenceNames: envBool("RESOLVE_REFERENCE_NAMES", true),
		DBAutoMigrate:         envBool("DB_AUTO_MIGRATE", true),
		EventsEnabled:         envBool("EVENTS_ENABLED", false),
		AMQPURL:               amqpURL(),
		EventLogDir:           envStr("EVENT_LOG_DIR", "logs"),
		ShutdownTimeout:       envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// Validate checks relations between values that must() cannot express.
func (c Config) Validate() error {
	if c.JWTSecret == c.AdminJWTSecret {
		return errors.New("ADMIN_JWT_SECRET must differ from JWT_SECRET")
	}
	if c.AccessTTLMin <= 0 || c.AdminAccessTTLMin <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.EventsEnabled && c.AMQPURL == "" {
		return errors.New("EVENTS_ENABLED requires RABBITMQ_URL or AMQP_URL")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid APP_PORT %q", c.Port)
	}
	return nil
}

// AccessTTL is the standard token lifetime.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// AdminAccessTTL is the admin token lifetime.
func (c Config) AdminAccessTTL() time.Duration {
	return time.Duration(c.AdminAccessTTLMin) * time.Minute
}

// amqpURL prefers RABBITMQ_URL and falls back to AMQP_URL.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
