package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time for request timeout durations

	"github.com/joho/godotenv" // optional .env loading for local development
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The client and the stub backend share one
// config type; unused fields cost nothing.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	BaseURL        string        // backend base URL the client talks to
	RequestTimeout time.Duration // per-request HTTP timeout
	StoragePath    string        // durable session storage file (SQLite)
	LogLevel       string        // debug/info/warn/error
	LogFormat      string        // text or json

	// Stub backend settings.
	StubPort       string // port the stub backend listens on
	JWTSecret      string // secret used to sign stub access tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for stub password hashing
	PendingTTLMin  int    // minutes a pending order holds its seats
}

// Load reads configuration from the environment, preceded by a best-effort
// .env load.  Every value has a development default so the client runs
// with no environment at all; production deployments override via env.
func Load() Config {
	_ = godotenv.Load() // ignore missing .env

	return Config{
		Env:            getenv("APP_ENV", "dev"),
		BaseURL:        getenv("CINEMA_BASE_URL", "http://localhost:8080"),
		RequestTimeout: time.Duration(getenvInt("CINEMA_TIMEOUT_SEC", 10)) * time.Second,
		StoragePath:    getenv("CINEMA_STORAGE_PATH", defaultStoragePath()),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "text"),

		StubPort:       getenv("STUB_PORT", "8080"),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret-change-me"),
		AccessTTLMin:   getenvInt("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays: getenvInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     getenvInt("BCRYPT_COST", 10),
		PendingTTLMin:  getenvInt("PENDING_ORDER_TTL_MIN", 15),
	}
}

// defaultStoragePath puts the session store under the user config dir,
// falling back to the working directory when none is resolvable.
func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cinema-client.db"
	}
	return dir + "/cinema-client/session.db"
}

// getenv retrieves an environment variable or returns the fallback when
// it is unset or empty.
func getenv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	return v
}

// getenvInt is like getenv but converts the value into an integer.  An
// unparsable value is a configuration mistake, not something to guess
// around, so it halts execution.
func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
