package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable; defaults keep the service
// runnable with nothing but a JWT secret set.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DataDir       string        // directory for the file-backed medium
	StorageQuota  int64         // byte budget of the file-backed medium (0 = unlimited)
	JWTSecret     string        // secret used to sign session tokens
	SessionTTLMin int           // session token time-to-live in minutes
	SampleAPIURL  string        // endpoint of the sample data source
	SampleTimeout time.Duration // bound on a sample fetch
	SampleLimit   int           // how many source records to request
}

// Load reads configuration from the environment.  JWT_SECRET is
// required and missing values cause the program to exit with a fatal
// log message; everything else falls back to a sensible default.
func Load() Config {
	return Config{
		Env:           getenv("APP_ENV", "dev"),
		Port:          getenv("APP_PORT", "8080"),
		DataDir:       getenv("DATA_DIR", "data"),
		StorageQuota:  int64(atoi(getenv("STORAGE_QUOTA_BYTES", "0"))),
		JWTSecret:     must("JWT_SECRET"),
		SessionTTLMin: atoi(getenv("SESSION_TTL_MIN", "60")),
		SampleAPIURL:  getenv("SAMPLE_API_URL", "https://jsonplaceholder.typicode.com/users"),
		SampleTimeout: parseDur(getenv("SAMPLE_TIMEOUT", "10s")),
		SampleLimit:   atoi(getenv("SAMPLE_LIMIT", "3")),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the variable's value, or def when unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
