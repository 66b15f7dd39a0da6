package config

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted in STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config centralises runtime configuration.
type Config struct {
	HTTPPort         string
	StoreBackend     string
	RedisURL         string
	DatabaseURL      string
	APIKey           string
	APIKeyHash       string
	FetchTimeout     time.Duration
	FetchConcurrency int
	SweepInterval    time.Duration
	LogLevel         string
	LogFormat        string
	AllowedOrigins   []string
	ReadTimeoutSec   int
	WriteTimeoutSec  int
	IdleTimeoutSec   int
}

// Load reads configuration from environment variables providing sane defaults.
func Load() (Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	httpPort := getEnv("HTTP_PORT", "")
	if httpPort == "" {
		httpPort = getEnv("PORT", "8080")
	}

	var parseErrs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getDurationEnv(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := getIntEnv(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return n
	}

	cfg := Config{
		HTTPPort:         httpPort,
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreRedis)),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		APIKey:           getEnv("API_KEY", ""),
		APIKeyHash:       getEnv("API_KEY_HASH", ""),
		FetchTimeout:     duration("TOKEN_FETCH_TIMEOUT", 2*time.Second),
		FetchConcurrency: integer("TOKEN_FETCH_CONCURRENCY", 16),
		SweepInterval:    duration("KV_SWEEP_INTERVAL", time.Minute),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		AllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeoutSec:   integer("HTTP_READ_TIMEOUT", 15),
		WriteTimeoutSec:  integer("HTTP_WRITE_TIMEOUT", 15),
		IdleTimeoutSec:   integer("HTTP_IDLE_TIMEOUT", 60),
	}

	if err := errors.Join(parseErrs...); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		cfg.DatabaseURL = resolveDatabaseURL()
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
		}
	default:
		return Config{}, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.FetchConcurrency <= 0 {
		return Config{}, fmt.Errorf("TOKEN_FETCH_CONCURRENCY must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return Config{}, fmt.Errorf("TOKEN_FETCH_TIMEOUT must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, val)
	}
	return d, nil
}

func getIntEnv(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}

func splitCSV(value string) []string {
	parts := []string{}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return []string{"*"}
	}
	return parts
}

// resolveDatabaseURL prefers an explicit URL (inline or in a file) and falls
// back to libpq-style PG* variables.
func resolveDatabaseURL() string {
	for _, key := range []string{"DATABASE_URL", "POSTGRES_URL", "PGURL"} {
		if url := coerceDatabaseURL(os.Getenv(key)); url != "" {
			return url
		}
	}
	for _, key := range []string{"DATABASE_URL_FILE", "PGURL_FILE"} {
		if url := coerceDatabaseURL(readEnvFile(key)); url != "" {
			return url
		}
	}

	host := firstNonEmpty(os.Getenv("PGHOST"), os.Getenv("POSTGRES_HOST"))
	user := firstNonEmpty(os.Getenv("PGUSER"), os.Getenv("POSTGRES_USER"))
	if host == "" || user == "" {
		return ""
	}
	password := firstNonEmpty(os.Getenv("PGPASSWORD"), os.Getenv("POSTGRES_PASSWORD"))
	database := firstNonEmpty(os.Getenv("PGDATABASE"), os.Getenv("POSTGRES_DB"), user)
	port := firstNonEmpty(os.Getenv("PGPORT"), os.Getenv("POSTGRES_PORT"), "5432")
	sslMode := firstNonEmpty(os.Getenv("PGSSLMODE"), "require")

	dsn := &neturl.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
		User:   neturl.User(user),
	}
	if password != "" {
		dsn.User = neturl.UserPassword(user, password)
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	dsn.RawQuery = query.Encode()

	return dsn.String()
}

func coerceDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "postgres://"):
		return raw
	case strings.HasPrefix(raw, "postgresql://"):
		return "postgres://" + strings.TrimPrefix(raw, "postgresql://")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func readEnvFile(key string) string {
	path := os.Getenv(key)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf(".env line %d: missing '='", lineNum)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return fmt.Errorf(".env line %d: empty key", lineNum)
		}

		// real environment wins over the file
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, unquote(value)); err != nil {
			return fmt.Errorf(".env line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if first == last && (first == '"' || first == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
