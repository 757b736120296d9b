package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL           string
	JWTSecretKey          string
	ServerPort            int
	TelemetrySharedSecret string

	// Websocket heartbeat. The ping interval must be shorter than any
	// reverse-proxy idle timeout in front of the server, and the pong wait
	// long enough for the erg-side readers on slow hardware, so both are
	// tunable per deployment.
	WSPingInterval time.Duration
	WSPongTimeout  time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	telemetrySecret := os.Getenv("TELEMETRY_SHARED_SECRET")
	if telemetrySecret == "" {
		return nil, fmt.Errorf("TELEMETRY_SHARED_SECRET environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	pongTimeout, err := durationEnv("WS_PONG_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	pingInterval, err := durationEnv("WS_PING_INTERVAL", (pongTimeout*9)/10)
	if err != nil {
		return nil, err
	}
	if pingInterval >= pongTimeout {
		return nil, fmt.Errorf("WS_PING_INTERVAL (%v) must be shorter than WS_PONG_TIMEOUT (%v)", pingInterval, pongTimeout)
	}

	cfg := &Config{
		DatabaseURL:           dbURL,
		JWTSecretKey:          jwtKey,
		ServerPort:            port,
		TelemetrySharedSecret: telemetrySecret,
		WSPingInterval:        pingInterval,
		WSPongTimeout:         pongTimeout,
		R2AccountID:           os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:         os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:     os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:          os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:       os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}
