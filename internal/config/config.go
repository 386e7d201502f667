package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the engine's environment-driven configuration
type Config struct {
	Env        string
	ListenAddr string

	// GatewayURL is the marketplace socket server endpoint
	GatewayURL string
	// OperatorID identifies the console operator on the gateway
	OperatorID string

	RedisHost string
	RedisPort string

	LogLevel  string
	LogFormat string

	DedupWindow time.Duration
	ConnectWait time.Duration

	// FCM push sink; left empty the engine falls back to the log sink
	FCMCredentialsPath string
	FCMProjectID       string
	FCMDeviceTokens    []string
}

// LoadConfig reads the environment (or Docker) variables
func LoadConfig() *Config {
	return &Config{
		Env:        getEnv("ENV", "development"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8085"),

		GatewayURL: getEnv("GATEWAY_URL", "ws://localhost:9090/socket"),
		OperatorID: getEnv("OPERATOR_ID", "admin"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DedupWindow: getDuration("DEDUP_WINDOW_SECONDS", 60),
		ConnectWait: getDuration("GATEWAY_CONNECT_WAIT_SECONDS", 2),

		FCMCredentialsPath: getEnv("FCM_CREDENTIALS_PATH", ""),
		FCMProjectID:       getEnv("FCM_PROJECT_ID", ""),
		FCMDeviceTokens:    splitList(getEnv("FCM_DEVICE_TOKENS", "")),
	}
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
