package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the service configuration, read from the environment.
type Config struct {
	Port            string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RoomTTL         time.Duration
	PresenceWindow  time.Duration
	RoomCapacity    int
	MutationRetries int
	AMQPURL         string
	AMQPExchange    string
	OTLPEndpoint    string
	ServiceName     string
	Environment     string
	LogLevel        string
	DebugRoutes     bool
	ShutdownTimeout time.Duration
}

// Load reads the configuration. Malformed numbers or durations are an error.
func Load() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8083"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "chat.audit"),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:   getEnv("SERVICE_NAME", "ephemeral-chat"),
		Environment:   getEnv("APP_ENV", "production"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RoomCapacity, err = getInt("ROOM_CAPACITY", 0); err != nil {
		return Config{}, err
	}
	if cfg.MutationRetries, err = getInt("MUTATION_RETRIES", 5); err != nil {
		return Config{}, err
	}
	if cfg.RoomTTL, err = getDuration("ROOM_TTL", 600*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PresenceWindow, err = getDuration("PRESENCE_WINDOW", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.DebugRoutes, err = getBool("DEBUG_ROUTES", false); err != nil {
		return Config{}, err
	}

	if cfg.RoomCapacity < 0 {
		return Config{}, fmt.Errorf("ROOM_CAPACITY must not be negative")
	}
	if cfg.MutationRetries < 1 {
		return Config{}, fmt.Errorf("MUTATION_RETRIES must be at least 1")
	}
	if cfg.RoomTTL <= 0 {
		return Config{}, fmt.Errorf("ROOM_TTL must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
