// Package configs loads application configuration from environment
// variables, with a .env file honored for local development.
package configs

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// InputTopic carries inbound trade confirmations.
	InputTopic string

	// OutputTopic receives validated, enriched trades.
	OutputTopic string

	// DeadLetterTopic receives messages that cannot be read at all.
	DeadLetterTopic string

	// GroupID is the consumer group for the intake loop.
	GroupID string
}

// ConsumerConfig holds intake and processing settings.
type ConsumerConfig struct {
	// WorkerCount is the size of the asynchronous processing pool.
	WorkerCount int

	// RetryBackoffSeconds is the fixed delay between raw-store write retries.
	RetryBackoffSeconds int

	// DeadLetterAttempts bounds publishes to the dead-letter topic.
	DeadLetterAttempts int

	// IntakeRatePerSecond throttles fetching. Zero disables throttling.
	IntakeRatePerSecond int
}

// AppConfig is loaded once at startup with AppLoad.
type AppConfig struct {
	// DBDSN is the Postgres connection string.
	DBDSN string

	Kafka    KafkaConfig
	Consumer ConsumerConfig

	// MetricsAddr is the listen address for the /metrics endpoint.
	MetricsAddr string
}

func getDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_USER", "trademanager"),
		getEnv("POSTGRES_PASSWORD", "trademanager"),
		getEnv("POSTGRES_DB", "trademanager"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_SSLMODE", "disable"),
	)
}

// AppLoad loads all application configuration from environment variables.
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // .env is optional

	return &AppConfig{
		DBDSN: getDatabaseDSN(),
		Kafka: KafkaConfig{
			Broker:          getEnv("KAFKA_BROKER", "localhost:9092"),
			InputTopic:      getEnv("KAFKA_INPUT_TOPIC", "trade-confirmations"),
			OutputTopic:     getEnv("KAFKA_OUTPUT_TOPIC", "trade-confirmations-enriched"),
			DeadLetterTopic: getEnv("KAFKA_DLQ_TOPIC", "trade-confirmations-dlq"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "trademanager-consumer"),
		},
		Consumer: ConsumerConfig{
			WorkerCount:         getEnvAsInt("WORKER_COUNT", 4),
			RetryBackoffSeconds: getEnvAsInt("RETRY_BACKOFF_SECONDS", 2),
			DeadLetterAttempts:  getEnvAsInt("DEAD_LETTER_ATTEMPTS", 3),
			IntakeRatePerSecond: getEnvAsInt("INTAKE_RATE_PER_SECOND", 0),
		},
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as int or a default.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
