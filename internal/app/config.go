package app

import "time"

// Драйверы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает настройки запуска сервиса истории заказов.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// StorageDriver выбирает backend: memory или postgres.
	StorageDriver string
	PostgresDSN   string
	// PostgresAutoMigrate применяет миграции при старте.
	PostgresAutoMigrate bool

	// KafkaBrokers пуст — ingest-consumer не запускается.
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaGroupID     string
	IngestMaxRetries int

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// in-memory хранилище, без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		StorageDriver:    StorageMemory,
		KafkaTopic:       "orderhistory.orders",
		KafkaGroupID:     "order-history",
		IngestMaxRetries: 3,
		ShutdownTimeout:  5 * time.Second,
	}
}
