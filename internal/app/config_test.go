package app

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("unexpected metrics addr: %q", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageMemory {
		t.Fatalf("default storage must be memory, got %q", cfg.StorageDriver)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("kafka must be off by default, got brokers %v", cfg.KafkaBrokers)
	}
	if cfg.IngestMaxRetries <= 0 {
		t.Fatalf("ingest retries must be positive, got %d", cfg.IngestMaxRetries)
	}
	if cfg.ShutdownTimeout <= 0 {
		t.Fatalf("shutdown timeout must be positive, got %v", cfg.ShutdownTimeout)
	}
}
