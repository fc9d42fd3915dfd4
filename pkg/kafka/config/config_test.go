package kafka_config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "")
	t.Setenv(EnvKafkaClientID, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Brokers, []string{DefaultKafkaBrokers}) {
		t.Errorf("expected default brokers, got %v", cfg.Brokers)
	}
	if cfg.ClientID != DefaultKafkaClientID {
		t.Errorf("expected client id %q, got %q", DefaultKafkaClientID, cfg.ClientID)
	}
	if cfg.ProducerRequireAcks != DefaultProducerRequireAcks {
		t.Errorf("expected acks %d, got %d", DefaultProducerRequireAcks, cfg.ProducerRequireAcks)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv(EnvKafkaProducerCompression, "LZ4")
	t.Setenv(EnvKafkaProducerWriteTimeout, "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Brokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Errorf("unexpected brokers: %v", cfg.Brokers)
	}
	if cfg.ProducerCompression != "lz4" {
		t.Errorf("expected lowercased compression, got %s", cfg.ProducerCompression)
	}
	if cfg.ProducerWriteTimeout != 2*time.Second {
		t.Errorf("expected 2s write timeout, got %s", cfg.ProducerWriteTimeout)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Brokers:              []string{"localhost:9092"},
			ClientID:             "rentpay",
			ProducerMaxAttempts:  3,
			ProducerBatchTimeout: 10 * time.Millisecond,
			ProducerWriteTimeout: time.Second,
			ProducerRequireAcks:  -1,
			ProducerCompression:  "snappy",
		}
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"valid", func(cfg *Config) {}, ""},
		{"no brokers", func(cfg *Config) { cfg.Brokers = nil }, "At least one Kafka broker"},
		{"blank client id", func(cfg *Config) { cfg.ClientID = " " }, "ClientID cannot be empty"},
		{"bad compression", func(cfg *Config) { cfg.ProducerCompression = "brotli" }, "ProducerCompression must be one of"},
		{"bad acks", func(cfg *Config) { cfg.ProducerRequireAcks = 2 }, "ProducerRequireAcks must be"},
		{"zero attempts", func(cfg *Config) { cfg.ProducerMaxAttempts = 0 }, "ProducerMaxAttempts must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
