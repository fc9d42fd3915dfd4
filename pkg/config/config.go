package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rentpay/pkg/client"
	kafka_config "rentpay/pkg/kafka/config"
	"rentpay/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ChapaBaseURL       string
	ChapaSecretKey     string
	ChapaWebhookSecret string
	PaymentCallbackURL string
	PaymentReturnURL   string
	GatewayTimeout     time.Duration
	DefaultCurrency    string

	BookingLockTTL     time.Duration
	BookingLockWait    time.Duration
	InitiationClaimTTL time.Duration

	NotifierBackend           string
	NotifyTimeout             time.Duration
	PaymentsConfirmedTopic    string
	PaymentsConfirmedDLQTopic string
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	NotifyMaxRetry            int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ChapaBaseURL:       strings.TrimRight(getEnvStr(EnvChapaBaseURL, DefaultChapaBaseURL), "/"),
		ChapaSecretKey:     getEnvStr(EnvChapaSecretKey, ""),
		ChapaWebhookSecret: getEnvStr(EnvChapaWebhookSecret, ""),
		PaymentCallbackURL: getEnvStr(EnvPaymentCallbackURL, DefaultPaymentCallback),
		PaymentReturnURL:   getEnvStr(EnvPaymentReturnURL, ""),
		GatewayTimeout:     getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),
		DefaultCurrency:    strings.ToUpper(getEnvStr(EnvDefaultCurrency, DefaultCurrency)),

		BookingLockTTL:     getEnvDuration(EnvBookingLockTTL, DefaultBookingLockTTL),
		BookingLockWait:    getEnvDuration(EnvBookingLockWait, DefaultBookingLockWait),
		InitiationClaimTTL: getEnvDuration(EnvInitiationClaimTTL, DefaultInitiationClaimTTL),

		NotifierBackend:           strings.ToLower(getEnvStr(EnvNotifierBackend, DefaultNotifierBackend)),
		NotifyTimeout:             getEnvDuration(EnvNotifyTimeout, DefaultNotifyTimeout),
		PaymentsConfirmedTopic:    getEnvStr(EnvPaymentsConfirmedTopic, DefaultPaymentsConfirmedTopic),
		PaymentsConfirmedDLQTopic: getEnvStr(EnvPaymentsConfirmedDLQTopic, DefaultPaymentsConfirmedDLQTopic),
		RedisAddr:                 getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:             getEnvStr(EnvRedisPassword, ""),
		RedisDB:                   getEnvNum(EnvRedisDB, DefaultRedisDB),
		NotifyMaxRetry:            getEnvNum(EnvNotifyMaxRetry, DefaultNotifyMaxRetry),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: getEnvBool(EnvLogAddSource, true),
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetNotifier connects the transport selected by NOTIFIER_BACKEND.
func (cfg *Config) SetNotifier() {
	switch cfg.NotifierBackend {
	case NotifierAsynq:
		cfg.Client.SetAsynq(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log.Info)
		cfg.Client.SetKafkaProducer(cfg.Log, kafkaCfg, cfg.PaymentsConfirmedTopic, cfg.PaymentsConfirmedDLQTopic)
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"GatewayTimeout", cfg.GatewayTimeout},
		{"BookingLockTTL", cfg.BookingLockTTL},
		{"BookingLockWait", cfg.BookingLockWait},
		{"InitiationClaimTTL", cfg.InitiationClaimTTL},
		{"NotifyTimeout", cfg.NotifyTimeout},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if _, err := url.ParseRequestURI(cfg.ChapaBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("ChapaBaseURL must be an absolute URL, got: %s", cfg.ChapaBaseURL))
	}
	if _, err := url.ParseRequestURI(cfg.PaymentCallbackURL); err != nil {
		errors = append(errors, fmt.Sprintf("PaymentCallbackURL must be an absolute URL, got: %s", cfg.PaymentCallbackURL))
	}
	if cfg.PaymentReturnURL != "" {
		if _, err := url.ParseRequestURI(cfg.PaymentReturnURL); err != nil {
			errors = append(errors, fmt.Sprintf("PaymentReturnURL must be an absolute URL, got: %s", cfg.PaymentReturnURL))
		}
	}
	if len(cfg.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("DefaultCurrency must be a 3-letter ISO code, got: %s", cfg.DefaultCurrency))
	}

	// A claim that can expire while its gateway call is still running would let
	// a second initiation start for the same booking.
	if cfg.InitiationClaimTTL <= cfg.GatewayTimeout {
		errors = append(errors, fmt.Sprintf("InitiationClaimTTL (%s) must exceed GatewayTimeout (%s)", cfg.InitiationClaimTTL, cfg.GatewayTimeout))
	}
	if cfg.BookingLockTTL <= cfg.WriteTimeout {
		errors = append(errors, fmt.Sprintf("BookingLockTTL (%s) must exceed WriteTimeout (%s)", cfg.BookingLockTTL, cfg.WriteTimeout))
	}

	switch cfg.NotifierBackend {
	case NotifierKafka:
		if cfg.PaymentsConfirmedTopic == "" {
			errors = append(errors, "PaymentsConfirmedTopic cannot be empty when NotifierBackend is kafka")
		}
	case NotifierAsynq:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when NotifierBackend is asynq")
		}
		if cfg.NotifyMaxRetry < 0 {
			errors = append(errors, fmt.Sprintf("NotifyMaxRetry cannot be negative, got: %d", cfg.NotifyMaxRetry))
		}
	default:
		errors = append(errors, fmt.Sprintf("NotifierBackend must be one of [kafka, asynq], got: %s", cfg.NotifierBackend))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"chapa_base_url", cfg.ChapaBaseURL,
		"chapa_secret_set", cfg.ChapaSecretKey != "",
		"chapa_webhook_secret_set", cfg.ChapaWebhookSecret != "",
		"payment_callback_url", cfg.PaymentCallbackURL,
		"payment_return_url", cfg.PaymentReturnURL,
		"gateway_timeout", cfg.GatewayTimeout,
		"default_currency", cfg.DefaultCurrency,
		"booking_lock_ttl", cfg.BookingLockTTL,
		"booking_lock_wait", cfg.BookingLockWait,
		"initiation_claim_ttl", cfg.InitiationClaimTTL,
		"notifier_backend", cfg.NotifierBackend,
		"notify_timeout", cfg.NotifyTimeout,
		"payments_confirmed_topic", cfg.PaymentsConfirmedTopic,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"notify_max_retry", cfg.NotifyMaxRetry,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPaginationLimit
	} else if limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
