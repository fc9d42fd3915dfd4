package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "rentpay"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 10
	MaxPaginationLimit     = 100

	DefaultChapaBaseURL    = "https://api.chapa.co"
	DefaultGatewayTimeout  = 10 * time.Second
	DefaultCurrency        = "ETB"
	DefaultPaymentCallback = "http://localhost:8080/api/v1/payments/webhook"

	DefaultBookingLockTTL     = 10 * time.Second
	DefaultBookingLockWait    = 3 * time.Second
	DefaultInitiationClaimTTL = 2 * time.Minute

	NotifierKafka = "kafka"
	NotifierAsynq = "asynq"

	DefaultNotifierBackend           = NotifierKafka
	DefaultNotifyTimeout             = 5 * time.Second
	DefaultPaymentsConfirmedTopic    = "payments.confirmed"
	DefaultPaymentsConfirmedDLQTopic = "dlq-payments.confirmed"
	DefaultRedisAddr                 = "localhost:6379"
	DefaultRedisDB                   = 0
	DefaultNotifyMaxRetry            = 5
)
