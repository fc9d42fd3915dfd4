package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort         = "PORT"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvLogAddSource = "LOG_ADD_SOURCE"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvChapaBaseURL       = "CHAPA_BASE_URL"
	EnvChapaSecretKey     = "CHAPA_SECRET_KEY"
	EnvChapaWebhookSecret = "CHAPA_WEBHOOK_SECRET"
	EnvPaymentCallbackURL = "PAYMENT_CALLBACK_URL"
	EnvPaymentReturnURL   = "PAYMENT_RETURN_URL"
	EnvGatewayTimeout     = "GATEWAY_TIMEOUT"
	EnvDefaultCurrency    = "DEFAULT_CURRENCY"

	EnvBookingLockTTL     = "BOOKING_LOCK_TTL"
	EnvBookingLockWait    = "BOOKING_LOCK_WAIT"
	EnvInitiationClaimTTL = "INITIATION_CLAIM_TTL"

	EnvNotifierBackend           = "NOTIFIER_BACKEND"
	EnvNotifyTimeout             = "NOTIFY_TIMEOUT"
	EnvPaymentsConfirmedTopic    = "PAYMENTS_CONFIRMED_TOPIC"
	EnvPaymentsConfirmedDLQTopic = "PAYMENTS_CONFIRMED_DLQ_TOPIC"
	EnvRedisAddr                 = "REDIS_ADDR"
	EnvRedisPassword             = "REDIS_PASSWORD"
	EnvRedisDB                   = "REDIS_DB"
	EnvNotifyMaxRetry            = "NOTIFY_MAX_RETRY"
)
