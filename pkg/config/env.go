package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvHTTPRateLimitRequests = "HTTP_RATE_LIMIT_REQUESTS"
	EnvHTTPRateLimitWindow   = "HTTP_RATE_LIMIT_WINDOW"
	EnvIdempotencyTTL        = "IDEMPOTENCY_TTL"

	EnvBookingTimeZone         = "BOOKING_TIME_ZONE"
	EnvBookingMinLead          = "BOOKING_MIN_LEAD"
	EnvBookingMinDuration      = "BOOKING_MIN_DURATION"
	EnvBookingMaxDuration      = "BOOKING_MAX_DURATION"
	EnvBookingMaxAdvance       = "BOOKING_MAX_ADVANCE"
	EnvBusinessDayStart        = "BUSINESS_DAY_START"
	EnvBusinessDayEnd          = "BUSINESS_DAY_END"
	EnvBookingRateLimitWindow  = "BOOKING_RATE_LIMIT_WINDOW"
	EnvMaxRecurringOccurrences = "MAX_RECURRING_OCCURRENCES"

	EnvResourceLockTTL   = "RESOURCE_LOCK_TTL"
	EnvResourceLockWait  = "RESOURCE_LOCK_WAIT"
	EnvResourceLockRetry = "RESOURCE_LOCK_RETRY"

	EnvSweepImminentInterval   = "SWEEP_IMMINENT_INTERVAL"
	EnvSweepImminentHorizon    = "SWEEP_IMMINENT_HORIZON"
	EnvSweepExpiredInterval    = "SWEEP_EXPIRED_INTERVAL"
	EnvSweepCompletionInterval = "SWEEP_COMPLETION_INTERVAL"
	EnvSweepDuplicateInterval  = "SWEEP_DUPLICATE_INTERVAL"
	EnvSweepRunTimeout         = "SWEEP_RUN_TIMEOUT"

	EnvNotifyQueueSize           = "NOTIFY_QUEUE_SIZE"
	EnvNotifyTimeout             = "NOTIFY_TIMEOUT"
	EnvKafkaNotificationsEnabled = "KAFKA_NOTIFICATIONS_ENABLED"
	EnvNotifyTopic               = "NOTIFY_TOPIC"
	EnvNotifyDLQTopic            = "NOTIFY_DLQ_TOPIC"
)
