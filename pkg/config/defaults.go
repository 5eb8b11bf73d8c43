package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "roombook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultHTTPRateLimitRequests = 120
	DefaultHTTPRateLimitWindow   = time.Minute
	DefaultIdempotencyTTL        = 10 * time.Minute

	DefaultBookingTimeZone         = "UTC"
	DefaultBookingMinLead          = 5 * time.Minute
	DefaultBookingMinDuration      = 30 * time.Minute
	DefaultBookingMaxDuration      = 8 * time.Hour
	DefaultBookingMaxAdvance       = 4 * 7 * 24 * time.Hour
	DefaultBusinessDayStart        = "07:00"
	DefaultBusinessDayEnd          = "17:00"
	DefaultBookingRateLimitWindow  = 5 * time.Minute
	DefaultMaxRecurringOccurrences = 60

	DefaultResourceLockTTL   = 30 * time.Second
	DefaultResourceLockWait  = 3 * time.Second
	DefaultResourceLockRetry = 50 * time.Millisecond

	DefaultSweepImminentInterval   = 5 * time.Second
	DefaultSweepImminentHorizon    = 2 * time.Minute
	DefaultSweepExpiredInterval    = 10 * time.Second
	DefaultSweepCompletionInterval = 60 * time.Second
	DefaultSweepDuplicateInterval  = 30 * time.Second
	DefaultSweepRunTimeout         = 20 * time.Second

	DefaultNotifyQueueSize           = 256
	DefaultNotifyTimeout             = 5 * time.Second
	DefaultKafkaNotificationsEnabled = false
	DefaultNotifyTopic               = "reservation-events"
	DefaultNotifyDLQTopic            = "reservation-events-dlq"
)
