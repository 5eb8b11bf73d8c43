package config

import (
	"fmt"
	"os"
	"regexp"
	"roombook/pkg/client"
	"roombook/pkg/logger"
	"strconv"
	"time"
	_ "time/tzdata" // BOOKING_TIME_ZONE must resolve in minimal images
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	HTTPRateLimitRequests int
	HTTPRateLimitWindow   time.Duration
	IdempotencyTTL        time.Duration

	BookingTimeZone         string
	Location                *time.Location
	BookingMinLead          time.Duration
	BookingMinDuration      time.Duration
	BookingMaxDuration      time.Duration
	BookingMaxAdvance       time.Duration
	BusinessDayStart        string
	BusinessDayEnd          string
	BookingRateLimitWindow  time.Duration
	MaxRecurringOccurrences int

	ResourceLockTTL   time.Duration
	ResourceLockWait  time.Duration
	ResourceLockRetry time.Duration

	SweepImminentInterval   time.Duration
	SweepImminentHorizon    time.Duration
	SweepExpiredInterval    time.Duration
	SweepCompletionInterval time.Duration
	SweepDuplicateInterval  time.Duration
	SweepRunTimeout         time.Duration

	NotifyQueueSize           int
	NotifyTimeout             time.Duration
	KafkaNotificationsEnabled bool
	NotifyTopic               string
	NotifyDLQTopic            string

	Log    *logger.Logger
	Client *client.Client
}

var timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func Load(serviceName string) *Config {
	cfg := &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		HTTPRateLimitRequests: getEnvNum(EnvHTTPRateLimitRequests, DefaultHTTPRateLimitRequests),
		HTTPRateLimitWindow:   getEnvDuration(EnvHTTPRateLimitWindow, DefaultHTTPRateLimitWindow),
		IdempotencyTTL:        getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),

		BookingTimeZone:         getEnvStr(EnvBookingTimeZone, DefaultBookingTimeZone),
		BookingMinLead:          getEnvDuration(EnvBookingMinLead, DefaultBookingMinLead),
		BookingMinDuration:      getEnvDuration(EnvBookingMinDuration, DefaultBookingMinDuration),
		BookingMaxDuration:      getEnvDuration(EnvBookingMaxDuration, DefaultBookingMaxDuration),
		BookingMaxAdvance:       getEnvDuration(EnvBookingMaxAdvance, DefaultBookingMaxAdvance),
		BusinessDayStart:        getEnvStr(EnvBusinessDayStart, DefaultBusinessDayStart),
		BusinessDayEnd:          getEnvStr(EnvBusinessDayEnd, DefaultBusinessDayEnd),
		BookingRateLimitWindow:  getEnvDuration(EnvBookingRateLimitWindow, DefaultBookingRateLimitWindow),
		MaxRecurringOccurrences: getEnvNum(EnvMaxRecurringOccurrences, DefaultMaxRecurringOccurrences),

		ResourceLockTTL:   getEnvDuration(EnvResourceLockTTL, DefaultResourceLockTTL),
		ResourceLockWait:  getEnvDuration(EnvResourceLockWait, DefaultResourceLockWait),
		ResourceLockRetry: getEnvDuration(EnvResourceLockRetry, DefaultResourceLockRetry),

		SweepImminentInterval:   getEnvDuration(EnvSweepImminentInterval, DefaultSweepImminentInterval),
		SweepImminentHorizon:    getEnvDuration(EnvSweepImminentHorizon, DefaultSweepImminentHorizon),
		SweepExpiredInterval:    getEnvDuration(EnvSweepExpiredInterval, DefaultSweepExpiredInterval),
		SweepCompletionInterval: getEnvDuration(EnvSweepCompletionInterval, DefaultSweepCompletionInterval),
		SweepDuplicateInterval:  getEnvDuration(EnvSweepDuplicateInterval, DefaultSweepDuplicateInterval),
		SweepRunTimeout:         getEnvDuration(EnvSweepRunTimeout, DefaultSweepRunTimeout),

		NotifyQueueSize:           getEnvNum(EnvNotifyQueueSize, DefaultNotifyQueueSize),
		NotifyTimeout:             getEnvDuration(EnvNotifyTimeout, DefaultNotifyTimeout),
		KafkaNotificationsEnabled: getEnvBool(EnvKafkaNotificationsEnabled, DefaultKafkaNotificationsEnabled),
		NotifyTopic:               getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		NotifyDLQTopic:            getEnvStr(EnvNotifyDLQTopic, DefaultNotifyDLQTopic),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if loc, err := time.LoadLocation(cfg.BookingTimeZone); err == nil {
		cfg.Location = loc
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.ServiceName, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("BookingTimeZone must be a valid IANA time zone, got: %s", cfg.BookingTimeZone))
	}

	dayStart, startErr := ParseTimeOfDay(cfg.BusinessDayStart)
	if startErr != nil {
		errors = append(errors, fmt.Sprintf("BusinessDayStart must be in HH:MM format (00:00-23:59), got: %s", cfg.BusinessDayStart))
	}
	dayEnd, endErr := ParseTimeOfDay(cfg.BusinessDayEnd)
	if endErr != nil {
		errors = append(errors, fmt.Sprintf("BusinessDayEnd must be in HH:MM format (00:00-23:59), got: %s", cfg.BusinessDayEnd))
	}
	if startErr == nil && endErr == nil && dayEnd <= dayStart {
		errors = append(errors, fmt.Sprintf("BusinessDayEnd (%s) must be after BusinessDayStart (%s)", cfg.BusinessDayEnd, cfg.BusinessDayStart))
	}

	if cfg.BookingMinDuration <= 0 {
		errors = append(errors, fmt.Sprintf("BookingMinDuration must be positive, got: %s", cfg.BookingMinDuration))
	}
	if cfg.BookingMaxDuration < cfg.BookingMinDuration {
		errors = append(errors, fmt.Sprintf("BookingMaxDuration (%s) must be >= BookingMinDuration (%s)", cfg.BookingMaxDuration, cfg.BookingMinDuration))
	}
	if cfg.BookingMinLead < 0 {
		errors = append(errors, fmt.Sprintf("BookingMinLead cannot be negative, got: %s", cfg.BookingMinLead))
	}
	if cfg.BookingMaxAdvance <= cfg.BookingMinLead {
		errors = append(errors, fmt.Sprintf("BookingMaxAdvance (%s) must be greater than BookingMinLead (%s)", cfg.BookingMaxAdvance, cfg.BookingMinLead))
	}
	if cfg.MaxRecurringOccurrences <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRecurringOccurrences must be positive, got: %d", cfg.MaxRecurringOccurrences))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RequestTimeout", cfg.RequestTimeout},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"HTTPRateLimitWindow", cfg.HTTPRateLimitWindow},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"BookingRateLimitWindow", cfg.BookingRateLimitWindow},
		{"ResourceLockTTL", cfg.ResourceLockTTL},
		{"ResourceLockWait", cfg.ResourceLockWait},
		{"ResourceLockRetry", cfg.ResourceLockRetry},
		{"SweepImminentInterval", cfg.SweepImminentInterval},
		{"SweepImminentHorizon", cfg.SweepImminentHorizon},
		{"SweepExpiredInterval", cfg.SweepExpiredInterval},
		{"SweepCompletionInterval", cfg.SweepCompletionInterval},
		{"SweepDuplicateInterval", cfg.SweepDuplicateInterval},
		{"SweepRunTimeout", cfg.SweepRunTimeout},
		{"NotifyTimeout", cfg.NotifyTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.ResourceLockTTL > 0 && cfg.ResourceLockTTL <= cfg.ResourceLockWait {
		errors = append(errors, fmt.Sprintf("ResourceLockTTL (%s) must exceed ResourceLockWait (%s)", cfg.ResourceLockTTL, cfg.ResourceLockWait))
	}
	// A single repository call under the lock must fit inside one lease.
	if cfg.ResourceLockTTL > 0 && (cfg.ResourceLockTTL <= cfg.ReadTimeout || cfg.ResourceLockTTL <= cfg.WriteTimeout) {
		errors = append(errors, fmt.Sprintf("ResourceLockTTL (%s) must exceed ReadTimeout (%s) and WriteTimeout (%s)", cfg.ResourceLockTTL, cfg.ReadTimeout, cfg.WriteTimeout))
	}

	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.HTTPRateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("HTTPRateLimitRequests must be positive, got: %d", cfg.HTTPRateLimitRequests))
	}
	if cfg.NotifyQueueSize <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyQueueSize must be positive, got: %d", cfg.NotifyQueueSize))
	}
	if cfg.KafkaNotificationsEnabled && cfg.NotifyTopic == "" {
		errors = append(errors, "NotifyTopic cannot be empty when Kafka notifications are enabled")
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
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"http_rate_limit_requests", cfg.HTTPRateLimitRequests,
		"http_rate_limit_window", cfg.HTTPRateLimitWindow,
		"booking_time_zone", cfg.BookingTimeZone,
		"booking_min_lead", cfg.BookingMinLead,
		"booking_min_duration", cfg.BookingMinDuration,
		"booking_max_duration", cfg.BookingMaxDuration,
		"booking_max_advance", cfg.BookingMaxAdvance,
		"business_day_start", cfg.BusinessDayStart,
		"business_day_end", cfg.BusinessDayEnd,
		"booking_rate_limit_window", cfg.BookingRateLimitWindow,
		"max_recurring_occurrences", cfg.MaxRecurringOccurrences,
		"resource_lock_ttl", cfg.ResourceLockTTL,
		"resource_lock_wait", cfg.ResourceLockWait,
		"sweep_imminent_interval", cfg.SweepImminentInterval,
		"sweep_imminent_horizon", cfg.SweepImminentHorizon,
		"sweep_expired_interval", cfg.SweepExpiredInterval,
		"sweep_completion_interval", cfg.SweepCompletionInterval,
		"sweep_duplicate_interval", cfg.SweepDuplicateInterval,
		"notify_queue_size", cfg.NotifyQueueSize,
		"kafka_notifications_enabled", cfg.KafkaNotificationsEnabled,
		"notify_topic", cfg.NotifyTopic,
	)
}

// ParseTimeOfDay converts "HH:MM" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	if !timeOfDayRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
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
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
