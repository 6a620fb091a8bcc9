package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Scheduling
	OrgTimezone         string
	WorkingHoursStart   string
	WorkingHoursEnd     string
	WorkingDays         string
	AppointmentDuration time.Duration
	SlotGranularity     time.Duration
	BookingLockTimeout  time.Duration
	BookingLockTTL      time.Duration

	// Notifications
	NotifyTimeout     time.Duration
	NotifyMaxAttempts int
	NotifyRetryDelay  time.Duration
	NotifyUseOutbox   bool

	// NotifyOutboxInline runs the outbox deliverer inside the API process.
	NotifyOutboxInline bool
	// OutboxLease is how long a drainer holds claimed outbox rows.
	OutboxLease        time.Duration
	NotifyEmailTo      string

	GoogleCalendarCredentialsFile string
	GoogleCalendarID              string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	AWSRegion                 string
	AWSAccessKeyID            string
	AWSSecretAccessKey        string
	AWSEndpointOverride       string
	AppointmentEventsQueueURL string

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables. A local .env file is
// honored when present but never overrides the real environment.
func Load() *Config {
	_ = godotenv.Load()

	duration := getEnvAsDuration("APPOINTMENT_DURATION", 45*time.Minute)
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		OrgTimezone:         getEnv("ORG_TIMEZONE", "UTC"),
		WorkingHoursStart:   getEnv("WORKING_HOURS_START", "09:00"),
		WorkingHoursEnd:     getEnv("WORKING_HOURS_END", "18:00"),
		WorkingDays:         getEnv("WORKING_DAYS", "mon,tue,wed,thu,fri"),
		AppointmentDuration: duration,
		SlotGranularity:     getEnvAsDuration("SLOT_GRANULARITY", duration),
		BookingLockTimeout:  getEnvAsDuration("BOOKING_LOCK_TIMEOUT", 3*time.Second),
		BookingLockTTL:      getEnvAsDuration("BOOKING_LOCK_TTL", 15*time.Second),

		NotifyTimeout:      getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second),
		NotifyMaxAttempts:  getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
		NotifyRetryDelay:   getEnvAsDuration("NOTIFY_RETRY_DELAY", 200*time.Millisecond),
		NotifyUseOutbox:    getEnvAsBool("NOTIFY_OUTBOX", false),
		NotifyOutboxInline: getEnvAsBool("NOTIFY_OUTBOX_INLINE", true),
		OutboxLease:        getEnvAsDuration("OUTBOX_LEASE", time.Minute),
		NotifyEmailTo:      getEnv("NOTIFY_EMAIL_TO", ""),

		GoogleCalendarCredentialsFile: getEnv("GOOGLE_CALENDAR_CREDENTIALS_FILE", ""),
		GoogleCalendarID:              getEnv("GOOGLE_CALENDAR_ID", "primary"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Doctor Portal"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:                 getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:            getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:       getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AppointmentEventsQueueURL: getEnv("APPOINTMENT_EVENTS_QUEUE_URL", ""),

		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate checks the scheduling settings that would otherwise fail at
// booking time.
func (c *Config) Validate() error {
	var errs []error
	if c.AppointmentDuration <= 0 || c.AppointmentDuration%time.Minute != 0 {
		errs = append(errs, fmt.Errorf("APPOINTMENT_DURATION must be a positive whole number of minutes, got %s", c.AppointmentDuration))
	}
	if c.SlotGranularity <= 0 || c.SlotGranularity%time.Minute != 0 {
		errs = append(errs, fmt.Errorf("SLOT_GRANULARITY must be a positive whole number of minutes, got %s", c.SlotGranularity))
	}
	if c.BookingLockTimeout <= 0 {
		errs = append(errs, errors.New("BOOKING_LOCK_TIMEOUT must be positive"))
	}
	if _, err := c.WorkingWindow(); err != nil {
		errs = append(errs, fmt.Errorf("WORKING_HOURS_START/END: %w", err))
	}
	if _, err := c.WorkingWeekdays(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("ORG_TIMEZONE: %w", err))
	}
	if c.NotifyMaxAttempts < 1 {
		errs = append(errs, errors.New("NOTIFY_MAX_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

// WorkingWindow returns the organization-wide daily working hours.
func (c *Config) WorkingWindow() (calendar.Window, error) {
	return calendar.ParseWindow(c.WorkingHoursStart, c.WorkingHoursEnd)
}

// Location returns the organization timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.OrgTimezone)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// WorkingWeekdays parses WORKING_DAYS, a comma-separated list such as "mon,tue".
func (c *Config) WorkingWeekdays() ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(c.WorkingDays, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if len(name) > 3 {
			name = name[:3]
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("WORKING_DAYS: unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
