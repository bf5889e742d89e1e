package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port  string
		Host  string
		Debug bool
	}
	// Backend is the remote conference REST API that owns attendees, talks,
	// events and feedback records. When URL is empty the service runs against
	// the local gorm store configured in Database.DSN.
	Backend struct {
		URL      string
		APIToken string
		Timeout  time.Duration
	}
	Database struct {
		DSN      string
		RedisURI string
	}
	Cache struct {
		TTL time.Duration
	}
	Feedback struct {
		// VirtualEmail is the reserved address a virtual attendee verifies with.
		VirtualEmail string
		// VirtualAttendeeID is sent as the attendee of virtual submissions when
		// positive. Zero sends no attendee at all.
		VirtualAttendeeID int
		VerificationSecret string
		VerificationTTL    time.Duration
		EnrichConcurrency  int
	}
	Resend struct {
		APIKey        string
		DefaultSender string
	}
	Sentry struct {
		DSN string
	}
}

func Load() (*Config, error) {

	envStack := os.Getenv("ENV_STACK")

	if envStack != "" {
		filePath := "./env-files/.env." + envStack
		err := godotenv.Load(filePath)
		if err != nil {
			fmt.Printf("Error loading .env file: %s\n", err)
		}
	}

	c := &Config{}

	c.Server.Port = os.Getenv("SERVER_PORT")
	if c.Server.Port == "" {
		c.Server.Port = "1927"
	}

	c.Server.Host = os.Getenv("SERVER_HOST")
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}

	c.Server.Debug = os.Getenv("ENABLE_DEBUG_LOGS") == "true"

	c.Backend.URL = strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	c.Backend.APIToken = os.Getenv("BACKEND_API_TOKEN")

	var err error
	if c.Backend.Timeout, err = durationEnv("BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return c, err
	}

	c.Database.DSN = os.Getenv("DATABASE_DSN")
	c.Database.RedisURI = os.Getenv("REDIS_URI")

	if c.Backend.URL == "" && c.Database.DSN == "" {
		return c, fmt.Errorf("either BACKEND_URL or DATABASE_DSN must be set")
	}

	if c.Cache.TTL, err = durationEnv("CACHE_TTL", 5*time.Minute); err != nil {
		return c, err
	}

	c.Feedback.VirtualEmail = os.Getenv("FEEDBACK_VIRTUAL_EMAIL")
	if c.Feedback.VirtualEmail == "" {
		c.Feedback.VirtualEmail = "virtual@speakwise.local"
	}

	if c.Feedback.VirtualAttendeeID, err = intEnv("FEEDBACK_VIRTUAL_ATTENDEE_ID", 0); err != nil {
		return c, err
	}

	c.Feedback.VerificationSecret = os.Getenv("FEEDBACK_VERIFICATION_SECRET")
	if c.Feedback.VerificationSecret == "" {
		return c, fmt.Errorf("FEEDBACK_VERIFICATION_SECRET is required")
	}

	if c.Feedback.VerificationTTL, err = durationEnv("FEEDBACK_VERIFICATION_TTL", 15*time.Minute); err != nil {
		return c, err
	}

	if c.Feedback.EnrichConcurrency, err = intEnv("ENRICHMENT_CONCURRENCY", 8); err != nil {
		return c, err
	}
	if c.Feedback.EnrichConcurrency < 1 {
		return c, fmt.Errorf("ENRICHMENT_CONCURRENCY must be at least 1, got %d", c.Feedback.EnrichConcurrency)
	}

	c.Resend.APIKey = os.Getenv("RESEND_API_KEY")
	c.Resend.DefaultSender = os.Getenv("RESEND_DEFAULT_SENDER")
	if c.Resend.DefaultSender == "" {
		c.Resend.DefaultSender = "feedback@speakwise.app"
	}

	c.Sentry.DSN = os.Getenv("SENTRY_DSN")

	return c, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s should be a duration like 30s or 5m, got %q: %w", key, raw, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s should be an integer, got %q: %w", key, raw, err)
	}
	return n, nil
}
