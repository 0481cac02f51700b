package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// Encryption key: must be exactly 64 hex chars (32 bytes)
	if c.Encryption.Key == "" {
		errs = append(errs, "ENCRYPTION_KEY is required")
	} else if len(c.Encryption.Key) != 64 {
		errs = append(errs, "ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)")
	} else if _, err := hex.DecodeString(c.Encryption.Key); err != nil {
		errs = append(errs, "ENCRYPTION_KEY must be valid hex")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// WhatsApp bot credentials: both or neither
	if (c.WhatsApp.InstanceID == "") != (c.WhatsApp.Token == "") {
		errs = append(errs, "WHATSAPP_INSTANCE_ID and WHATSAPP_TOKEN must be set together")
	}

	// OpenAI
	if c.OpenAI.APIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required")
	}

	// Scheduler
	if c.Scheduler.SweepInterval < 10*time.Second {
		errs = append(errs, "SCHEDULER_SWEEP_INTERVAL must be at least 10s")
	}
	if _, err := loadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("SCHEDULER_TIMEZONE %q is not a valid IANA zone", c.Scheduler.Timezone))
	}

	// CORS: warn on wildcard, it disables credentialed requests
	for _, o := range c.CORS.AllowedOrigins {
		if o == "*" {
			slog.Warn("CORS allows all origins; dashboard cookies will not be sent")
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, errors.New("empty timezone")
	}
	return time.LoadLocation(name)
}
