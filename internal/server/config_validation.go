// config_validation.go - Startup validation of environment configuration.
//
// Everything is checked up front so a bad deployment fails with one list of
// problems instead of at the first request that touches the broken piece.
package server

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects configuration errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a numbered list of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateRequired records an error when key is unset and returns its value.
func (v *ConfigValidator) ValidateRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
	return value
}

// ValidateURL checks value is an http(s) URL. Empty values are skipped.
func (v *ConfigValidator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
	}
}

// ValidateAddr checks a listen address of the form "host:port" or ":port".
func (v *ConfigValidator) ValidateAddr(key, value string) {
	if value == "" {
		return
	}

	portStr := value
	if i := strings.LastIndex(value, ":"); i >= 0 {
		portStr = value[i+1:]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

func (v *ConfigValidator) ValidateMinLength(key, value string, minLen int) {
	if value == "" {
		return
	}
	if len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters long (got %d)", minLen, len(value)))
	}
}

func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

func (v *ConfigValidator) ValidatePositiveInt(key, value string) {
	if value == "" {
		return
	}
	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}
	if num <= 0 {
		v.AddError(key, "must be a positive integer")
	}
}

// ValidateDuration checks value parses with time.ParseDuration and is positive.
func (v *ConfigValidator) ValidateDuration(key, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 1h, 30m)")
		return
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
	}
}

// ValidateAllConfiguration validates the ESTADIA_* environment and the
// catalog connection settings.
func ValidateAllConfiguration() error {
	v := NewConfigValidator()

	// The catalog is either SQLite (local) or PostgreSQL.
	if os.Getenv("ESTADIA_SQLITE_PATH") == "" {
		dbURL := v.ValidateRequired("DATABASE_URL")
		if dbURL != "" && !strings.HasPrefix(dbURL, "postgres://") && !strings.HasPrefix(dbURL, "postgresql://") {
			v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
		}
	}

	// MinIO rejects access keys shorter than 3 and secrets shorter than 8.
	v.ValidateMinLength("ESTADIA_S3_ACCESS_KEY", v.ValidateRequired("ESTADIA_S3_ACCESS_KEY"), 3)
	v.ValidateMinLength("ESTADIA_S3_SECRET_KEY", v.ValidateRequired("ESTADIA_S3_SECRET_KEY"), 8)

	if endpoint := os.Getenv("ESTADIA_S3_ENDPOINT"); strings.Contains(endpoint, "://") {
		v.ValidateURL("ESTADIA_S3_ENDPOINT", endpoint)
	}

	v.ValidateAddr("ESTADIA_ADDR", os.Getenv("ESTADIA_ADDR"))
	v.ValidateURL("ESTADIA_BASE_URL", os.Getenv("ESTADIA_BASE_URL"))
	v.ValidatePositiveInt("ESTADIA_MAX_UPLOAD_BYTES", os.Getenv("ESTADIA_MAX_UPLOAD_BYTES"))
	v.ValidatePositiveInt("ESTADIA_RATE_LIMIT", os.Getenv("ESTADIA_RATE_LIMIT"))

	v.ValidateEnum("ESTADIA_CLEANUP_ENABLED", os.Getenv("ESTADIA_CLEANUP_ENABLED"), []string{"true", "false"})
	v.ValidateDuration("ESTADIA_CLEANUP_INTERVAL", os.Getenv("ESTADIA_CLEANUP_INTERVAL"))
	v.ValidateDuration("ESTADIA_CLEANUP_MAX_AGE", os.Getenv("ESTADIA_CLEANUP_MAX_AGE"))

	v.ValidateEnum("ESTADIA_BACKUP_ENABLED", os.Getenv("ESTADIA_BACKUP_ENABLED"), []string{"true", "false"})
	v.ValidateDuration("ESTADIA_BACKUP_INTERVAL", os.Getenv("ESTADIA_BACKUP_INTERVAL"))
	if retain := os.Getenv("ESTADIA_BACKUP_RETAIN"); retain != "" {
		// 0 keeps every snapshot
		if n, err := strconv.Atoi(retain); err != nil || n < 0 {
			v.AddError("ESTADIA_BACKUP_RETAIN", "must be a non-negative integer")
		}
	}

	v.ValidateEnum("ESTADIA_LOG_FORMAT", os.Getenv("ESTADIA_LOG_FORMAT"), []string{"json", "text"})
	v.ValidateEnum("ESTADIA_LOG_LEVEL", os.Getenv("ESTADIA_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("ESTADIA_ENV", os.Getenv("ESTADIA_ENV"), []string{"development", "production", "staging"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}

// WarnOnOptionalMissingConfig logs settings that fell back to defaults.
func WarnOnOptionalMissingConfig() {
	var warnings []string

	if os.Getenv("ESTADIA_BASE_URL") == "" {
		warnings = append(warnings, "ESTADIA_BASE_URL not set - upload URLs use http://localhost:8000")
	}
	if os.Getenv("ESTADIA_NEWS_FILE") == "" {
		warnings = append(warnings, "ESTADIA_NEWS_FILE not set - using news.csv in the working directory")
	}
	if os.Getenv("ESTADIA_SQLITE_PATH") != "" {
		warnings = append(warnings, "ESTADIA_SQLITE_PATH set - video catalog is a local SQLite file")
	}
	if os.Getenv("ESTADIA_LOG_FORMAT") == "" {
		warnings = append(warnings, "ESTADIA_LOG_FORMAT not set - using text format (consider 'json' for production)")
	}

	if len(warnings) > 0 {
		Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
