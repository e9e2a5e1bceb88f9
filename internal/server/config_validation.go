// config_validation.go - Startup validation of the FD_* environment.
//
// Collects every problem before the server starts so a bad deployment fails
// with one readable message instead of at the first upload.
package server

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator validates application configuration.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateURL validates that a value is an http(s) URL.
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
	}
}

// ValidateListenAddr accepts ":port" and "host:port".
func (v *ConfigValidator) ValidateListenAddr(key, value string) {
	if value == "" {
		return
	}

	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(key, "must be host:port or :port")
		return
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

// ValidateEnum validates that a value is one of allowed options.
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

// ValidateNonNegativeInt validates that a value is an integer >= 0.
func (v *ConfigValidator) ValidateNonNegativeInt(key, value string) {
	if value == "" {
		return
	}

	num, err := strconv.Atoi(value)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}

	if num < 0 {
		v.AddError(key, "must not be negative")
	}
}

// ValidateDuration validates a Go duration string such as "90s" or "2m".
func (v *ConfigValidator) ValidateDuration(key, value string) {
	if value == "" {
		return
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 30s, 2m, 1h)")
		return
	}
	if d < 0 {
		v.AddError(key, "must not be negative")
	}
}

// ValidateByteSize validates a size such as "32MiB", "10MB" or "1048576".
func (v *ConfigValidator) ValidateByteSize(key, value string) {
	if value == "" {
		return
	}

	if _, err := humanize.ParseBytes(value); err != nil {
		v.AddError(key, fmt.Sprintf("must be a byte size (e.g., 32MiB): %v", err))
	}
}

// ValidateAllConfiguration performs comprehensive validation of all configuration.
func ValidateAllConfiguration() error {
	v := NewConfigValidator()

	v.ValidateListenAddr("FD_ADDR", os.Getenv("FD_ADDR"))
	v.ValidateByteSize("FD_MAX_UPLOAD_BYTES", os.Getenv("FD_MAX_UPLOAD_BYTES"))
	v.ValidateDuration("FD_READ_TIMEOUT", os.Getenv("FD_READ_TIMEOUT"))
	v.ValidateDuration("FD_SWEEP_INTERVAL", os.Getenv("FD_SWEEP_INTERVAL"))
	v.ValidateDuration("FD_SWEEP_MAX_AGE", os.Getenv("FD_SWEEP_MAX_AGE"))
	v.ValidateNonNegativeInt("FD_UPLOAD_RATE", os.Getenv("FD_UPLOAD_RATE"))
	v.ValidateEnum("FD_TRUST_PROXY", os.Getenv("FD_TRUST_PROXY"), []string{"true", "false"})
	v.ValidateEnum("FD_STORE_MODE", os.Getenv("FD_STORE_MODE"), []string{string(StoreModePayload), string(StoreModeRaw)})

	if dir := os.Getenv("FD_UPLOAD_DIR"); dir != "" && strings.TrimSpace(dir) == "" {
		v.AddError("FD_UPLOAD_DIR", "must not be blank")
	}

	// Catalog configuration
	kind := os.Getenv("FD_CATALOG")
	v.ValidateEnum("FD_CATALOG", kind, []string{"none", "badger", "postgres"})
	if kind == "postgres" {
		dbURL := os.Getenv("DATABASE_URL")
		switch {
		case dbURL == "":
			v.AddError("DATABASE_URL", "required when FD_CATALOG=postgres")
		case !strings.HasPrefix(dbURL, "postgres://") && !strings.HasPrefix(dbURL, "postgresql://"):
			v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
		}
	}

	// Mirror configuration: all or nothing
	mirrorVars := []string{"FD_S3_ENDPOINT", "FD_S3_ACCESS_KEY", "FD_S3_SECRET_KEY", "FD_BUCKET"}
	var set, missing []string
	for _, k := range mirrorVars {
		if os.Getenv(k) == "" {
			missing = append(missing, k)
		} else {
			set = append(set, k)
		}
	}
	if len(set) > 0 && len(missing) > 0 {
		v.AddError("FD_S3_*", "mirror is partially configured; missing "+strings.Join(missing, ", "))
	}
	if endpoint := os.Getenv("FD_S3_ENDPOINT"); strings.Contains(endpoint, "://") {
		v.ValidateURL("FD_S3_ENDPOINT", endpoint)
	}

	// Log configuration
	v.ValidateEnum("FD_LOG_FORMAT", os.Getenv("FD_LOG_FORMAT"), []string{"json", "text"})
	v.ValidateEnum("FD_LOG_LEVEL", os.Getenv("FD_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("FD_ENV", os.Getenv("FD_ENV"), []string{"development", "production", "staging"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}

// WarnOnOptionalMissingConfig logs hints for settings worth reviewing.
func WarnOnOptionalMissingConfig() {
	warnings := make([]string, 0)

	if os.Getenv("FD_MAX_UPLOAD_BYTES") == "0" {
		warnings = append(warnings, "FD_MAX_UPLOAD_BYTES=0 - request bodies are unbounded")
	}

	if os.Getenv("FD_STORE_MODE") == string(StoreModeRaw) {
		warnings = append(warnings, "FD_STORE_MODE=raw - stored files include multipart framing")
	}

	if c := os.Getenv("FD_CATALOG"); c == "" || c == "none" {
		warnings = append(warnings, "FD_CATALOG not set - uploads are not recorded")
	}

	if os.Getenv("FD_LOG_FORMAT") == "" && os.Getenv("FD_ENV") != "production" {
		warnings = append(warnings, "FD_LOG_FORMAT not set - using text format (consider 'json' for production)")
	}

	if len(warnings) > 0 {
		Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
