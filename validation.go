package gatehouse

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Minimum length, in bytes, of session.secret.
const MinSecretLength = 32

// ValidateIntRange validates that a value is within the given range (inclusive).
func ValidateIntRange(value, minVal, maxVal int) error {
	if value < minVal || value > maxVal {
		return fmt.Errorf("must be between %d and %d, got: %d", minVal, maxVal, value)
	}
	return nil
}

// ValidatePort validates that a port number is valid (1-65535).
func ValidatePort(port int) error {
	return ValidateIntRange(port, 1, 65535)
}

// ValidatePositiveDuration validates that a duration is positive (> 0).
func ValidatePositiveDuration(value time.Duration) error {
	if value <= 0 {
		return fmt.Errorf("must be positive, got: %s", value)
	}
	return nil
}

// ValidateNonNegativeDuration validates that a duration is non-negative (>= 0).
func ValidateNonNegativeDuration(value time.Duration) error {
	if value < 0 {
		return fmt.Errorf("must be non-negative, got: %s", value)
	}
	return nil
}

// ValidateURL validates that a string is an absolute URL.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return errors.New("URL cannot be empty")
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsed.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

// ValidateNonEmpty validates that a string is not empty.
func ValidateNonEmpty(value string) error {
	if value == "" {
		return errors.New("cannot be empty")
	}
	return nil
}

// ValidateOneOf validates that value is one of the allowed options.
func ValidateOneOf(value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("must be one of [%s], got: %q", strings.Join(allowed, ", "), value)
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

type validator struct {
	errs []ValidationError
}

func (v *validator) check(key string, err error) {
	if err != nil {
		v.errs = append(v.errs, ValidationError{Key: key, Message: err.Error()})
	}
}

// ValidateConfig checks everything the gate needs before it can accept
// traffic. Returns all validation errors found, or nil if configuration is
// valid.
//
// This should be called early in server initialization to fail fast on
// misconfigurations.
func ValidateConfig() []ValidationError {
	v := &validator{}

	v.check("auth.google.id", ValidateNonEmpty(Config.String("auth.google.id")))
	v.check("auth.google.secret", ValidateNonEmpty(Config.String("auth.google.secret")))
	v.check("address", ValidateURL(Config.String("address")))

	secret := Config.String("session.secret")
	if secret == "" {
		v.check("session.secret", errors.New("cannot be empty"))
	} else if len(secret) < MinSecretLength {
		v.check("session.secret", fmt.Errorf("must be at least %d bytes, got: %d", MinSecretLength, len(secret)))
	}

	// Redirect targets are optional individually, derived from clientUrl.
	for _, key := range []string{"clientUrl", "auth.successRedirect", "auth.failureRedirect"} {
		if s := Config.String(key); s != "" {
			v.check(key, ValidateURL(s))
		}
	}
	if Config.String("auth.successRedirect") == "" {
		v.check("auth.successRedirect", errors.New("not set and no clientUrl to derive it from"))
	}
	if Config.String("auth.failureRedirect") == "" {
		v.check("auth.failureRedirect", errors.New("not set and no clientUrl to derive it from"))
	}

	if Config.Exists("server.port") {
		v.check("server.port", ValidatePort(Config.Int("server.port")))
	}
	if Config.Exists("server.host") {
		v.check("server.host", ValidateNonEmpty(Config.String("server.host")))
	}
	if (Config.String("server.tls.certFile") == "") != (Config.String("server.tls.keyFile") == "") {
		v.check("server.tls", errors.New("certFile and keyFile must be set together"))
	}
	if Config.Exists("server.security.hstsExpiration") {
		v.check("server.security.hstsExpiration",
			ValidateNonNegativeDuration(Config.Duration("server.security.hstsExpiration")))
	}
	if Config.Exists("server.security.corsMaxAge") {
		v.check("server.security.corsMaxAge",
			ValidateNonNegativeDuration(Config.Duration("server.security.corsMaxAge")))
	}

	v.check("session.idleTimeout", ValidatePositiveDuration(Config.Duration("session.idleTimeout")))
	if Config.Exists("session.maxAge") {
		v.check("session.maxAge", ValidateNonNegativeDuration(Config.Duration("session.maxAge")))
	}
	if Config.Exists("session.sweepInterval") {
		v.check("session.sweepInterval", ValidateNonNegativeDuration(Config.Duration("session.sweepInterval")))
	}
	if Config.Exists("session.store") {
		v.check("session.store", ValidateOneOf(Config.String("session.store"), "memory", "database"))
	}
	if Config.Exists("db.driver") {
		v.check("db.driver", ValidateOneOf(Config.String("db.driver"), "sqlite", "postgres"))
	}
	if Config.Exists("auth.google.prompt") {
		v.check("auth.google.prompt", ValidateOneOf(Config.String("auth.google.prompt"), "", "default", "select_account"))
	}

	return v.errs
}

// FormatValidationErrors formats a slice of validation errors into a readable error message.
func FormatValidationErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range errs {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	sb.WriteString("\nFix these errors in " + ConfigFile + " or GH__ environment variables and try again.")
	return sb.String()
}

// CheckConfig runs ValidateConfig and folds any failures into a single
// ErrConfiguration.
func CheckConfig() error {
	if errs := ValidateConfig(); len(errs) > 0 {
		return ConfigurationErrorf("%s", FormatValidationErrors(errs))
	}
	return nil
}
