package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules spanning
// several fields.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.UDP.MaxTimeout > 0 && cfg.UDP.MaxTimeout < cfg.UDP.Timeout {
		return fmt.Errorf("udp: max_timeout (%v) is less than timeout (%v)", cfg.UDP.MaxTimeout, cfg.UDP.Timeout)
	}

	if cfg.TCP.MaxFragmentSize > cfg.TCP.MaxRecordSize && cfg.TCP.MaxRecordSize > 0 {
		return fmt.Errorf("tcp: max_fragment_size (%d) exceeds max_record_size (%d)", cfg.TCP.MaxFragmentSize, cfg.TCP.MaxRecordSize)
	}

	if cfg.RateLimit.Burst > 0 && cfg.RateLimit.RequestsPerSecond == 0 {
		return fmt.Errorf("rate_limit: burst is set but requests_per_second is 0")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
