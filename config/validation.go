package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report koanf paths instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags and the cross-field rules the tags
// cannot express. The first failure is returned as a *ConfigError.
func Validate(cfg *Config) error {
	cfg.Tokens.Redis.Enabled = cfg.Tokens.Backend == TokenBackendRedis

	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return fieldError(validationErrors[0])
		}
		return err
	}

	if cfg.Retry.MaxDelay > 0 && cfg.Retry.MaxDelay < cfg.Retry.Delay {
		return NewValidationError("retry.maxdelay", fmt.Sprintf("must not be below retry.delay (%s)", cfg.Retry.Delay))
	}
	return nil
}

// fieldError converts a validator failure into a *ConfigError keyed by its koanf path
func fieldError(fe validator.FieldError) *ConfigError {
	field := koanfPath(fe.Namespace())

	switch fe.Tag() {
	case "required", "required_if":
		return NewMissingFieldError(field, envVarFor(field), field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid URL %q", fmt.Sprint(fe.Value())), nil)
	case "startswith":
		return NewInvalidFieldError(field, fmt.Sprintf("must start with %q", fe.Param()), nil)
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be above %s", fe.Param()), nil)
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	default:
		return NewValidationError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}

// koanfPath turns "Config.retry.statuses[1]" into "retry.statuses[1]"
func koanfPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// envVarFor returns the environment variable that sets field
func envVarFor(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
