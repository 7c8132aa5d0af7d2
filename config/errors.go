package config

import (
	"fmt"
	"strings"
)

// Error categories carried by ConfigError
const (
	CategoryMissing = "missing"
	CategoryInvalid = "invalid"
	// CategoryLoad marks a source that could not be read or parsed
	CategoryLoad = "load"
)

// ConfigError describes one configuration problem and how to fix it.
// Messages are lowercase so they compose inside wrapped errors.
//
//nolint:revive // config.ConfigError reads better than config.Error at call sites
type ConfigError struct {
	Category string   // CategoryMissing, CategoryInvalid or CategoryLoad
	Field    string   // koanf path ("retry.maxdelay") or the source for load failures
	Message  string   // what is wrong
	Action   string   // how to fix it, may be empty
	Details  []string // extra hints, joined with "; "
	cause    error
}

// Error renders "config_<category>: <field> <message> <action> <details>", skipping empty parts
func (e *ConfigError) Error() string {
	parts := make([]string, 0, 5)
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	for _, p := range []string{e.Field, e.Message, e.Action} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the parser or filesystem error behind a load failure
func (e *ConfigError) Unwrap() error { return e.cause }

// NewMissingFieldError reports a required key with no value. The action names both
// ways to supply it.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", envVar, yamlPath),
	}
}

// NewInvalidFieldError reports a value outside its allowed set
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// NewValidationError reports a value that breaks a rule other than an enumeration
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
}

// NewLoadError reports a configuration source that could not be read or parsed
func NewLoadError(source string, cause error) *ConfigError {
	return &ConfigError{
		Category: CategoryLoad,
		Field:    source,
		Message:  fmt.Sprintf("cannot load: %v", cause),
		Action:   "check the file exists and is valid YAML",
		cause:    cause,
	}
}
