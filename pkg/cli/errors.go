package cli

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/trafficdump/pkg/config"
)

// Exit codes returned by the trafficdump command.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfig       = 2
	ExitVerification = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// VerificationError reports replay files that failed verification.
type VerificationError struct {
	Failed int
	Total  int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%d of %d replay files failed verification", e.Failed, e.Total)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// FromValidation converts a config.ValidationError into a ConfigError
// naming every offending field. Other errors are wrapped unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		return NewConfigError("", err.Error())
	}

	fields := make([]string, 0, len(verr.Errors))
	msgs := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
		msgs = append(msgs, fe.Error())
	}
	return NewConfigError(strings.Join(fields, ", "), strings.Join(msgs, "; "))
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	var (
		cfgErr    *ConfigError
		verifyErr *VerificationError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &verifyErr):
		return ExitVerification
	default:
		return ExitFailure
	}
}
