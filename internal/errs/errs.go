// Package errs defines the error classes every command reports at its boundary.
package errs

import "errors"

var (
	// ErrInputFormat marks malformed tabular input: unparsable file, missing or reserved column.
	ErrInputFormat = errors.New("input format")
	// ErrStore marks connectivity or write failures against the document store.
	ErrStore = errors.New("store")
	// ErrModel marks entity extraction or sentiment scoring failures.
	ErrModel = errors.New("model")
	// ErrConfig marks invalid configuration.
	ErrConfig = errors.New("config")
)

// Process exit codes, one per error class.
const (
	ExitOK = iota
	ExitFailure
	ExitInput
	ExitStore
	ExitModel
	ExitConfig
)

// ExitCode maps err to the process exit code of its class.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInputFormat):
		return ExitInput
	case errors.Is(err, ErrStore):
		return ExitStore
	case errors.Is(err, ErrModel):
		return ExitModel
	case errors.Is(err, ErrConfig):
		return ExitConfig
	default:
		return ExitFailure
	}
}
