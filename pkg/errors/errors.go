// Package errors provides custom error types for the burst2safe system.
// These errors enable programmatic error checking and carry the offending
// swath, polarization, and list names needed to debug a failed assembly.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the burst2safe system
var (
	// ErrInvalidGroup indicates that a burst set does not form a legal merge group
	ErrInvalidGroup = errors.New("invalid burst group")

	// ErrStructuralMismatch indicates malformed or incompatible source metadata
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrUnsupportedConfiguration indicates a caller defect such as an unknown
	// timing mode or a line window on a non-line-indexed list
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrSearchFailed indicates that an ASF Search query failed or was empty
	ErrSearchFailed = errors.New("search failed")

	// ErrDownloadFailed indicates that a burst download did not complete
	ErrDownloadFailed = errors.New("download failed")

	// ErrCredentialsRequired indicates that Earthdata credentials are missing
	ErrCredentialsRequired = errors.New("credentials required")
)

// InvalidGroupError represents a burst set that violates a merge-group invariant
type InvalidGroupError struct {
	Swath        string
	Polarization string
	Message      string
}

// Error implements the error interface
func (e *InvalidGroupError) Error() string {
	switch {
	case e.Swath != "" && e.Polarization != "":
		return fmt.Sprintf("invalid burst group (swath %s, polarization %s): %s", e.Swath, e.Polarization, e.Message)
	case e.Swath != "":
		return fmt.Sprintf("invalid burst group (swath %s): %s", e.Swath, e.Message)
	default:
		return fmt.Sprintf("invalid burst group: %s", e.Message)
	}
}

// Is implements errors.Is support
func (e *InvalidGroupError) Is(target error) bool {
	return target == ErrInvalidGroup
}

// NewInvalidGroupError creates a new InvalidGroupError
func NewInvalidGroupError(swath, polarization, message string) *InvalidGroupError {
	return &InvalidGroupError{Swath: swath, Polarization: polarization, Message: message}
}

// StructuralMismatchError represents source metadata whose structure does not
// match what the merge engine requires
type StructuralMismatchError struct {
	List    string
	Message string
}

// Error implements the error interface
func (e *StructuralMismatchError) Error() string {
	if e.List != "" {
		return fmt.Sprintf("structural mismatch in %s: %s", e.List, e.Message)
	}
	return fmt.Sprintf("structural mismatch: %s", e.Message)
}

// Is implements errors.Is support
func (e *StructuralMismatchError) Is(target error) bool {
	return target == ErrStructuralMismatch
}

// NewStructuralMismatchError creates a new StructuralMismatchError
func NewStructuralMismatchError(list, message string) *StructuralMismatchError {
	return &StructuralMismatchError{List: list, Message: message}
}

// UnsupportedConfigurationError represents a programmer or caller defect,
// such as an unrecognized subswath timing mode
type UnsupportedConfigurationError struct {
	Component string
	Message   string
}

// Error implements the error interface
func (e *UnsupportedConfigurationError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("unsupported configuration in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("unsupported configuration: %s", e.Message)
}

// Is implements errors.Is support
func (e *UnsupportedConfigurationError) Is(target error) bool {
	return target == ErrUnsupportedConfiguration
}

// NewUnsupportedConfigurationError creates a new UnsupportedConfigurationError
func NewUnsupportedConfigurationError(component, message string) *UnsupportedConfigurationError {
	return &UnsupportedConfigurationError{Component: component, Message: message}
}

// SearchError represents an error from the ASF Search API
type SearchError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ASF Search error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ASF Search error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SearchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SearchError) Is(target error) bool {
	return target == ErrSearchFailed
}

// NewSearchError creates a new SearchError
func NewSearchError(statusCode int, message string, err error) *SearchError {
	return &SearchError{StatusCode: statusCode, Message: message, Err: err}
}

// DownloadError represents a failed burst download
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *DownloadError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("failed to download %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *DownloadError) Is(target error) bool {
	return target == ErrDownloadFailed
}

// NewDownloadError creates a new DownloadError
func NewDownloadError(url string, attempts int, err error) *DownloadError {
	return &DownloadError{URL: url, Attempts: attempts, Err: err}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

// Helper functions for error checking

// IsInvalidGroup checks if an error is an invalid group error
func IsInvalidGroup(err error) bool {
	return errors.Is(err, ErrInvalidGroup)
}

// IsStructuralMismatch checks if an error is a structural mismatch error
func IsStructuralMismatch(err error) bool {
	return errors.Is(err, ErrStructuralMismatch)
}

// IsUnsupportedConfiguration checks if an error is an unsupported configuration error
func IsUnsupportedConfiguration(err error) bool {
	return errors.Is(err, ErrUnsupportedConfiguration)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCredentialsRequired checks if an error is a missing credentials error
func IsCredentialsRequired(err error) bool {
	return errors.Is(err, ErrCredentialsRequired)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}
