package newsapi

import (
	"errors"
	"fmt"
)

const (
	CodeNetworkError   = "E_NETWORK"         // unreachable host, timeout, unexpected status on a control request
	CodeFormatError    = "E_FORMAT"          // payload does not match the expected shape
	CodeTransferFailed = "E_TRANSFER_FAILED" // non-2xx or corrupt response on a file transfer
)

// APIError classifies a failed call against the news server.
type APIError struct {
	Code    string
	Message string
	cause   error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsapi: %s - %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

func newAPIError(code, message string, cause error) *APIError {
	return &APIError{Code: code, Message: message, cause: cause}
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func IsNetworkError(err error) bool  { return IsCode(err, CodeNetworkError) }
func IsFormatError(err error) bool   { return IsCode(err, CodeFormatError) }
func IsTransferError(err error) bool { return IsCode(err, CodeTransferFailed) }
