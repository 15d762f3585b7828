package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by APIError.
const (
	CodeUnauthorized = "unauthorized" // expired credential, recoverable via renewal
	CodeDomain       = "domain"       // backend validation failure, surfaced verbatim
	CodeDecode       = "decode"       // response body did not match the envelope
)

// APIError is a typed failure decoded from the backend's response envelope.
// Transport-level failures (connection refused, timeouts) are not APIErrors;
// they surface as wrapped errors from the HTTP client.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Code)
}

// IsUnauthorized reports whether err is an expired-credential failure,
// the only failure class the renewal protocol recovers from.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsDomain reports whether err is a backend validation failure whose
// message should be shown to the user as-is.
func IsDomain(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeDomain
}

// IsTransport reports whether err is a transport-level failure: anything
// that never produced a decodable backend response, plus server 5xx.
// Pagination fetches treat these as a silent end-of-list.
func IsTransport(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return err != nil
}
