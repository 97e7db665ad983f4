package genesis

import (
	"errors"
	"fmt"
)

// APIError is a logical failure reported by the backend in a well-formed
// response (status != success). It is never retried.
type APIError struct {
	Endpoint string
	Status   string
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("genesis %s: status %q", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("genesis %s: status %q: %s", e.Endpoint, e.Status, e.Message)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("genesis %s: http %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}
