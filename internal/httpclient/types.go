package httpclient

import (
	"fmt"
	"net/http"
)

// HTTPError represents a non-success HTTP response
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// Response is a fully read HTTP response.
// It is returned for every status code, so callers can inspect the body of error responses.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	URL        string
}

// OK reports whether the status code is 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns an *HTTPError for non-2xx responses and nil otherwise
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return NewHTTPError(r.StatusCode, r.URL, r.Status)
}
