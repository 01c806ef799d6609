package common

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// maxQueryLength bounds free-text query parameters
const maxQueryLength = 100

// GetPageParam returns the "page" query parameter, 1 when absent.
// Anything other than a positive integer is an error.
func GetPageParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, nil
	}

	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("page must be an integer, got %q", raw)
	}
	if page < 1 {
		return 0, fmt.Errorf("page must be at least 1, got %d", page)
	}
	return page, nil
}

// GetRequiredQueryParam returns a trimmed, non-empty query parameter
func GetRequiredQueryParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	if len(value) > maxQueryLength {
		return "", fmt.Errorf("%s must be at most %d characters", name, maxQueryLength)
	}
	return value, nil
}
