package whopapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-200 response from the platform API.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("whop api: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("whop api: %s: %s", e.Code, e.Description)
}

// IsNotFound reports whether the platform said the resource does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		// Best effort; the body may not be JSON at all.
		_ = json.Unmarshal(body, apiErr)
	}

	return apiErr
}
