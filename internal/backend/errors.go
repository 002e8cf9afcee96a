package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionExpired is returned when the backend answers 401. The dashboard
// drops the session and sends the user back to the login page.
var ErrSessionExpired = errors.New("Sesión expirada. Por favor inicie sesión nuevamente.")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func decodeAPIError(method, path string, status int, body []byte) error {
	if status == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	msg := ""
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = strings.TrimSpace(payload.Error)
		if msg == "" {
			msg = strings.TrimSpace(payload.Message)
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("Error %d: %s", status, http.StatusText(status))
	}
	return &APIError{Status: status, Method: method, Path: path, Message: msg}
}
