package editor

import (
	"fmt"
	"net/http"
)

// ClientError is an edit rejected because of what the client asked for.
// Status follows HTTP conventions.
type ClientError struct {
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

func newClientError(status int, format string, args ...any) *ClientError {
	return &ClientError{Status: status, Message: fmt.Sprintf(format, args...)}
}

func errGone(key string) *ClientError {
	return newClientError(http.StatusGone, "gone: object %s does not exist", key)
}

func errBadRequest(format string, args ...any) *ClientError {
	return newClientError(http.StatusBadRequest, format, args...)
}
