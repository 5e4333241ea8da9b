package perm

import (
	"fmt"
	"net/http"
)

// PermError reports an action the principal is not allowed to perform.
type PermError struct {
	Principal string
	Action    string
}

func (e *PermError) Error() string {
	if e.Principal == "" {
		return fmt.Sprintf("permission denied: %s", e.Action)
	}
	return fmt.Sprintf("permission denied: %s may not %s", e.Principal, e.Action)
}

// Status is the HTTP status a transport should answer with.
func (e *PermError) Status() int {
	return http.StatusForbidden
}
