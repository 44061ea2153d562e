package platform

import (
	"errors"
	"fmt"
)

// APIError is a remote rejection: the platform answered with a non-2xx status
// and, usually, a detail message.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("platform: status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("platform: status %d", e.Status)
}

// IsRemoteRejection reports whether err is a non-2xx platform response, as
// opposed to a transport failure.
func IsRemoteRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
