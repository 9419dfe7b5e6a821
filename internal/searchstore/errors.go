package searchstore

import "fmt"

// RetryableError marks a transient search-engine failure (timeouts,
// overload, 5xx). Callers retry these with backoff; anything else is
// treated as permanent for the record in question.
type RetryableError struct {
	Op     string
	Status int
	Err    error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}
