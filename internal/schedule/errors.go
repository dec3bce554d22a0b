package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSchedule is returned when an agent has no current schedule item.
// Callers querying before the first successful generation get this rather
// than blocking; they are expected to poll.
var ErrNoSchedule = errors.New("no current schedule")

// ErrAgentNotFound is returned for unknown agent identifiers.
var ErrAgentNotFound = errors.New("agent not found")

// ValidationError reports a malformed schedule payload: missing fields,
// unknown status values, or unparseable time strings. It is always
// recovered locally; the previous schedule state is retained and
// generation is retried on the next tick.
type ValidationError struct {
	Reason  string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schedule validation failed: missing required fields: %s",
			strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schedule validation failed: %s", e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
