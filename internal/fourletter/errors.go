package fourletter

import (
	"fmt"
	"time"

	units "github.com/docker/go-units"
)

// TimeoutError is returned when a node does not answer within the poll
// timeout.
type TimeoutError struct {
	Command Command
	Address Address
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not respond to '%s' within %s",
		e.Address, e.Command, units.HumanDuration(e.Limit))
}

// ConnectionError wraps a failure to reach or talk to a node.
type ConnectionError struct {
	Address Address
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
