package deviceagent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CommandFailedError reports a remote command that exited nonzero, or that
// produced output violating an expected contract (e.g. single-line mode).
// Output carries whatever the command printed before failing.
type CommandFailedError struct {
	Serial string
	Msg    string
	Output []string
}

func (e *CommandFailedError) Error() string {
	if len(e.Output) == 0 {
		return fmt.Sprintf("device %s: %s", e.Serial, e.Msg)
	}
	return fmt.Sprintf("device %s: %s: %s", e.Serial, e.Msg, strings.Join(e.Output, "\n"))
}

// TimeoutError reports that the timeout/retry budget for an operation was
// exhausted. It signals the device may be unresponsive, which is distinct
// from a command failing on a live device.
type TimeoutError struct {
	Serial  string
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("device %s: %s timed out after %s", e.Serial, e.Op, e.Timeout)
}

// DeviceUnreachableError reports that the device dropped offline
// mid-operation.
type DeviceUnreachableError struct {
	Serial string
	State  string
}

func (e *DeviceUnreachableError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("device %s is unreachable", e.Serial)
	}
	return fmt.Sprintf("device %s is unreachable (state %q)", e.Serial, e.State)
}

// InvalidArgumentError reports a malformed caller-supplied value, detected
// before any remote call is made.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return e.Msg }

// PreconditionError reports an operation that cannot proceed on this device
// (e.g. enabling root on a user build).
type PreconditionError struct {
	Serial string
	Msg    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("device %s: %s", e.Serial, e.Msg)
}

// IsCommandFailed reports whether err is (or wraps) a CommandFailedError.
func IsCommandFailed(err error) bool {
	var target *CommandFailedError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsDeviceUnreachable reports whether err is (or wraps) a
// DeviceUnreachableError.
func IsDeviceUnreachable(err error) bool {
	var target *DeviceUnreachableError
	return errors.As(err, &target)
}

// IsInvalidArgument reports whether err is (or wraps) an
// InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var target *InvalidArgumentError
	return errors.As(err, &target)
}

// commandOutput extracts the partial output attached to a command failure.
func commandOutput(err error) []string {
	var cmdErr *CommandFailedError
	if errors.As(err, &cmdErr) {
		return cmdErr.Output
	}
	return nil
}
