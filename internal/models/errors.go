package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel error kinds. Callers branch with errors.Is rather than string
// matching.
var (
	ErrConfig           = errors.New("config error")
	ErrExecutorTimeout  = errors.New("executor timeout")
	ErrExecutorFailed   = errors.New("executor failed")
	ErrExecutorNotFound = errors.New("executor not found")
	ErrReasoningBank    = errors.New("reasoning bank error")
	ErrProtocol         = errors.New("protocol error")
)

// ConfigError reports a malformed or missing configuration option. Fatal at
// startup.
func ConfigError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfig, msg)
}

// TimeoutError reports a reviewer exceeding its wall-clock budget. The vote
// is dropped; peers continue.
func TimeoutError(reviewer string, timeout time.Duration) error {
	return fmt.Errorf("%w: %s exceeded %s", ErrExecutorTimeout, reviewer, timeout)
}

// ExecutorError reports a spawn or parse failure other than a missing
// binary.
func ExecutorError(reviewer string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrExecutorFailed, reviewer, cause)
}

// ReasoningError wraps a store failure. Swallowed at the tool-handler
// boundary so an evaluation still returns a result.
func ReasoningError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrReasoningBank, op, cause)
}
