package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tinkerbelle-io/hw-bridge/internal/retry"
)

var (
	// ErrInvalidCredentialsInput means username or password was empty. No request was made.
	ErrInvalidCredentialsInput = errors.New("username and password should be filled in")
	// ErrTransportExhausted means every retry of a network call failed.
	ErrTransportExhausted = retry.ErrExhausted
	// ErrAuthenticationRejected means the vendor answered the login with an error payload.
	ErrAuthenticationRejected = errors.New("authentication rejected")
	// ErrAuthenticationFailed means no valid session could be obtained.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrSwitchDiscoveryFailed means the hub listing could not be fetched.
	ErrSwitchDiscoveryFailed = errors.New("switch discovery failed")
	// ErrSwitchStateFailed means a switch could not be set.
	ErrSwitchStateFailed = errors.New("switch state could not be set")
	// ErrSwitchStateRejected means the vendor answered the action with a non-Success status.
	ErrSwitchStateRejected = errors.New("switch state rejected")
	// ErrOperationTimedOut means the caller's deadline passed before the flow finished.
	ErrOperationTimedOut = errors.New("operation timed out")
	// ErrOperationCanceled means the caller cancelled the flow.
	ErrOperationCanceled = errors.New("operation canceled")
)

// Error is returned by every Orchestrator operation.
// errors.Is matches both Kind and anything wrapped in Err.
type Error struct {
	Op     string
	Target string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Target != "" {
		b.WriteString(" ")
		b.WriteString(e.Target)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// tagContext marks err as a timeout or cancellation when ctx has ended.
func tagContext(ctx context.Context, err error) error {
	switch cerr := ctx.Err(); {
	case cerr == nil:
		return err
	case errors.Is(cerr, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrOperationTimedOut, err)
	default:
		return fmt.Errorf("%w: %w", ErrOperationCanceled, err)
	}
}
