package checkout

import (
	"github.com/go-faster/errors"
)

var (
	// ErrInconsistentState is produced when navigation targets a step whose
	// predecessor is not complete. GoTo treats it as a no-op.
	ErrInconsistentState = errors.New("checkout step not reachable")
	// ErrSubmissionInProgress is returned when Submit is called while a
	// previous call has not settled.
	ErrSubmissionInProgress = errors.New("submission already in progress")
	// ErrSessionClosed is returned when acting on a submitted session.
	ErrSessionClosed = errors.New("checkout session already submitted")
	// ErrSnapshotNotFound is returned when no pending payment snapshot
	// exists for a correlation id.
	ErrSnapshotNotFound = errors.New("payment snapshot not found")
	// ErrPaymentRejected is returned when the payment provider declines to
	// start a payment.
	ErrPaymentRejected = errors.New("payment initiation rejected")
)

// ValidationError blocks advancing a step. It never involves the network.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// SubmissionError wraps a failed call to the order or payment backend.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
