package training

import "errors"

var (
	// ErrDuplicateSubmission: the owner already has a module that has not
	// reached a terminal status.
	ErrDuplicateSubmission = errors.New("training: owner already has an outstanding module")

	// ErrConsistencyViolation: the store cannot find a module the queue handed
	// out. Queue and store have diverged; the worker stops instead of retrying.
	ErrConsistencyViolation = errors.New("training: queue and store disagree about module")

	ErrInvalidTransition = errors.New("training: invalid status transition")
	ErrInvalidRequest    = errors.New("training: invalid request")
)
