package types

import "errors"

var (
	ErrAreaNotFound       = errors.New("no registered area matches request")
	ErrImageryUnavailable = errors.New("imagery unavailable")
	ErrDetectionFailed    = errors.New("detection failed")
	ErrTaskFailed         = errors.New("task failed")
	ErrInvalidTask        = errors.New("invalid task")
)
