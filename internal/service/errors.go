package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSignalTextEmpty     = errors.New("signal text is required")
	ErrSignalIDMissing     = errors.New("signal id is required")
	ErrSynthesisInProgress = errors.New("synthesis already in progress")
)

// OracleError is a fatal failure of an external judgement call. It always
// names the operation that needed the oracle; synthesis never degrades to a
// weaker heuristic when one of these occurs.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: oracle unavailable", e.Op)
	}
	return fmt.Sprintf("%s: oracle failed: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// LockHeldError reports a live competing synthesis run. Callers can retry
// later or report busy; stale locks never surface as this error.
type LockHeldError struct {
	Workspace  string
	HolderPID  int
	AcquiredAt time.Time
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("workspace %s: %v (held by pid %d since %s)",
		e.Workspace, ErrSynthesisInProgress, e.HolderPID, e.AcquiredAt.Format(time.RFC3339))
}

func (e *LockHeldError) Unwrap() error { return ErrSynthesisInProgress }
