// Package errs holds the sentinel errors shared by every internal layer so
// that a single definition backs both internal checks (errors.Is) and the
// public spatio.Err* re-exports.
package errs

import "errors"

var (
	ErrInvalidCoordinate   = errors.New("spatio: invalid coordinate")
	ErrInvalidConfiguration = errors.New("spatio: invalid configuration")
	ErrInvalidTrajectory   = errors.New("spatio: invalid trajectory")
	ErrInvalidArgument     = errors.New("spatio: invalid argument")
	ErrDatabaseClosed     = errors.New("spatio: database closed")
)
