package spatio

import (
	"errors"

	"github.com/sitan2008/spatio/internal/errs"
)

// Sentinel errors returned by the public API. Use errors.Is to test for
// them; I/O failures from the durable backing are wrapped around a
// distinct ErrIOFailure sentinel so callers can still match on it.
var (
	ErrInvalidCoordinate    = errs.ErrInvalidCoordinate
	ErrInvalidConfiguration = errs.ErrInvalidConfiguration
	ErrInvalidTrajectory    = errs.ErrInvalidTrajectory
	ErrInvalidArgument      = errs.ErrInvalidArgument
	ErrDatabaseClosed       = errs.ErrDatabaseClosed
	ErrIOFailure            = errors.New("spatio: durable backing i/o failure")
)
