package store

import "github.com/sitan2008/spatio/internal/errs"

// ErrDatabaseClosed is returned by any Engine operation after Close has
// been called. The root package re-exports this as spatio.ErrDatabaseClosed.
var ErrDatabaseClosed = errs.ErrDatabaseClosed
