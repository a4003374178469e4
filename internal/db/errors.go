package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by any operation on an engine that has not
	// been connected or has been closed.
	ErrNotConnected = errors.New("database is not connected")

	// ErrTxRolledBack is returned by Commit when a nested bracket already
	// rolled the transaction back.
	ErrTxRolledBack = errors.New("transaction was rolled back")
)

// StorageError wraps a driver-level failure with the engine operation that
// produced it. The driver error stays reachable through errors.Is/As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
