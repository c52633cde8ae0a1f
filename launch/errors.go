package launch

import "errors"

var (
	// ErrValidation marks input rejected before any write is attempted.
	ErrValidation = errors.New("validation failed")

	// ErrOperationFailed marks any store or network failure.
	ErrOperationFailed = errors.New("operation failed")

	// ErrStoreRead marks a failed project subscription.
	ErrStoreRead = errors.New("store read failed")

	// ErrStoreWrite marks a failed create or update.
	ErrStoreWrite = errors.New("store write failed")

	// ErrNotification marks a failed outbound notification.
	ErrNotification = errors.New("notification failed")

	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("not authenticated")
)
