package storage

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// StoreError is the single error kind surfaced by the remote store. Any
// network, permission, or validation failure from the backing service is
// wrapped in one; callers do not classify causes further.
type StoreError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("store: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeError wraps err in a StoreError, passing through nil.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	se := &StoreError{Op: op, Err: err}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		se.StatusCode = respErr.StatusCode
	}
	return se
}

// IsStoreError reports whether err originated from the remote store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
