package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// OperationError records which operation failed and for which request.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err, returning nil when err is nil so call sites can
// wrap results unconditionally.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// ErrorFields returns zap fields for err. When err carries an OperationError
// the innermost one names the operation that actually failed.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}

	var failed *OperationError
	for cur := err; cur != nil; {
		var opErr *OperationError
		if !errors.As(cur, &opErr) {
			break
		}
		failed = opErr
		cur = opErr.Err
	}
	if failed != nil {
		fields = append(fields, zap.String("failed_operation", failed.Operation))
		if failed.RequestID != "" {
			fields = append(fields, zap.String("failed_request_id", failed.RequestID))
		}
	}
	return fields
}
