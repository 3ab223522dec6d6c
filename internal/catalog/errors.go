package catalog

import (
	"errors"
	"fmt"
)

// InvariantCode categorizes catalog invariant violations.
type InvariantCode string

const (
	// CodeDanglingReference: an entity references a parent that does not exist.
	CodeDanglingReference InvariantCode = "DANGLING_REFERENCE"

	// CodeMismatchedReference: a physical's logical and allocation ids do not
	// belong together.
	CodeMismatchedReference InvariantCode = "MISMATCHED_REFERENCE"

	// CodeDuplicateID: the id is already used by another entity.
	CodeDuplicateID InvariantCode = "DUPLICATE_ID"

	// CodeDuplicateName: a logical entity with the same name exists in the
	// namespace, or an adapter/namespace name is taken.
	CodeDuplicateName InvariantCode = "DUPLICATE_NAME"

	// CodeDuplicatePlacement: the allocation is already placed on the adapter.
	CodeDuplicatePlacement InvariantCode = "DUPLICATE_PLACEMENT"

	// CodeIncompatibleRowType: a physical row type cannot hold the logical rows.
	CodeIncompatibleRowType InvariantCode = "INCOMPATIBLE_ROW_TYPE"

	// CodeInvalidEntity: the entity's own fields are inconsistent.
	CodeInvalidEntity InvariantCode = "INVALID_ENTITY"

	// CodeUnknownEntity: a drop named an entity that does not exist.
	CodeUnknownEntity InvariantCode = "UNKNOWN_ENTITY"

	// CodeUnknownNamespace: the namespace does not exist.
	CodeUnknownNamespace InvariantCode = "UNKNOWN_NAMESPACE"

	// CodeUnknownAdapter: the adapter does not exist.
	CodeUnknownAdapter InvariantCode = "UNKNOWN_ADAPTER"
)

// InvariantError is returned by a mutation that would break a catalog
// invariant. The mutation is not applied.
type InvariantError struct {
	Code     InvariantCode
	Message  string
	EntityID int64
}

func (e *InvariantError) Error() string {
	if e.EntityID != 0 {
		return fmt.Sprintf("%s: %s (entity=%d)", e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvariantViolation reports whether err is an InvariantError.
func IsInvariantViolation(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// HasCode reports whether err is an InvariantError with the given code.
func HasCode(err error, code InvariantCode) bool {
	var ie *InvariantError
	return errors.As(err, &ie) && ie.Code == code
}

func violation(code InvariantCode, id int64, format string, args ...any) error {
	return &InvariantError{Code: code, EntityID: id, Message: fmt.Sprintf(format, args...)}
}
