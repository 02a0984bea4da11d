package datastore

import (
	"errors"
	"fmt"
)

// Kind classifies a StorageError so callers outside this package can
// branch on category without string matching.
type Kind int

const (
	KindDecode Kind = iota
	KindSchema
	KindConstraint
	KindResource
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindSchema:
		return "schema"
	case KindConstraint:
		return "constraint"
	case KindResource:
		return "resource"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// StorageError is the boundary error type: a Kind, a human-readable
// message, and key-value context (table name, column, offending value;
// never a raw filesystem path or credential).
type StorageError struct {
	Kind    Kind
	Message string
	Context map[string]string
	Err     error
}

func (e *StorageError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("datastore: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("datastore: %s: %s %v", e.Kind, e.Message, e.Context)
}

func (e *StorageError) Unwrap() error { return e.Err }

func newStorageError(kind Kind, msg string, ctx map[string]string) *StorageError {
	return &StorageError{Kind: kind, Message: msg, Context: ctx}
}

func errUnknownTableID(id uint32) *StorageError {
	return &StorageError{Kind: KindSchema, Message: "unknown table", Context: map[string]string{"table_id": fmt.Sprint(id)}, Err: ErrUnknownTable}
}

func errTxClosed() *StorageError {
	return &StorageError{Kind: KindLifecycle, Message: "transaction already closed", Err: ErrTxClosed}
}

// ErrUnknownTable is wrapped by a *StorageError{Kind: KindSchema} whenever a
// table id doesn't resolve against the catalog.
var ErrUnknownTable = errors.New("datastore: unknown table")

// ErrTxClosed is wrapped by a *StorageError{Kind: KindLifecycle} for any
// operation attempted against a transaction that already committed or
// rolled back.
var ErrTxClosed = errors.New("datastore: transaction already closed")

// ErrWriteGuardPoisoned is returned by BeginMutTx after a prior writer
// failed mid-commit, leaving CommittedState in an indeterminate state. A
// lifecycle error expected to end the process, not be retried.
var ErrWriteGuardPoisoned = errors.New("datastore: write guard poisoned")

// InsertErrorKind distinguishes the ways Insert/Update can fail.
type InsertErrorKind int

const (
	InsertErrTypeMismatch InsertErrorKind = iota
	InsertErrUniqueViolation
	InsertErrSchemaMismatch
)

// InsertError is returned by Insert/UpdateByPK. For InsertErrUniqueViolation
// it carries the RowPointer of the row already occupying the conflicting
// key.
type InsertError struct {
	Kind      InsertErrorKind
	Column    string
	Conflict  RowPointer
	HasRow    bool
	detailErr error
}

func (e *InsertError) Error() string {
	switch e.Kind {
	case InsertErrUniqueViolation:
		return fmt.Sprintf("datastore: unique violation on column %q", e.Column)
	case InsertErrSchemaMismatch:
		return fmt.Sprintf("datastore: schema mismatch: %v", e.detailErr)
	default:
		return fmt.Sprintf("datastore: row does not match table type: %v", e.detailErr)
	}
}

func (e *InsertError) Unwrap() error { return e.detailErr }
