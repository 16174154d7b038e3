package merge

import (
	"errors"
	"fmt"
)

// MergeError represents a failure condition of a merge run.
//
// Two of the codes (SOURCE_UNREADABLE, RECORD_UNPARSEABLE) are recovered
// locally - the orchestrator warns and continues - and only appear in
// returned errors when a caller uses the reader directly. The remaining
// codes end the run.
type MergeError struct {
	// Code identifies the failure category.
	Code MergeErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the file involved, when one is.
	Path string

	// Table is the affected table, for per-row conditions.
	Table string

	// Err is the underlying cause, if any.
	Err error
}

// MergeErrorCode categorizes merge failures.
type MergeErrorCode string

const (
	// ErrCodeSourceUnreadable: an input file cannot be opened as a
	// capture database. Recovered: the source is skipped with a warning.
	ErrCodeSourceUnreadable MergeErrorCode = "SOURCE_UNREADABLE"

	// ErrCodeRecordUnparseable: one row's serialized document is
	// malformed. Recovered: the row is dropped and counted.
	ErrCodeRecordUnparseable MergeErrorCode = "RECORD_UNPARSEABLE"

	// ErrCodeNoData: nothing survived after processing all sources.
	ErrCodeNoData MergeErrorCode = "NO_DATA"

	// ErrCodeDestinationWrite: destination schema creation or insert
	// failed. Fatal, never retried.
	ErrCodeDestinationWrite MergeErrorCode = "DESTINATION_WRITE_FAILURE"

	// ErrCodeInputResolution: no input paths resolved from the supplied
	// patterns. Surfaced before any merge work starts.
	ErrCodeInputResolution MergeErrorCode = "INPUT_RESOLUTION_FAILURE"
)

// Error implements the error interface.
func (e *MergeError) Error() string {
	switch {
	case e.Path != "" && e.Table != "":
		return fmt.Sprintf("%s: %s (file=%s, table=%s)", e.Code, e.Message, e.Path, e.Table)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (file=%s)", e.Code, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// hasCode reports whether err is a MergeError with the given code,
// unwrapping as needed.
func hasCode(err error, code MergeErrorCode) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsNoData returns true for the nothing-survived failure.
func IsNoData(err error) bool {
	return hasCode(err, ErrCodeNoData)
}

// IsSourceUnreadable returns true for an unreadable-input failure.
func IsSourceUnreadable(err error) bool {
	return hasCode(err, ErrCodeSourceUnreadable)
}

// IsDestinationWriteFailure returns true for a fatal destination failure.
func IsDestinationWriteFailure(err error) bool {
	return hasCode(err, ErrCodeDestinationWrite)
}

// IsInputResolutionFailure returns true when no input paths resolved.
func IsInputResolutionFailure(err error) bool {
	return hasCode(err, ErrCodeInputResolution)
}

// NewSourceUnreadableError wraps a failed source open.
func NewSourceUnreadableError(path string, err error) *MergeError {
	return &MergeError{
		Code:    ErrCodeSourceUnreadable,
		Message: "cannot open input as a capture database",
		Path:    path,
		Err:     err,
	}
}

// NewRecordUnparseableError wraps one malformed row.
func NewRecordUnparseableError(path, table string, err error) *MergeError {
	return &MergeError{
		Code:    ErrCodeRecordUnparseable,
		Message: "malformed record dropped",
		Path:    path,
		Table:   table,
		Err:     err,
	}
}

// NewNoDataError reports an empty accumulated result set.
func NewNoDataError() *MergeError {
	return &MergeError{
		Code:    ErrCodeNoData,
		Message: "no devices or tables survived from any input",
	}
}

// NewDestinationWriteError wraps a fatal destination failure.
func NewDestinationWriteError(path string, err error) *MergeError {
	return &MergeError{
		Code:    ErrCodeDestinationWrite,
		Message: "failed to write destination",
		Path:    path,
		Err:     err,
	}
}

// NewInputResolutionError reports that no input paths resolved.
func NewInputResolutionError() *MergeError {
	return &MergeError{
		Code:    ErrCodeInputResolution,
		Message: "no input files resolved",
	}
}
