package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced kid or gift does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLockTimeout is returned when the kid lock could not be acquired in time.
	// The kid may exist; callers may retry.
	ErrLockTimeout = errors.New("lock timeout: kid is locked by another request")

	// ErrTooManyGifts is returned when adding a gift would exceed MaxGiftsPerKid.
	ErrTooManyGifts = errors.New("too many gifts")

	// ErrOptimisticConflict is returned when a record changed between read and write.
	ErrOptimisticConflict = errors.New("optimistic lock conflict: record was modified concurrently")

	// ErrImportFailed matches every *ImportError via errors.Is.
	ErrImportFailed = errors.New("import failed")
)

// ImportError reports a staging or batch failure for one uploaded file.
type ImportError struct {
	FileName string
	Err      error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import of file %q failed: %v", e.FileName, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is reports ErrImportFailed as a match so callers need not know the file name.
func (e *ImportError) Is(target error) bool {
	return target == ErrImportFailed
}

// RowError describes a malformed data line in an import file.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("invalid csv at line %d: %s", e.Line, e.Reason)
}

// ValidationErrors collects every field violation of a command.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// orNil returns v as an error, or nil when there are no violations.
func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	var verrs ValidationErrors
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verrs):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrTooManyGifts):
		return "too_many_gifts"
	case errors.Is(err, ErrOptimisticConflict):
		return "conflict"
	case errors.Is(err, ErrExecutorSaturated):
		return "saturated"
	case errors.Is(err, ErrImportFailed):
		return "import_failed"
	default:
		return "error"
	}
}
