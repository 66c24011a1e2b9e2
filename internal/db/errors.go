package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrStorageUnavailable means the database could not be opened at all
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDuplicateKey is returned by Add when the id already exists
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is for callers that treat absence as a failure; storage lookups report it with ok=false instead
	ErrNotFound = errors.New("not found")
	// ErrPartialBulkFailure is wrapped by BatchError
	ErrPartialBulkFailure = errors.New("partial bulk failure")
)

// Outcome is the result of one record in a fan-out operation
type Outcome struct {
	ID  string
	Err error
}

// BatchResult captures the per-record outcome of a bulk add or cascade delete.
// Outcomes are in input order regardless of completion order.
type BatchResult struct {
	Outcomes []Outcome
}

// Succeeded returns the ids that were applied
func (r BatchResult) Succeeded() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Err == nil {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Failed returns the outcomes that carry an error
func (r BatchResult) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// OK reports whether every record succeeded
func (r BatchResult) OK() bool {
	return len(r.Failed()) == 0
}

func (r BatchResult) err(op string) error {
	if r.OK() {
		return nil
	}
	return &BatchError{Op: op, Result: r}
}

// BatchError reports that some records of a fan-out failed. Applied changes are not rolled back.
type BatchError struct {
	Op     string
	Result BatchResult
}

func (e *BatchError) Error() string {
	failed := e.Result.Failed()
	msgs := make([]string, 0, len(failed))
	for i, o := range failed {
		if i == 3 {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(failed)-3))
			break
		}
		msgs = append(msgs, fmt.Sprintf("%s: %v", o.ID, o.Err))
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)", e.Op, len(failed), len(e.Result.Outcomes), strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() error { return ErrPartialBulkFailure }

// isDuplicateKey recognizes primary key violations from either driver
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	// modernc.org/sqlite errors expose the extended result code through Code()
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code() == sqliteConstraintPrimaryKey || coded.Code() == sqliteConstraintUnique
	}
	return false
}

const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)
