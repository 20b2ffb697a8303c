package timetable

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure class. Every *Error unwraps to one of these.
var (
	// ErrUnavailable indicates storage is not configured.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidArgument indicates malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound indicates a referenced part, revision or segment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a caller-supplied id collides with an existing row.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvariantViolation indicates an operation would break part ordering or ownership.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Code classifies an Error for programmatic handling.
type Code string

const (
	CodeUnavailable        Code = "unavailable"
	CodeInvalidArgument    Code = "invalid_argument"
	CodeNotFound           Code = "not_found"
	CodeAlreadyExists      Code = "already_exists"
	CodeInvariantViolation Code = "invariant_violation"
)

var sentinels = map[Code]error{
	CodeUnavailable:        ErrUnavailable,
	CodeInvalidArgument:    ErrInvalidArgument,
	CodeNotFound:           ErrNotFound,
	CodeAlreadyExists:      ErrAlreadyExists,
	CodeInvariantViolation: ErrInvariantViolation,
}

// Failure reasons. Reason is finer-grained than Code and stable enough for
// a UI to switch on.
const (
	ReasonStorageDisabled    = "storage_disabled"
	ReasonInvalidStage       = "invalid_stage"
	ReasonRunsNotList        = "train_runs_not_list"
	ReasonSegmentsNotList    = "train_segments_not_list"
	ReasonDuplicateRun       = "duplicate_train_run"
	ReasonDuplicateSegment   = "duplicate_train_segment"
	ReasonUnknownRun         = "segment_unknown_train_run"
	ReasonDuplicateSection   = "duplicate_section_index"
	ReasonMissingID          = "missing_id"
	ReasonRevisionNotFound   = "revision_not_found"
	ReasonCorruptPayload     = "corrupt_revision_payload"
	ReasonPartNotFound       = "part_not_found"
	ReasonSelectorMissing    = "split_selector_missing"
	ReasonSelectorAmbiguous  = "split_selector_ambiguous"
	ReasonTooFewSegments     = "too_few_segments"
	ReasonSplitMemberMissing = "split_member_not_found"
	ReasonSplitAtLast        = "split_at_last_member"
	ReasonSegmentNotFound    = "segment_not_found"
	ReasonSegmentRunMismatch = "segment_run_mismatch"
	ReasonNewPartExists      = "new_part_exists"
	ReasonSelfMerge          = "self_merge"
	ReasonRunMismatch        = "train_run_mismatch"
	ReasonEmptyPart          = "empty_part"
	ReasonOverlappingMembers = "overlapping_members"
	ReasonNotAdjacent        = "not_adjacent"
)

// Error carries the failure class plus the offending id and reason.
type Error struct {
	Code   Code
	Op     string
	ID     string
	Reason string
	Detail string
}

// Error returns "timetable: <op>: <detail> (<id>)".
func (e *Error) Error() string {
	msg := "timetable: " + e.Op + ": "
	if e.Detail != "" {
		msg += e.Detail
	} else {
		msg += sentinels[e.Code].Error()
	}
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	return msg
}

// Unwrap returns the sentinel matching Code for use with errors.Is.
func (e *Error) Unwrap() error {
	return sentinels[e.Code]
}

func newError(code Code, op, reason, id, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, ID: id, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func unavailable(op string) *Error {
	return newError(CodeUnavailable, op, ReasonStorageDisabled, "", "storage is not configured")
}

func invalidArgument(op, reason, id, format string, args ...interface{}) *Error {
	return newError(CodeInvalidArgument, op, reason, id, format, args...)
}

func notFound(op, reason, id, format string, args ...interface{}) *Error {
	return newError(CodeNotFound, op, reason, id, format, args...)
}

func alreadyExists(op, reason, id, format string, args ...interface{}) *Error {
	return newError(CodeAlreadyExists, op, reason, id, format, args...)
}

func invariantViolation(op, reason, id, format string, args ...interface{}) *Error {
	return newError(CodeInvariantViolation, op, reason, id, format, args...)
}

// CodeOf returns the Code of the first *Error in err's chain, or "" for
// infrastructure errors.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
