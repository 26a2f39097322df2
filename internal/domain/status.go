package domain

import (
	"fmt"
	"slices"
)

// Status is the lifecycle value of a single provider status column.
type Status string

const (
	StatusUntested Status = "untested"
	// StatusTesting is part of the stored enum but no callback produces it;
	// it is only set by hand.
	StatusTesting Status = "testing"
	StatusTested  Status = "tested"
	StatusMissing Status = "missing"
	StatusFailed  Status = "failed"
)

// Statuses lists every valid status value.
var Statuses = []Status{StatusUntested, StatusTesting, StatusTested, StatusMissing, StatusFailed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", raw)}
	}
	return s, nil
}

// Column names one of the four independent status columns of a provider.
type Column string

const (
	ColumnAuthorize Column = "authorize_status"
	ColumnProfile   Column = "profile_status"
	ColumnRefresh   Column = "refresh_status"
	ColumnRevoke    Column = "revoke_status"
)

// Columns lists the status columns in table order.
var Columns = []Column{ColumnAuthorize, ColumnProfile, ColumnRefresh, ColumnRevoke}

// Valid reports whether c is one of the status columns. Column values are
// interpolated into SQL, so callers must check this first.
func (c Column) Valid() bool {
	return slices.Contains(Columns, c)
}

// Guard is the set of statuses a column must currently hold for a
// transition to be applied.
type Guard []Status

// Allows reports whether current is an acceptable prior status.
func (g Guard) Allows(current Status) bool {
	return slices.Contains(g, current)
}

// Strings returns the guard members as plain strings, for query arguments.
func (g Guard) Strings() []string {
	out := make([]string, len(g))
	for i, s := range g {
		out[i] = string(s)
	}
	return out
}

// Transition pairs a guard with the status written when it passes.
type Transition struct {
	Guard  Guard
	Target Status
}

var (
	// MarkFailed only overwrites a clean or unknown state.
	MarkFailed = Transition{
		Guard:  Guard{StatusTested, StatusUntested},
		Target: StatusFailed,
	}
	// MarkTested resolves any non-tested state.
	MarkTested = Transition{
		Guard:  Guard{StatusFailed, StatusUntested, StatusMissing, StatusTesting},
		Target: StatusTested,
	}
)

// Operation is one of the OAuth operations tracked per provider.
type Operation string

const (
	OperationAuthorize Operation = "authorize"
	OperationProfile   Operation = "profile"
	OperationRefresh   Operation = "refresh"
	OperationRevoke    Operation = "revoke"
)

// Column returns the status column recording the outcome of o.
func (o Operation) Column() Column {
	switch o {
	case OperationAuthorize:
		return ColumnAuthorize
	case OperationProfile:
		return ColumnProfile
	case OperationRefresh:
		return ColumnRefresh
	case OperationRevoke:
		return ColumnRevoke
	}
	return ""
}

// OperationEvent reports the outcome of one operation for one provider.
// Err is nil on success. On failure it holds either an error or the raw
// structured value the provider returned.
type OperationEvent struct {
	Provider  string
	Operation Operation
	Err       any
}

// Failed reports whether the event describes a failure.
func (e OperationEvent) Failed() bool {
	return e.Err != nil
}
