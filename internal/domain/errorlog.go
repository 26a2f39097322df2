package domain

import "time"

// NoStackTrace is stored when a logged error carries no stack trace.
const NoStackTrace = "No stack trace available"

// ErrorLog records a caught error-shaped failure.
type ErrorLog struct {
	ID        string     `json:"id" db:"id"`
	Provider  ProviderID `json:"provider" db:"provider"`
	Message   string     `json:"message" db:"message"`
	Stack     string     `json:"stack" db:"stack"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// UnknownErrorLog records a failure value that is not error-shaped.
// Payload holds its JSON encoding.
type UnknownErrorLog struct {
	ID        string     `json:"id" db:"id"`
	Provider  ProviderID `json:"provider" db:"provider"`
	Payload   string     `json:"payload" db:"payload"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ErrorLogKind selects one of the two error log tables.
type ErrorLogKind string

const (
	ErrorLogKindError   ErrorLogKind = "error"
	ErrorLogKindUnknown ErrorLogKind = "unknown"
)
