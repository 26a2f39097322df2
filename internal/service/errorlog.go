package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sumire/providerlab/internal/domain"
)

const defaultLogTimeout = 10 * time.Second

// ErrorLogStore defines the error log data access consumed by ErrorLogger.
type ErrorLogStore interface {
	CreateErrorLog(ctx context.Context, entry domain.ErrorLog) (*domain.ErrorLog, error)
	CreateUnknownErrorLog(ctx context.Context, entry domain.UnknownErrorLog) (*domain.UnknownErrorLog, error)
	ListErrorLogs(ctx context.Context, limit int) ([]domain.ErrorLog, error)
	ListUnknownErrorLogs(ctx context.Context, limit int) ([]domain.UnknownErrorLog, error)
}

// ErrorLogger persists failures reported by the OAuth flow. Writing is best
// effort: failures are logged and never returned to the caller.
type ErrorLogger struct {
	store   ErrorLogStore
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewErrorLogger creates a new ErrorLogger. A zero timeout uses a default
// for detached writes.
func NewErrorLogger(store ErrorLogStore, log *slog.Logger, timeout time.Duration) *ErrorLogger {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultLogTimeout
	}
	return &ErrorLogger{store: store, log: log, timeout: timeout}
}

type stackTracer interface {
	Stack() string
}

// Record stores failure in the error log matching its shape. Error values and
// any value carrying a string "message" (maps, structs) go to the error log;
// anything else is stored as JSON in the unknown error log.
func (l *ErrorLogger) Record(ctx context.Context, failure any, provider domain.ProviderID) {
	if failure == nil {
		return
	}

	if message, stack, ok := errorShape(failure); ok {
		entry, err := l.store.CreateErrorLog(ctx, domain.ErrorLog{
			Provider: provider,
			Message:  message,
			Stack:    stack,
		})
		if err != nil {
			l.log.Error("failed to store error log", "provider", provider, "message", message, "error", err)
			return
		}
		l.log.Info("error log stored", "provider", provider, "id", entry.ID)
		return
	}

	entry, err := l.store.CreateUnknownErrorLog(ctx, domain.UnknownErrorLog{
		Provider: provider,
		Payload:  encodePayload(failure),
	})
	if err != nil {
		l.log.Error("failed to store unknown error log", "provider", provider, "error", err)
		return
	}
	l.log.Info("unknown error log stored", "provider", provider, "id", entry.ID)
}

// Dispatch records failure on a detached goroutine. The write outlives the
// caller's cancellation but is bounded by the logger timeout. Use Wait to
// drain pending writes.
func (l *ErrorLogger) Dispatch(ctx context.Context, failure any, provider domain.ProviderID) {
	if failure == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("error logging panicked", "provider", provider, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(detached, l.timeout)
		defer cancel()
		l.Record(ctx, failure, provider)
	}()
}

// Wait blocks until every dispatched write has finished or ctx is done.
func (l *ErrorLogger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentErrors returns the newest entries of the error log.
func (l *ErrorLogger) RecentErrors(ctx context.Context, limit int) ([]domain.ErrorLog, error) {
	return l.store.ListErrorLogs(ctx, limit)
}

// RecentUnknown returns the newest entries of the unknown error log.
func (l *ErrorLogger) RecentUnknown(ctx context.Context, limit int) ([]domain.UnknownErrorLog, error) {
	return l.store.ListUnknownErrorLogs(ctx, limit)
}

// errorFields decodes the error-shaped part of any JSON-encodable value.
// Field names match case-insensitively, so a struct with an exported Message
// field qualifies.
type errorFields struct {
	Message any `json:"message"`
	Stack   any `json:"stack"`
}

func errorShape(v any) (message, stack string, ok bool) {
	if f, isErr := v.(error); isErr {
		stack = domain.NoStackTrace
		if st, ok := f.(stackTracer); ok && st.Stack() != "" {
			stack = st.Stack()
		}
		return f.Error(), stack, true
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", "", false
	}
	var fields errorFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return "", "", false
	}

	message, ok = fields.Message.(string)
	if !ok {
		return "", "", false
	}
	stack, _ = fields.Stack.(string)
	if stack == "" {
		stack = domain.NoStackTrace
	}
	return message, stack, true
}

func encodePayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprintf("%#v", v))
	}
	return string(b)
}
