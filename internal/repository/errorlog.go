package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sumire/providerlab/internal/domain"
)

// ErrorLogRepository appends to and reads the two error log tables.
type ErrorLogRepository struct {
	db *sqlx.DB
}

// NewErrorLogRepository creates a new ErrorLogRepository.
func NewErrorLogRepository(db *sqlx.DB) *ErrorLogRepository {
	return &ErrorLogRepository{db: db}
}

// CreateErrorLog appends an error-shaped failure. The ID is generated when
// empty; the timestamp is assigned by the datastore.
func (r *ErrorLogRepository) CreateErrorLog(ctx context.Context, entry domain.ErrorLog) (*domain.ErrorLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO error_logs (id, provider, message, stack) VALUES (?, ?, ?, ?)`),
		entry.ID, string(entry.Provider), entry.Message, entry.Stack)
	if err != nil {
		return nil, fmt.Errorf("insert error log: %w", err)
	}

	var out domain.ErrorLog
	if err := r.db.GetContext(ctx, &out, r.db.Rebind(
		`SELECT id, provider, message, stack, created_at FROM error_logs WHERE id = ?`), entry.ID); err != nil {
		return nil, fmt.Errorf("read error log %s: %w", entry.ID, err)
	}
	return &out, nil
}

// CreateUnknownErrorLog appends a failure that is not error-shaped.
func (r *ErrorLogRepository) CreateUnknownErrorLog(ctx context.Context, entry domain.UnknownErrorLog) (*domain.UnknownErrorLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO unknown_error_logs (id, provider, payload) VALUES (?, ?, ?)`),
		entry.ID, string(entry.Provider), entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("insert unknown error log: %w", err)
	}

	var out domain.UnknownErrorLog
	if err := r.db.GetContext(ctx, &out, r.db.Rebind(
		`SELECT id, provider, payload, created_at FROM unknown_error_logs WHERE id = ?`), entry.ID); err != nil {
		return nil, fmt.Errorf("read unknown error log %s: %w", entry.ID, err)
	}
	return &out, nil
}

// ListErrorLogs returns the newest error log entries.
func (r *ErrorLogRepository) ListErrorLogs(ctx context.Context, limit int) ([]domain.ErrorLog, error) {
	logs := []domain.ErrorLog{}
	err := r.db.SelectContext(ctx, &logs, r.db.Rebind(
		`SELECT id, provider, message, stack, created_at FROM error_logs
		 ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	return logs, nil
}

// ListUnknownErrorLogs returns the newest unknown error log entries.
func (r *ErrorLogRepository) ListUnknownErrorLogs(ctx context.Context, limit int) ([]domain.UnknownErrorLog, error) {
	logs := []domain.UnknownErrorLog{}
	err := r.db.SelectContext(ctx, &logs, r.db.Rebind(
		`SELECT id, provider, payload, created_at FROM unknown_error_logs
		 ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list unknown error logs: %w", err)
	}
	return logs, nil
}
