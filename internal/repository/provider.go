package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/providerlab/internal/domain"
)

const providerColumns = `name, authorize_status, profile_status, refresh_status, revoke_status, updated_at`

// ProviderRepository handles provider status rows.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository creates a new ProviderRepository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// FindByName retrieves the status row of a provider.
func (r *ProviderRepository) FindByName(ctx context.Context, name domain.ProviderID) (*domain.Provider, error) {
	var p domain.Provider
	err := r.db.GetContext(ctx, &p, r.db.Rebind(
		`SELECT `+providerColumns+` FROM providers WHERE name = ?`), string(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find provider %s: %w", name, err)
	}
	return &p, nil
}

// List returns every provider row ordered by name.
func (r *ProviderRepository) List(ctx context.Context) ([]domain.Provider, error) {
	providers := []domain.Provider{}
	err := r.db.SelectContext(ctx, &providers,
		`SELECT `+providerColumns+` FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// ListByStatus returns providers where any status column equals status.
func (r *ProviderRepository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Provider, error) {
	providers := []domain.Provider{}
	err := r.db.SelectContext(ctx, &providers, r.db.Rebind(
		`SELECT `+providerColumns+` FROM providers
		 WHERE authorize_status = ? OR profile_status = ? OR refresh_status = ? OR revoke_status = ?
		 ORDER BY name`),
		string(status), string(status), string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("list providers with status %s: %w", status, err)
	}
	return providers, nil
}

// UpdateStatusIf writes status into column only when the column currently
// holds one of the guard values. The guard check and the write are a single
// UPDATE statement; the row is read back inside the same transaction. It
// returns domain.ErrNotFound when the row is missing or the guard did not
// match.
func (r *ProviderRepository) UpdateStatusIf(ctx context.Context, name domain.ProviderID, column domain.Column, guard domain.Guard, status domain.Status) (*domain.Provider, error) {
	if !column.Valid() {
		return nil, fmt.Errorf("%w: unknown column %q", domain.ErrInvalidInput, column)
	}
	if len(guard) == 0 {
		return nil, fmt.Errorf("%w: empty guard", domain.ErrInvalidInput)
	}

	query, args, err := sqlx.In(fmt.Sprintf(
		`UPDATE providers SET %[1]s = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE name = ? AND %[1]s IN (?)`, column),
		string(status), string(name), guard.Strings())
	if err != nil {
		return nil, fmt.Errorf("build status update: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("update %s of provider %s: %w", column, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s of provider %s: %w", column, name, err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}

	var p domain.Provider
	if err := tx.GetContext(ctx, &p, tx.Rebind(
		`SELECT `+providerColumns+` FROM providers WHERE name = ?`), string(name)); err != nil {
		return nil, fmt.Errorf("read back provider %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}
	return &p, nil
}

// ResetAll sets every status column of every row back to untested.
func (r *ProviderRepository) ResetAll(ctx context.Context) (int64, error) {
	untested := string(domain.StatusUntested)
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE providers
		 SET authorize_status = ?, profile_status = ?, refresh_status = ?, revoke_status = ?,
		     updated_at = CURRENT_TIMESTAMP`),
		untested, untested, untested, untested)
	if err != nil {
		return 0, fmt.Errorf("reset providers: %w", err)
	}
	return res.RowsAffected()
}

// Seed inserts a row for every id that does not have one yet and returns the
// number of rows created.
func (r *ProviderRepository) Seed(ctx context.Context, ids []domain.ProviderID) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(
		`INSERT INTO providers (name) VALUES (?) ON CONFLICT (name) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	var created int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, string(id))
		if err != nil {
			return 0, fmt.Errorf("seed provider %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("seed provider %s: %w", id, err)
		}
		created += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return created, nil
}
