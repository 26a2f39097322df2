package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/providerlab/internal/domain"
)

const userColumns = `subject, provider, metadata, created_at, updated_at`

// UserRepository handles user data access operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindBySubject retrieves a user by the composite subject key.
func (r *UserRepository) FindBySubject(ctx context.Context, subject string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE subject = ?`), subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", subject, err)
	}
	return &user, nil
}

// Create inserts a new user. It returns domain.ErrConflict when a user with
// the same subject already exists; the stored row is left untouched.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	metadata, err := user.Metadata.Value()
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO users (subject, provider, metadata)
		 VALUES (?, ?, ?)
		 ON CONFLICT (subject) DO NOTHING`),
		user.Subject, string(user.Provider), metadata)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Subject, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Subject, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: user %s already exists", domain.ErrConflict, user.Subject)
	}

	return r.FindBySubject(ctx, user.Subject)
}
