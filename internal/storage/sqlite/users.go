package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/storage"
)

const userColumns = `id, email, name, avatar, password_hash, created_at`

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.Avatar,
		user.PasswordHash,
		toMillis(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// UpdateUser overwrites a user's profile fields.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, avatar = ?, password_hash = ? WHERE id = ?`,
		user.Email,
		user.Name,
		user.Avatar,
		user.PasswordHash,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var created int64
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Avatar,
		&user.PasswordHash,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = fromMillis(created)
	return user, nil
}
