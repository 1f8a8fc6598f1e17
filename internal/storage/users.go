package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
)

// CreateUser registers a handle. Re-registering an existing handle returns
// the stored user unchanged.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Handle.Validate(); err != nil {
		return core.User{}, err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (handle, name, created_at) VALUES (?, ?, ?)",
		string(u.Handle), u.Name, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return r.GetUser(ctx, u.Handle)
		}
		return core.User{}, fmt.Errorf("insert user %s: %w", u.Handle, err)
	}

	slog.InfoContext(ctx, "User registered", "handle", string(u.Handle), "name", u.Name)
	return u, nil
}

// GetUser looks a user up by handle.
func (r *SQLiteRepository) GetUser(ctx context.Context, handle core.Handle) (core.User, error) {
	var u core.User
	var h string
	err := r.db.QueryRowContext(ctx,
		"SELECT handle, name, created_at FROM users WHERE handle = ?",
		string(handle),
	).Scan(&h, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return core.User{}, fmt.Errorf("%w: user %s", core.ErrNotFound, handle)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", handle, err)
	}
	u.Handle = core.Handle(h)
	return u, nil
}

// UserExists reports whether the handle is registered.
func (r *SQLiteRepository) UserExists(ctx context.Context, handle core.Handle) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE handle = ?", string(handle)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", handle, err)
	}
	return true, nil
}

// modernc.org/sqlite surfaces constraint failures as plain errors with the
// SQLite message text, so we match on it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
