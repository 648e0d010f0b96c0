package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/waterlog/routeledger/internal/model"
)

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, full_name, email, password_hash, role, is_active, created_at, updated_at`

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func normalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateTx inserts a user whose password is already hashed and returns it
// fully populated.  A taken username yields ErrDuplicate.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) error {
	u.Username = normalizeUsername(u.Username)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, full_name, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.FullName, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := lastID(res)
	if err != nil {
		return err
	}
	created, err := r.get(ctx, tx, `id = ?`, id)
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.get(ctx, r.db, `username = ?`, normalizeUsername(username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.get(ctx, r.db, `id = ?`, id)
}

// GetByIDTx is GetByID inside a transaction.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.User, error) {
	return r.get(ctx, tx, `id = ?`, id)
}

func (r *UserRepo) get(ctx context.Context, q queryer, where string, arg any) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListActiveByRole returns active users with the given role ordered by name.
func (r *UserRepo) ListActiveByRole(ctx context.Context, role string) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? AND is_active = ? ORDER BY full_name, id`, role, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
