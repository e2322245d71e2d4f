package store

import (
	"context"
	"errors"
	"fmt"
)

// User is a row of the identity table.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Superuser    bool   `json:"superuser"`
	Active       bool   `json:"active"`
}

const userColumns = "id, username, password_hash, role, is_superuser, is_active"

// FindUserByUsername returns ErrNotFound when no such user exists.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	row, err := QueryRow(ctx, s.DB,
		fmt.Sprintf("SELECT %s FROM %s WHERE username = %s", userColumns, UsersTable, s.Dialect.Placeholder(1)),
		username,
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	return userFromRow(row), nil
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := QueryRows(ctx, s.DB, fmt.Sprintf("SELECT %s FROM %s ORDER BY username", userColumns, UsersTable))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *userFromRow(row))
	}
	return users, nil
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+UsersTable).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CreateUser inserts a user and returns its id. A taken username maps to ErrUniqueViolation.
func (s *Store) CreateUser(ctx context.Context, u *User) (int64, error) {
	pb := s.Dialect.NewParamBuilder()
	sql := fmt.Sprintf(
		"INSERT INTO %s (username, password_hash, role, is_superuser, is_active) VALUES (%s, %s, %s, %s, %s) RETURNING id",
		UsersTable, pb.Add(u.Username), pb.Add(u.PasswordHash), pb.Add(u.Role), pb.Add(u.Superuser), pb.Add(u.Active),
	)
	id, err := InsertReturningID(ctx, s.DB, sql, pb.Params()...)
	if err != nil {
		return 0, s.Dialect.MapError(err)
	}
	u.ID = id
	return id, nil
}

func userFromRow(row map[string]any) *User {
	u := &User{
		Superuser: toBool(row["is_superuser"]),
		Active:    toBool(row["is_active"]),
	}
	u.ID, _ = row["id"].(int64)
	u.Username, _ = row["username"].(string)
	u.PasswordHash, _ = row["password_hash"].(string)
	u.Role, _ = row["role"].(string)
	return u
}

// toBool reads BOOLEAN columns, which SQLite returns as integers.
func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val == "1" || val == "t" || val == "true"
	default:
		return false
	}
}
