package store

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// UsersTable holds the identities that can log in. It is a system table and
// never reachable from ad-hoc reports.
const UsersTable = "auth_user"

// ActionLogTable receives audit records.
const ActionLogTable = "core_actionlog"

func (s *Store) systemTablesSQL() []string {
	pk := s.Dialect.PrimaryKeyDef("id")
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	username      VARCHAR(150) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	role          VARCHAR(20) NOT NULL DEFAULT '',
	is_superuser  BOOLEAN NOT NULL DEFAULT FALSE,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, UsersTable, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	user_id    VARCHAR(64),
	username   VARCHAR(150),
	action     VARCHAR(20) NOT NULL,
	entity     VARCHAR(64),
	record_id  VARCHAR(64),
	display    VARCHAR(255),
	detail     TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, ActionLogTable, pk),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_actionlog_created_at ON %s (created_at)", ActionLogTable),
	}
}

// Bootstrap creates the identity and audit tables.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range s.systemTablesSQL() {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap system tables: %w", err)
		}
	}
	return nil
}

// SeedAdminUser creates a superuser when the users table is empty.
// It reports whether a user was created.
func (s *Store) SeedAdminUser(ctx context.Context, username, password string) (bool, error) {
	count, err := s.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.CreateUser(ctx, &User{
		Username:     username,
		PasswordHash: string(hash),
		Superuser:    true,
		Active:       true,
	}); err != nil {
		return false, fmt.Errorf("seed admin user: %w", err)
	}
	return true, nil
}
