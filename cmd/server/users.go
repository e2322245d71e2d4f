package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catering-backend/internal/auth"
	"catering-backend/internal/logger"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

const (
	usernameFlag = "username"
	passwordFlag = "password"
	roleFlag     = "role"
)

var createUserFlags = map[string]cobraflags.Flag{
	usernameFlag: &cobraflags.StringFlag{
		Name:  usernameFlag,
		Value: "",
		Usage: "Login name (required)",
	},
	passwordFlag: &cobraflags.StringFlag{
		Name:  passwordFlag,
		Value: "",
		Usage: "Password (required)",
	},
	roleFlag: &cobraflags.StringFlag{
		Name:  roleFlag,
		Value: "",
		Usage: "Business role: director, manager, chef or hr_manager",
	},
}

func newCreateUserCommand() *cobra.Command {
	var superuser bool
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user with a role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := newUser(
				createUserFlags[usernameFlag].GetString(),
				createUserFlags[passwordFlag].GetString(),
				createUserFlags[roleFlag].GetString(),
				superuser,
			)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.store.CreateUser(cmd.Context(), u); err != nil {
				if errors.Is(err, store.ErrUniqueViolation) {
					return fmt.Errorf("user %s already exists", u.Username)
				}
				return err
			}
			logger.Info("User created",
				zap.String("username", u.Username),
				zap.String("role", u.Role),
				zap.Bool("superuser", u.Superuser),
			)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, createUserFlags)
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant every capability")
	return cmd
}

// newUser validates the inputs and hashes the password.
func newUser(username, password, role string, superuser bool) (*store.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("--%s and --%s are required", usernameFlag, passwordFlag)
	}
	if _, ok := metadata.ParseRole(role); !ok {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if role == "" && !superuser {
		return nil, fmt.Errorf("--%s is required unless --superuser is set", roleFlag)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &store.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Superuser:    superuser,
		Active:       true,
	}, nil
}

const demoPasswordFlag = "password"

var seedFlags = map[string]cobraflags.Flag{
	demoPasswordFlag: &cobraflags.StringFlag{
		Name:  demoPasswordFlag,
		Value: "test123",
		Usage: "Password shared by every demo user",
	},
}

func newSeedUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-users",
		Short: "Create one demo user per role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			password := seedFlags[demoPasswordFlag].GetString()
			created, err := seedUsers(cmd.Context(), rt.store, password)
			if err != nil {
				return err
			}
			logger.Info("Demo users ready", zap.Strings("created", created))
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, seedFlags)
	return cmd
}

// seedUsers creates a user named after each role. Existing users are left
// alone; the names of the new ones are returned.
func seedUsers(ctx context.Context, s *store.Store, password string) ([]string, error) {
	var created []string
	for _, role := range metadata.Roles {
		u, err := newUser(string(role), password, string(role), false)
		if err != nil {
			return created, err
		}
		if _, err := s.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrUniqueViolation) {
				continue
			}
			return created, fmt.Errorf("seed %s: %w", role, err)
		}
		created = append(created, u.Username)
	}
	return created, nil
}
