package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"washly/internal/config"
	"washly/internal/infra"
	"washly/internal/model"
	"washly/internal/service"

	"github.com/google/subcommands"
	"gorm.io/gorm/clause"
)

// --- genhash ---

type genhashCmd struct {
	password string
}

func (*genhashCmd) Name() string     { return "genhash" }
func (*genhashCmd) Synopsis() string { return "prints the bcrypt hash of a password" }
func (*genhashCmd) Usage() string {
	return `genhash -password <password>

Prints the hash stored in users.password_hash for the given password.
`
}
func (c *genhashCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.password, "password", "", "Plain text password to hash.")
}

func (c *genhashCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -password is required.")
		return subcommands.ExitUsageError
	}
	hash, err := service.HashPassword(c.password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(hash)
	return subcommands.ExitSuccess
}

// --- seeduser ---

type seedUserCmd struct {
	username string
	password string
	name     string
	email    string
	role     string
}

func (*seedUserCmd) Name() string     { return "seeduser" }
func (*seedUserCmd) Synopsis() string { return "creates or resets a user account" }
func (*seedUserCmd) Usage() string {
	return `seeduser -username <username> -password <password> [-role cajero|supervisor|administrador] [-name <name>] [-email <email>]

Upserts the user by username. An existing user gets the new password and role
and is reactivated. Reads DATABASE_URL like the server does.
`
}
func (c *seedUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "Login name.")
	f.StringVar(&c.password, "password", "", "Plain text password.")
	f.StringVar(&c.name, "name", "", "Display name (defaults to the username).")
	f.StringVar(&c.email, "email", "", "Optional email, also accepted at login.")
	f.StringVar(&c.role, "role", model.RoleCajero, "cajero | supervisor | administrador")
}

func validRole(role string) bool {
	switch role {
	case model.RoleCajero, model.RoleSupervisor, model.RoleAdministrador:
		return true
	}
	return false
}

func (c *seedUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.username = strings.TrimSpace(c.username)
	if c.username == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -username and -password are required.")
		return subcommands.ExitUsageError
	}
	if !validRole(c.role) {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q.\n", c.role)
		return subcommands.ExitUsageError
	}
	if c.name == "" {
		c.name = c.username
	}

	hash, err := service.HashPassword(c.password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		return subcommands.ExitFailure
	}

	user := model.User{
		Username:     c.username,
		Name:         c.name,
		PasswordHash: hash,
		Role:         c.role,
		Active:       true,
	}
	if c.email != "" {
		user.Email = &c.email
	}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "active", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving user: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("User %s (%s) ready.\n", c.username, c.role)
	return subcommands.ExitSuccess
}
