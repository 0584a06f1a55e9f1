// Package db owns the schema and the demo data of the bank core.
package db

import (
	"context" // Context for database operations
	"fmt"     // Error wrapping

	"github.com/shopspring/decimal" // Seed balances
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library

	"core_bank/internal/auth"   // Password hashing
	"core_bank/internal/domain" // Importing domain models
	"core_bank/internal/store"  // Account store
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{&domain.User{}, &domain.Client{}, &domain.Account{}, &domain.CreditCard{}, &domain.Movement{}}
}

// Migrate performs automatic migration for the database schema
func Migrate(ctx context.Context, gdb *gorm.DB, log logrus.FieldLogger) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := gdb.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	log.Info("Migration completed.") // Log successful migration
	return nil
}

// SeedUser is one demo login.
type SeedUser struct {
	Username string
	Password string
	Role     domain.Role
}

// DemoUsers are created by Seed on an empty database.
var DemoUsers = []SeedUser{
	{Username: "user1", Password: "pass1", Role: domain.RoleClient},
	{Username: "user2", Password: "pass2", Role: domain.RoleClient},
	{Username: "user3", Password: "pass3", Role: domain.RoleTeller},
}

// SeedOptions sets the opening amounts of the demo accounts.
type SeedOptions struct {
	Balance     decimal.Decimal // Opening balance of every demo account
	CreditLimit decimal.Decimal // Card limit of every demo user
}

// DefaultSeedOptions opens each demo account with 1000 and a 5000 credit line.
var DefaultSeedOptions = SeedOptions{
	Balance:     decimal.NewFromInt(1000),
	CreditLimit: decimal.NewFromInt(5000),
}

// Seed creates DemoUsers with an account and a credit card each when the
// store holds no users. It returns how many users it created.
func Seed(ctx context.Context, s store.Store, opts SeedOptions, log logrus.FieldLogger) (int, error) {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("db: seed: count users: %w", err)
	}
	if n > 0 {
		log.WithField("users", n).Info("Seed skipped, users already present")
		return 0, nil
	}

	hashes := make([][]byte, len(DemoUsers))
	for i, su := range DemoUsers {
		if hashes[i], err = auth.HashPassword(su.Password); err != nil {
			return 0, fmt.Errorf("db: seed: hash: %w", err)
		}
	}
	err = s.Transact(ctx, func(tx store.Tx) error {
		for i, su := range DemoUsers {
			u := &domain.User{
				Username: su.Username,
				Password: hashes[i],
				Role:     su.Role,
				FullName: su.Username,
				Email:    su.Username + "@demo.corebank.local", // email is unique
			}
			if err := tx.CreateUser(u); err != nil {
				return err
			}
			if err := tx.CreateAccount(&domain.Account{UserID: u.ID, Balance: opts.Balance}); err != nil {
				return err
			}
			if err := tx.CreateCreditCard(&domain.CreditCard{UserID: u.ID, Limit: opts.CreditLimit, Debt: decimal.Zero}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("db: seed: %w", err)
	}
	log.WithField("users", len(DemoUsers)).Info("Seed completed")
	return len(DemoUsers), nil
}
