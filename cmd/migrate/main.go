package main

import (
	"context" // Command context
	"errors"  // Driver check
	"os"      // Exit code

	"github.com/shopspring/decimal" // Seed amounts
	"github.com/sirupsen/logrus"    // Logging library
	"github.com/spf13/cobra"        // Command line

	"core_bank/internal/config"          // Custom import path (Config)
	"core_bank/internal/db"              // Custom import path (Database)
	"core_bank/internal/logging"         // Logger setup
	"core_bank/internal/store/gormstore" // MySQL store
)

// Main entry point for migration
func main() {
	var (
		seed        bool
		balance     = db.DefaultSeedOptions.Balance.String()
		creditLimit = db.DefaultSeedOptions.CreditLimit.String()
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Create or update the bank core schema in MySQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := seedOptions(balance, creditLimit)
			if err != nil {
				return err
			}
			return run(cmd.Context(), seed, opts)
		},
	}
	root.Flags().BoolVar(&seed, "seed", false, "Create the demo users user1, user2 (cliente) and user3 (cajero) on an empty database")
	root.Flags().StringVar(&balance, "balance", balance, "Opening balance of each demo account")
	root.Flags().StringVar(&creditLimit, "credit-limit", creditLimit, "Credit limit of each demo user")

	if err := root.ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Error("Migration failed")
		os.Exit(1)
	}
}

func seedOptions(balance, creditLimit string) (db.SeedOptions, error) {
	b, err := decimal.NewFromString(balance)
	if err != nil || b.IsNegative() {
		return db.SeedOptions{}, errors.New("--balance must be a non-negative amount")
	}
	l, err := decimal.NewFromString(creditLimit)
	if err != nil || !l.IsPositive() {
		return db.SeedOptions{}, errors.New("--credit-limit must be a positive amount")
	}
	return db.SeedOptions{Balance: b, CreditLimit: l}, nil
}

func run(ctx context.Context, seed bool, opts db.SeedOptions) error {
	cfg, err := config.Load(ctx) // Load configuration
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.DriverMySQL {
		return errors.New("STORE_DRIVER must be mysql to migrate")
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.IsProd, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := gormstore.Open(gormstore.Config{
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		Name:            cfg.DB.Name,
		LockWaitTimeout: cfg.DB.LockWaitTimeout,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := db.Migrate(ctx, st.DB(), log); err != nil {
		return err
	}
	if !seed {
		return nil
	}
	_, err = db.Seed(ctx, st, opts, log)
	return err
}
