package main

import (
	"context"
	"fmt"

	"estimator/internal/db"
	"estimator/internal/seed"
	"estimator/internal/store"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with demo customers",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply the embedded schema first",
		},
	},
	Action: func(c *cli.Context) error {
		logger := newLogger(c)

		cfg, err := loadConfig(c, true)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logger.Info("Connected to database")

		if c.Bool("migrate") {
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			logger.Info("Schema applied")
		}

		logger.Info("Seeding customers...")
		n, err := seed.SeedCustomers(ctx, store.NewCustomerRepository(pool))
		if err != nil {
			return fmt.Errorf("failed to seed customers: %w", err)
		}

		logger.WithField("customers", n).Info("Customers seeded successfully")

		return nil
	},
}
