package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wastelens/wastelens/pkg/seed"
)

var (
	seedAccounts int
	seedHistory  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with a demo inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseDSN == "" {
			return errors.New("seed needs a database; set --db or WASTELENS_DATABASE_DSN (use 'serve --seed' for the in-memory demo)")
		}

		ctx := context.Background()
		eng, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())

		sum, err := seed.Apply(ctx, eng.Store, seed.Options{
			Accounts:    seedAccounts,
			HistoryDays: seedHistory,
		})
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d accounts, %d resources, %d metric rows\n",
			sum.Accounts, sum.Resources, sum.Metrics)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedAccounts, "accounts", 2, "Accounts to create")
	seedCmd.Flags().IntVar(&seedHistory, "history-days", 7, "Days of metric history to backfill")
	rootCmd.AddCommand(seedCmd)
}
