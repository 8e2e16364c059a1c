package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wastelens/wastelens/pkg/engine/drift"
)

var (
	tickCount       int
	tickAutoExecute bool
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Advance the simulated world by one or more virtual days",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		eng, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())

		for i := 0; i < tickCount; i++ {
			result, err := eng.Drift.Tick(ctx, drift.TickOptions{AutoExecute: tickAutoExecute})
			if err != nil {
				return fmt.Errorf("tick %d: %w", i+1, err)
			}
			fmt.Printf("tick %d: advanced=%d skipped=%d metrics=%d detections=%d mode=%s executed=%d\n",
				i+1,
				result.World.AccountsAdvanced,
				result.World.AccountsSkipped,
				result.World.MetricsWritten,
				result.Detection.TotalDetections,
				result.Execution.Mode,
				result.Execution.Executed)
			for _, inj := range result.World.Injections {
				fmt.Printf("  injected: %s\n", inj)
			}
		}
		return nil
	},
}

func init() {
	tickCmd.Flags().IntVarP(&tickCount, "count", "n", 1, "Number of virtual days to advance")
	tickCmd.Flags().BoolVar(&tickAutoExecute, "auto-execute", false, "Force the automated execution pass")
	rootCmd.AddCommand(tickCmd)
}
