package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/seed"
)

var (
	scanSeed bool
	scanTop  int

	scanTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF99"))
	scanDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	scanSavingsStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one detection pass and print the findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		eng, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())

		if scanSeed {
			if _, err := seed.Apply(ctx, eng.Store, seed.Options{}); err != nil {
				return fmt.Errorf("seed inventory: %w", err)
			}
		}

		result, err := eng.Detector.DetectAll(ctx, detect.ScanOptions{Bypass: true})
		if err != nil {
			return err
		}
		printScan(result)
		return nil
	},
}

func printScan(result *detect.Result) {
	fmt.Println(scanTitleStyle.Render("WasteLens scan"))
	fmt.Printf("%s %d\n", scanDimStyle.Render("detections:"), result.Summary.TotalDetections)
	fmt.Printf("%s %s\n", scanDimStyle.Render("potential savings:"),
		scanSavingsStyle.Render(fmt.Sprintf("$%.2f/month", result.Summary.TotalPotentialSavings)))
	fmt.Printf("%s $%.2f/month\n", scanDimStyle.Render("auto-optimizable:"),
		result.Summary.AutoOptimizableSavings)

	if len(result.Summary.ByScenario) > 0 {
		fmt.Println()
		fmt.Println(scanTitleStyle.Render("By scenario"))
		scenarios := make([]string, 0, len(result.Summary.ByScenario))
		for id := range result.Summary.ByScenario {
			scenarios = append(scenarios, id)
		}
		sort.Strings(scenarios)
		for _, id := range scenarios {
			fmt.Printf("  %-32s %d\n", id, result.Summary.ByScenario[id])
		}
	}

	top := result.Detections
	sort.Slice(top, func(i, j int) bool {
		return top[i].PotentialSavings > top[j].PotentialSavings
	})
	if len(top) > scanTop {
		top = top[:scanTop]
	}
	if len(top) > 0 {
		fmt.Println()
		fmt.Println(scanTitleStyle.Render(fmt.Sprintf("Top %d findings", len(top))))
		for _, d := range top {
			fmt.Printf("  %-24s %-28s $%8.2f/mo  conf %d%%\n",
				d.ScenarioID, d.ResourceName, d.PotentialSavings, d.Confidence)
		}
	}
}

func init() {
	scanCmd.Flags().BoolVar(&scanSeed, "seed", false, "Seed a demo inventory before scanning")
	scanCmd.Flags().IntVar(&scanTop, "top", 10, "How many findings to print")
	rootCmd.AddCommand(scanCmd)
}
