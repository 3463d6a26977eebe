package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/city-builder/internal/engine"
)

var stepCount int

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Advance the simulation a fixed number of turns and save",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, city, store, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		for i := 0; i < stepCount; i++ {
			city.AdvanceTurn()
		}
		if err := store.Save(city); err != nil {
			return err
		}
		printSummary(city.Summary())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of the saved city",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, city, store, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		printSummary(city.Summary())
		for _, alert := range city.Alerts(10) {
			fmt.Printf("  [%s] turn %d: %s\n", alert.Severity, alert.Turn, alert.Message)
		}
		return nil
	},
}

func printSummary(s engine.Summary) {
	fmt.Printf("Turn %d — level %d (%s)\n", s.Turn, s.Level, s.Difficulty)
	fmt.Printf("  Treasury:     $%s\n", humanize.CommafWithDigits(s.Money, 2))
	fmt.Printf("  Population:   %s (satisfaction %.0f, unemployment %.1f%%)\n",
		humanize.Comma(int64(s.Population)), s.Satisfaction, s.Unemployment)
	fmt.Printf("  Credit:       %d (%s), risk %.0f%%, debt $%s across %d loans\n",
		s.CreditScore, s.CreditRating, s.BankruptcyRisk*100,
		humanize.CommafWithDigits(s.Debt, 0), s.ActiveLoans)
	fmt.Printf("  Research:     %d completed", s.Researched)
	if s.CurrentResearch != "" {
		fmt.Printf(", working on %s", s.CurrentResearch)
	}
	fmt.Println()
	fmt.Printf("  Buildings:    %d\n", s.Buildings)
	if s.NextLevelAt > 0 {
		fmt.Printf("  Next level:   %s residents\n", humanize.Comma(int64(s.NextLevelAt)))
	}
	if s.Bankrupt {
		fmt.Println("  THE CITY IS BANKRUPT")
	}
}

func init() {
	stepCmd.Flags().IntVar(&stepCount, "n", 1, "number of turns to advance")
}
