package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/api"
)

var (
	runInterval     time.Duration
	runTurns        int
	runSandbox      bool
	runNoBankruptcy bool
)

// autosaveEvery is the turn interval between automatic snapshots.
const autosaveEvery = 10

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation continuously",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, city, store, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		city.SetSandboxMoney(runSandbox)
		city.SetBankruptcyDisabled(runNoBankruptcy)

		var mu sync.Mutex
		if cfg.API.Enabled {
			server := api.NewServer(city, &mu, cfg.API.Port, logger)
			server.Start()
			defer server.Stop()
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		ticker := time.NewTicker(runInterval)
		defer ticker.Stop()

		logger.Info("simulation running",
			zap.Duration("interval", runInterval),
			zap.String("difficulty", cfg.Difficulty))
		for {
			select {
			case <-stop:
				logger.Info("shutting down")
				mu.Lock()
				err := store.Save(city)
				mu.Unlock()
				return err
			case <-ticker.C:
				mu.Lock()
				city.AdvanceTurn()
				turn := city.Turn()
				bankrupt := city.IsBankrupt()
				if turn%autosaveEvery == 0 {
					if err := store.Save(city); err != nil {
						logger.Error("autosave failed", zap.Error(err))
					}
				}
				mu.Unlock()
				if bankrupt {
					logger.Warn("city is bankrupt, stopping", zap.Int("turn", turn))
					mu.Lock()
					err := store.Save(city)
					mu.Unlock()
					return err
				}
				if runTurns > 0 && turn >= runTurns {
					mu.Lock()
					err := store.Save(city)
					mu.Unlock()
					return err
				}
			}
		}
	},
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", time.Second, "wall-clock time per turn")
	runCmd.Flags().IntVar(&runTurns, "turns", 0, "stop after this many turns (0 = run until interrupted)")
	runCmd.Flags().BoolVar(&runSandbox, "sandbox", false, "bottomless treasury")
	runCmd.Flags().BoolVar(&runNoBankruptcy, "no-bankruptcy", false, "disable the bankruptcy check")
}
