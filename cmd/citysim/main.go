// citysim drives the city simulation core from the command line:
// a continuous run loop, single stepping, and snapshot inspection.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/config"
	"github.com/talgya/city-builder/internal/engine"
	"github.com/talgya/city-builder/internal/persistence"
	"github.com/talgya/city-builder/internal/rng"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "citysim",
	Short: "Turn-based city simulation engine",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.AddCommand(runCmd, stepCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, builds the logger and assembles a city, restoring
// the latest snapshot when one exists.
func setup() (*config.Config, *zap.Logger, *engine.City, *persistence.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	difficulty, err := config.DifficultyByName(cfg.Difficulty)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	city, err := engine.NewCity(cfg.InitialMoney, difficulty, rng.New(seed), logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store, err := persistence.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	loaded, err := store.Load(city)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}
	if !loaded {
		foundCity(city, logger)
	}
	return cfg, logger, city, store, nil
}

// foundCity places the starter buildings of a fresh settlement.
func foundCity(city *engine.City, logger *zap.Logger) {
	for _, b := range starterBuildings() {
		if ok, reason := city.PlaceBuilding(b); !ok {
			logger.Warn("skipped starter building",
				zap.String("building", b.Name),
				zap.String("reason", reason))
		}
	}
	logger.Info("new city founded", zap.Int("buildings", len(city.Buildings())))
}

func starterBuildings() []building.Building {
	return []building.Building{
		{Name: "Apartment Block", Category: building.CategoryResidential, Cost: 2500,
			Effects: map[string]float64{"population": 60}},
		{Name: "Apartment Block", Category: building.CategoryResidential, Cost: 2500,
			Effects: map[string]float64{"population": 60}},
		{Name: "Market Hall", Category: building.CategoryCommercial, Cost: 1800,
			Effects: map[string]float64{"jobs": 35}},
		{Name: "Workshop", Category: building.CategoryIndustrial, Cost: 2200,
			Effects: map[string]float64{"jobs": 45, "materials": 5}},
		{Name: "Power Plant", Category: building.CategoryInfrastructure, Cost: 3000,
			Effects: map[string]float64{"energy": 60, "jobs": 20}},
		{Name: "Water Tower", Category: building.CategoryInfrastructure, Cost: 1200,
			Effects: map[string]float64{"water": 40}},
		{Name: "Clinic", Category: building.CategoryService, Cost: 2000,
			Effects: map[string]float64{"health": 40, "jobs": 15}},
		{Name: "School", Category: building.CategoryService, Cost: 1800,
			Effects: map[string]float64{"education": 45, "jobs": 15}},
		{Name: "Central Park", Category: building.CategoryService, Cost: 800,
			Effects: map[string]float64{"entertainment": 30}},
		{Name: "Main Road", Category: building.CategoryInfrastructure, Cost: 400,
			Effects: map[string]float64{"transport": 120}},
	}
}
