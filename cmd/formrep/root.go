package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/formrep/internal/config"
	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is resolved from defaults, FORMREP_* variables and flags before
	// every subcommand runs.
	cfg config.Config
	// db is the settings store shared by subcommands.
	db *store.Store

	flags struct {
		dataDir       string
		profile       string
		side          string
		elbowDown     float64
		elbowUp       float64
		hipTolerance  float64
		minConfidence float64
		mode          string
	}
)

var rootCmd = &cobra.Command{
	Use:           "formrep",
	Short:         "Push-up rep counter with form checks",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Default()
		if err := cfg.FromEnv(os.LookupEnv); err != nil {
			return err
		}
		if err := applyFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		var err error
		db, err = store.New(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

// applyFlags copies the persistent flags the user set onto cfg.
func applyFlags(cmd *cobra.Command) error {
	f := cmd.Flags()

	if f.Changed("data-dir") {
		cfg.DataDir = flags.dataDir
	}
	if f.Changed("profile") {
		cfg.Profile = flags.profile
	}
	if f.Changed("side") {
		side, err := detector.ParseSide(flags.side)
		if err != nil {
			return err
		}
		cfg.Side = side
	}
	if f.Changed("elbow-down") {
		cfg.Thresholds.ElbowDownMax = flags.elbowDown
	}
	if f.Changed("elbow-up") {
		cfg.Thresholds.ElbowUpMin = flags.elbowUp
	}
	if f.Changed("hip-tolerance") {
		cfg.Thresholds.HipTolerance = flags.hipTolerance
	}
	if f.Changed("min-confidence") {
		cfg.Detector.MinConfidence = flags.minConfidence
	}
	if f.Changed("mode") {
		cfg.Detector.Mode = flags.mode
	}
	return nil
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.Default()
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&flags.dataDir, "data-dir", defaults.DataDir, "directory holding the settings database")
	pf.StringVar(&flags.profile, "profile", "", "threshold profile to use (default: the active profile)")
	pf.StringVar(&flags.side, "side", string(defaults.Side), "body side to track: left or right")
	pf.Float64Var(&flags.elbowDown, "elbow-down", defaults.Thresholds.ElbowDownMax, "elbow angle at or below which the arm counts as flexed")
	pf.Float64Var(&flags.elbowUp, "elbow-up", defaults.Thresholds.ElbowUpMin, "elbow angle at or above which the arm counts as extended")
	pf.Float64Var(&flags.hipTolerance, "hip-tolerance", defaults.Thresholds.HipTolerance, "allowed hip deviation from a straight body in degrees")
	pf.Float64Var(&flags.minConfidence, "min-confidence", defaults.Detector.MinConfidence, "minimum keypoint score")
	pf.StringVar(&flags.mode, "mode", defaults.Detector.Mode, "pose model: lightweight, balanced or performance")
}
