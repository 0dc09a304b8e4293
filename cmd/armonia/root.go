package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/theory"
)

var (
	configPath string
	logLevel   string
	noColor    bool

	// system holds the theory tables loaded before any command runs
	system *theory.System
)

var rootCmd = &cobra.Command{
	Use:   "armonia",
	Short: "Harmonic analysis and re-harmonization of symbolic music",
	Long: `armonia segments MIDI performances into chords with detected keys and
per-instrument melodies, projects melodic material onto other chord
progressions and realizes chord voicings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger := logging.NewLogger(os.Stderr, os.Stderr, !noColor)
		logger.SetLevel(level)
		logging.SetGlobalLogger(logger)

		cfg := theory.DefaultConfig()
		if configPath != "" {
			if cfg, err = theory.LoadConfig(configPath); err != nil {
				return err
			}
		}
		system, err = theory.NewSystem(cfg)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "theory tables (YAML); built-in defaults when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
}

// Execute runs the root command
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// writeOutput writes data to path, or to stdout when path is empty or "-"
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	var w io.Writer = cmd.OutOrStdout()
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
