// Package main is the rdfinfer CLI entry point.
//
// Commands are split across multiple cmd_*.go files for maintainability:
//
//	main.go      - entry point, rootCmd, global flags
//	cmd_run.go   - run command: load frameworks + data, infer, export
//	cmd_query.go - query command: print a cached store's quads, optionally filtered by predicate
//	cmd_cache.go - cache subcommands: clear
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose int
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rdfinfer",
	Short: "Forward-chaining RDF inference over RuleLang-compiled rule frameworks",
	Long: `rdfinfer loads one or more rule frameworks and RDF data files, runs
forward-chaining inference to a fixed point, and exports the resulting graph.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		return err
	},
}

func newLogger(level int) (*zap.Logger, error) {
	if level <= 0 {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	if level < 2 {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().IntVar(&verbose, "verbose", 0, "verbose output level: 0=silent, 1=progress, 2=debug")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rdfinfer:", err)
		os.Exit(1)
	}
}
