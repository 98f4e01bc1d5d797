package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/rdfinfer/pkg/cache"
	"github.com/gitrdm/rdfinfer/pkg/store"
)

var (
	queryCacheDir string
	queryPattern  string
)

var queryCmd = &cobra.Command{
	Use:   "query <content-hash>",
	Short: "Load a previously cached converged store and print quads matching a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryCacheDir, "cache-dir", "", "cache directory (default: OS temp dir)")
	queryCmd.Flags().StringVar(&queryPattern, "predicate", "", "only print quads with this predicate IRI")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	hash := args[0]

	mgr, err := cache.New(queryCacheDir)
	if err != nil {
		return err
	}
	if !mgr.Exists(hash) {
		return fmt.Errorf("no cache entry for hash %q", hash)
	}

	lines, err := mgr.Load(hash)
	if err != nil {
		return err
	}

	var nquadText string
	for _, line := range lines {
		nquadText += line + "\n"
	}
	quads, err := store.ParseNQuads([]byte(nquadText))
	if err != nil {
		return fmt.Errorf("parsing cached store: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, q := range quads {
		if queryPattern != "" && string(q.Predicate) != queryPattern {
			continue
		}
		fmt.Fprintln(out, q.NQuad())
	}
	return nil
}
