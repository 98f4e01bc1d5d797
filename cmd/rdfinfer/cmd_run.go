package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/rdfinfer/pkg/cache"
	"github.com/gitrdm/rdfinfer/pkg/framework"
	"github.com/gitrdm/rdfinfer/pkg/orchestrator"
	"github.com/gitrdm/rdfinfer/pkg/rulelang"
	"github.com/gitrdm/rdfinfer/pkg/store"
	"github.com/gitrdm/rdfinfer/pkg/term"
)

var (
	runFrameworkDirs []string
	runDataFiles     []string
	runConstructs    []string
	runUpdates       []string
	runExportPath    string
	runMaxRounds     int
	runDebugDiff     bool
	runUseCache      bool
	runCacheDir      string
	runClearCache    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run inference over one or more frameworks and data files",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runFrameworkDirs, "frameworks", nil, "framework directories to load")
	runCmd.Flags().StringSliceVar(&runDataFiles, "data", nil, "data files to load")
	runCmd.Flags().StringSliceVar(&runConstructs, "construct", nil, "RuleLang file containing additional construct rules")
	runCmd.Flags().StringSliceVar(&runUpdates, "upsert", nil, "RuleLang file containing additional update rules")
	runCmd.Flags().StringVar(&runExportPath, "export", "", "path to export the inferred graph to, as N-Quads")
	runCmd.Flags().IntVar(&runMaxRounds, "max-rounds", 10, "maximum inference rounds")
	runCmd.Flags().BoolVar(&runDebugDiff, "debug-diff", false, "log the new triples added in each round")
	runCmd.Flags().BoolVar(&runUseCache, "cache", false, "cache inference results by input hash")
	runCmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "cache directory (default: OS temp dir)")
	runCmd.Flags().BoolVar(&runClearCache, "rm-cache", false, "clear the cache before running")
	if err := runCmd.MarkFlagRequired("data"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	frameworks, err := loadFrameworks(runFrameworkDirs)
	if err != nil {
		return err
	}

	var cacheMgr *cache.Manager
	var contentHash string
	if runUseCache {
		cacheMgr, err = cache.New(runCacheDir)
		if err != nil {
			return err
		}
		if runClearCache {
			if err := cacheMgr.Clear(); err != nil {
				return err
			}
		}

		constructQueries, err := buildCacheQueries(runConstructs)
		if err != nil {
			return err
		}
		updateQueries, err := buildCacheQueries(runUpdates)
		if err != nil {
			return err
		}
		contentHash, err = cache.ComputeHash(frameworks, runDataFiles, constructQueries, updateQueries)
		if err != nil {
			return err
		}
		if cacheMgr.Exists(contentHash) {
			logger.Info("cache hit, skipping inference", zap.String("hash", contentHash))
			return exportFromCache(cacheMgr, contentHash, runExportPath)
		}
	}

	st := store.NewMemory()
	sys := orchestrator.New(st, logger)
	sys.Frameworks = frameworks
	sys.DataFiles = runDataFiles
	sys.MaxRounds = runMaxRounds
	sys.Engine.DebugDiff = runDebugDiff

	extras, err := loadExtraQueries(runConstructs, orchestrator.OpConstruct)
	if err != nil {
		return err
	}
	sys.ExtraQueries = append(sys.ExtraQueries, extras...)

	updates, err := loadExtraQueries(runUpdates, orchestrator.OpUpdate)
	if err != nil {
		return err
	}
	sys.ExtraQueries = append(sys.ExtraQueries, updates...)

	stats, err := sys.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inference finished after %d round(s), converged=%v\n", stats.Rounds, stats.Converged)

	for _, s := range sys.Stats.SortedStats() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %-10s new=%d count=%d\n", s.Name, s.Operation, s.NewTriples, s.Count)
	}

	quads, err := sys.Export(ctx)
	if err != nil {
		return err
	}

	if runUseCache && cacheMgr != nil {
		if err := cacheMgr.Save(contentHash, quads); err != nil {
			return err
		}
	}

	if runExportPath != "" {
		return writeNQuads(runExportPath, quads)
	}
	return nil
}

func loadFrameworks(dirs []string) ([]*framework.Framework, error) {
	var loaded []*framework.Framework
	for _, dir := range dirs {
		fw, err := framework.LoadFromManifest(dir)
		if err != nil {
			return nil, fmt.Errorf("loading framework %q: %w", dir, err)
		}
		loaded = append(loaded, fw)
	}
	if err := framework.ValidateDependencies(loaded); err != nil {
		return nil, err
	}
	return loaded, nil
}

// buildCacheQueries reads each --construct/--upsert file's content so
// ComputeHash can fold it into the cache key: two runs with identical
// frameworks/data but different extra-query content must not collide on
// the same hash (cache.ComputeHash already hashes these when given).
func buildCacheQueries(paths []string) ([]cache.ExtraQuery, error) {
	var out []cache.ExtraQuery
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading query file %q: %w", path, err)
		}
		out = append(out, cache.ExtraQuery{Query: string(content), Name: path})
	}
	return out, nil
}

func loadExtraQueries(paths []string, op orchestrator.Operation) ([]orchestrator.ExtraQuery, error) {
	var out []orchestrator.ExtraQuery
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading query file %q: %w", path, err)
		}
		rules, err := rulelang.ParseRules(string(content))
		if err != nil {
			return nil, fmt.Errorf("parsing query file %q: %w", path, err)
		}
		for _, rule := range rules {
			out = append(out, orchestrator.ExtraQuery{Name: path, Rule: rule, Op: op})
		}
	}
	return out, nil
}

func writeNQuads(path string, quads []term.Quad) error {
	var sb strings.Builder
	for _, q := range quads {
		sb.WriteString(q.NQuad())
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func exportFromCache(m *cache.Manager, hash, path string) error {
	if path == "" {
		return nil
	}
	lines, err := m.Load(hash)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
