// Package engine implements component C4, the execution engine: applying
// one compiled rule's body as a join over the store, instantiating its
// head for every solution found (ApplyQuery), and running a whole rule
// set to inner fixed-point convergence (RunToConvergence), with the same
// iteration cap and diff-trace behavior as the system this module is
// based on.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitrdm/rdfinfer/pkg/rulelang"
	"github.com/gitrdm/rdfinfer/pkg/skolem"
	"github.com/gitrdm/rdfinfer/pkg/store"
	"github.com/gitrdm/rdfinfer/pkg/term"
)

// DefaultIterationLimit bounds RunToConvergence so a non-terminating rule
// set stops instead of hanging forever; hitting the cap is reported as
// ConvergenceStats.Converged == false, not as an error.
const DefaultIterationLimit = 100

// diffTraceLimit is how many newly-added triples are logged per round
// when diff tracing is enabled (matches the "first 20" convention of the
// system this engine reimplements).
const diffTraceLimit = 20

// Engine runs compiled rules against a Store.
type Engine struct {
	log       *zap.Logger
	DebugDiff bool
}

// New constructs an Engine. A nil logger falls back to zap.NewNop().
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// RoundStats summarizes one call to ApplyQuery.
type RoundStats struct {
	NewTriples int
	Elapsed    time.Duration
}

// ApplyQuery evaluates rule's body as a join over st (joining triple
// patterns left to right, filtering and binding through built-ins in
// source order, and rejecting solutions matched by any noValue negation),
// then adds one instantiated head per surviving solution. It returns the
// number of quads that were newly added (solutions whose head already
// existed in the store do not count).
func (e *Engine) ApplyQuery(ctx context.Context, st store.Store, rule *rulelang.Rule, sk *skolem.Skolemizer) (RoundStats, error) {
	start := time.Now()

	solutions, err := e.evaluateAtoms(ctx, st, rule.Body, sk)
	if err != nil {
		return RoundStats{}, ErrQuery.New(rule.Name, err.Error())
	}

	added := 0
	for _, sol := range solutions {
		for _, hp := range rule.Head {
			q := term.Quad{
				Subject:   toStoreTerm(hp.Subject, sol),
				Predicate: mustIRI(toStoreTerm(hp.Predicate, sol)),
				Object:    toStoreTerm(hp.Object, sol),
			}
			isNew, err := st.Add(ctx, q)
			if err != nil {
				return RoundStats{}, ErrUpdate.New(rule.Name, err.Error())
			}
			if isNew {
				added++
			}
		}
	}

	return RoundStats{NewTriples: added, Elapsed: time.Since(start)}, nil
}

// ApplyUpdate evaluates upd's WHERE atoms as a join over st exactly like
// ApplyQuery, then, for every solution, deletes upd's Delete templates
// before adding upd's Insert templates (DELETE-before-INSERT, matching
// SPARQL Update's own semantics). An unbound template variable resolves
// to a term.Var wildcard (via toStoreTerm), so a DELETE template against
// an empty WHERE clause removes every matching triple regardless of
// subject — no separate "DELETE WHERE shorthand" case is needed.
//
// NewTriples is always reported as 0 regardless of how many quads were
// actually deleted or inserted: updates do not drive the orchestrator's
// round-convergence delta, only CONSTRUCT/rule execution does.
func (e *Engine) ApplyUpdate(ctx context.Context, st store.Store, upd *ParsedSPARQLText, sk *skolem.Skolemizer) (RoundStats, error) {
	start := time.Now()

	solutions, err := e.evaluateAtoms(ctx, st, upd.Where, sk)
	if err != nil {
		return RoundStats{}, ErrQuery.New("update", err.Error())
	}

	for _, sol := range solutions {
		for _, tp := range upd.Delete {
			pattern := store.Pattern{
				Subject:   toStoreTerm(tp.Subject, sol),
				Predicate: toStoreTerm(tp.Predicate, sol),
				Object:    toStoreTerm(tp.Object, sol),
			}
			if _, err := st.Delete(ctx, pattern); err != nil {
				return RoundStats{}, ErrUpdate.New("update", err.Error())
			}
		}
		for _, tp := range upd.Insert {
			q := term.Quad{
				Subject:   toStoreTerm(tp.Subject, sol),
				Predicate: mustIRI(toStoreTerm(tp.Predicate, sol)),
				Object:    toStoreTerm(tp.Object, sol),
			}
			if _, err := st.Add(ctx, q); err != nil {
				return RoundStats{}, ErrUpdate.New("update", err.Error())
			}
		}
	}

	return RoundStats{NewTriples: 0, Elapsed: time.Since(start)}, nil
}

func mustIRI(t term.Term) term.IRI {
	if iri, ok := t.(term.IRI); ok {
		return iri
	}
	return term.IRI(t.String())
}

// evaluateAtoms performs a left-to-right nested-loop join over a body's
// positive triple patterns, narrowing the candidate binding set at each
// built-in and discarding any binding rejected by a noValue negation.
// This is the in-process counterpart to handing the compiled SPARQL text
// to an external engine: the same left-to-right clause order the
// compiler emits is walked here directly. ApplyQuery and ApplyUpdate
// both delegate to this so a RuleLang rule body and a parsed raw-SPARQL
// WHERE clause share one join evaluator.
func (e *Engine) evaluateAtoms(ctx context.Context, st store.Store, atoms []rulelang.BodyAtom, sk *skolem.Skolemizer) ([]Binding, error) {
	solutions := []Binding{{}}

	for _, atom := range atoms {
		var next []Binding

		switch atom.Kind {
		case rulelang.AtomTriple:
			for _, b := range solutions {
				pattern := store.Pattern{
					Subject:   toStoreTerm(atom.Triple.Subject, b),
					Predicate: toStoreTerm(atom.Triple.Predicate, b),
					Object:    toStoreTerm(atom.Triple.Object, b),
				}
				matches, err := st.ConstructQuery(ctx, pattern)
				if err != nil {
					return nil, err
				}
				for _, q := range matches {
					if ext, ok := extendBinding(b, atom.Triple, q); ok {
						next = append(next, ext)
					}
				}
			}

		case rulelang.AtomBuiltin:
			for _, b := range solutions {
				ext, ok, err := evalBuiltin(ctx, st, atom.Builtin, b, sk)
				if err != nil {
					return nil, err
				}
				if ok {
					next = append(next, ext)
				}
			}

		case rulelang.AtomNegation:
			for _, b := range solutions {
				pattern := store.Pattern{
					Subject:   toStoreTerm(atom.Negation.Subject, b),
					Predicate: toStoreTerm(atom.Negation.Predicate, b),
					Object:    toStoreTerm(atom.Negation.Object, b),
				}
				matches, err := st.ConstructQuery(ctx, pattern)
				if err != nil {
					return nil, err
				}
				if len(matches) == 0 {
					next = append(next, b)
				}
			}
		}

		solutions = next
		if len(solutions) == 0 {
			break
		}
	}

	return solutions, nil
}

// extendBinding unifies pattern's variables against a concrete matched
// quad q, extending b. It fails (ok=false) only if a variable already
// bound in b conflicts with a different value in q — which should not
// happen, since ConstructQuery only returns quads consistent with the
// already-bound positions passed into the pattern, but is checked
// defensively for safety.
func extendBinding(b Binding, tp rulelang.TriplePattern, q term.Quad) (Binding, bool) {
	next := b.Clone()
	if !unify(next, tp.Subject, q.Subject) {
		return nil, false
	}
	if !unify(next, tp.Predicate, term.IRI(q.Predicate)) {
		return nil, false
	}
	if !unify(next, tp.Object, q.Object) {
		return nil, false
	}
	return next, true
}

func unify(b Binding, patternTerm rulelang.Term, value term.Term) bool {
	if !patternTerm.IsVariable {
		return true
	}
	name := patternTerm.Text[1:]
	if existing, bound := b[name]; bound {
		return existing.Equal(value)
	}
	b[name] = value
	return true
}

// ConvergenceStats mirrors the statistics gathered by one full
// RunToConvergence call.
type ConvergenceStats struct {
	RunID            string
	Iterations       int
	TotalNewTriples  int
	FinalTripleCount int
	IterationCounts  []int
	Converged        bool
}

// RunToConvergence applies every rule in rules once per iteration, until
// an iteration adds no new triples or maxIterations is reached (default
// DefaultIterationLimit when maxIterations <= 0). Each iteration's
// diff — the triples newly present in the store — is logged, truncated
// to the first diffTraceLimit entries, when e.DebugDiff is set.
func (e *Engine) RunToConvergence(ctx context.Context, st store.Store, rules []*rulelang.Rule, sk *skolem.Skolemizer, maxIterations int) (ConvergenceStats, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultIterationLimit
	}

	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID))

	previousCount, err := st.Count(ctx)
	if err != nil {
		return ConvergenceStats{}, err
	}

	var previousTriples map[string]bool
	if e.DebugDiff {
		previousTriples, err = triplesSnapshot(ctx, st)
		if err != nil {
			return ConvergenceStats{}, err
		}
	}

	stats := ConvergenceStats{RunID: runID}
	actualNew := 0

	for stats.Iterations < maxIterations {
		stats.Iterations++
		newInIteration := 0

		for _, rule := range rules {
			roundStats, err := e.ApplyQuery(ctx, st, rule, sk)
			if err != nil {
				return stats, err
			}
			newInIteration += roundStats.NewTriples
			log.Debug("applied rule",
				zap.String("rule", rule.Name),
				zap.Int("new_triples", roundStats.NewTriples),
				zap.Duration("elapsed", roundStats.Elapsed))
		}

		currentCount, err := st.Count(ctx)
		if err != nil {
			return stats, err
		}
		actualNew = currentCount - previousCount

		if e.DebugDiff && actualNew > 0 {
			currentTriples, err := triplesSnapshot(ctx, st)
			if err != nil {
				return stats, err
			}
			logDiff(log, stats.Iterations, previousTriples, currentTriples)
			previousTriples = currentTriples
		}

		stats.IterationCounts = append(stats.IterationCounts, actualNew)
		stats.TotalNewTriples += actualNew

		if actualNew == 0 {
			break
		}
		previousCount = currentCount
		_ = newInIteration
	}

	finalCount, err := st.Count(ctx)
	if err != nil {
		return stats, err
	}
	stats.FinalTripleCount = finalCount
	stats.Converged = actualNew == 0

	log.Info("run to convergence complete",
		zap.Int("iterations", stats.Iterations),
		zap.Int("total_new_triples", stats.TotalNewTriples),
		zap.Bool("converged", stats.Converged))

	return stats, nil
}

func triplesSnapshot(ctx context.Context, st store.Store) (map[string]bool, error) {
	quads, err := st.Dump(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(quads))
	for _, q := range quads {
		out[q.Triple()] = true
	}
	return out, nil
}

func logDiff(log *zap.Logger, iteration int, before, after map[string]bool) {
	var fresh []string
	for t := range after {
		if !before[t] {
			fresh = append(fresh, t)
		}
	}
	sort.Strings(fresh)

	shown := fresh
	truncated := 0
	if len(fresh) > diffTraceLimit {
		shown = fresh[:diffTraceLimit]
		truncated = len(fresh) - diffTraceLimit
	}

	log.Debug("new triples in iteration",
		zap.Int("iteration", iteration),
		zap.Int("total", len(fresh)),
		zap.Strings("triples", shown),
		zap.Int("truncated", truncated))
}
