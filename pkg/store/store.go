// Package store defines the narrow facade the inference engine uses to
// talk to an RDF quad store (component C3). The real SPARQL algebra and
// any persistent/transactional storage backend are external collaborators
// (spec §1 non-goals); this package owns only the interface contract and
// a minimal in-memory reference implementation sufficient to exercise and
// test the rest of the core.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gitrdm/rdfinfer/pkg/term"
)

// Store is the facade the execution engine depends on. A production
// deployment backs this with a real SPARQL-capable quad store; Memory
// below is a reference implementation for development and tests.
type Store interface {
	// Load parses and inserts quads already decoded by the caller,
	// associating them with the given base IRI for provenance/logging.
	// Callers pass "file://<path>" for file-sourced data, per this
	// module's load convention. Memory does not use the base IRI, and no
	// relative IRI is resolved against it.
	Load(ctx context.Context, quads []term.Quad, baseIRI string) error

	// Add inserts a single quad, returning whether it was new (false if
	// the store already contained an identical quad).
	Add(ctx context.Context, q term.Quad) (bool, error)

	// Count returns the total number of quads currently stored.
	Count(ctx context.Context) (int, error)

	// ConstructQuery runs a CONSTRUCT-shaped triple pattern query and
	// returns the resulting quads. Since full SPARQL algebra is out of
	// scope, callers supply a Pattern rather than a SPARQL string; the
	// execution engine builds Patterns from a parsed rule's triple
	// patterns, and no SPARQL text is parsed here.
	ConstructQuery(ctx context.Context, pattern Pattern) ([]term.Quad, error)

	// Delete removes every quad matching pattern (a nil field, or a field
	// bound to an unresolved term.Var, acts as a wildcard exactly as in
	// ConstructQuery), returning how many quads were actually removed.
	// This is the store's half of the facade's update(sparql) contract
	// (spec §4.3): the execution engine resolves a DELETE template's
	// variables against its WHERE solutions into concrete Patterns and
	// calls Delete once per solution/pattern, so in-place updates can
	// shrink the triple set (spec §3).
	Delete(ctx context.Context, pattern Pattern) (int, error)

	// Dump returns every quad currently in the store, sorted by
	// term.ByNQuad for deterministic output.
	Dump(ctx context.Context) ([]term.Quad, error)

	// LoadDump replaces the store's contents with exactly the given
	// quads (used to restore a cached inference result).
	LoadDump(ctx context.Context, quads []term.Quad) error
}

// Pattern is a quad pattern with optional wildcard fields (nil = match
// anything in that position). It stands in for the WHERE-clause triple
// patterns a real SPARQL engine would plan and execute.
type Pattern struct {
	Subject, Predicate, Object, Graph term.Term
}

// Matches reports whether q satisfies p, treating a nil field as a
// wildcard.
func (p Pattern) Matches(q term.Quad) bool {
	if p.Subject != nil && !termEqual(p.Subject, q.Subject) {
		return false
	}
	if p.Predicate != nil && !termEqual(p.Predicate, term.IRI(q.Predicate)) {
		return false
	}
	if p.Object != nil && !termEqual(p.Object, q.Object) {
		return false
	}
	if p.Graph != nil && !termEqual(p.Graph, term.IRI(q.GraphName)) {
		return false
	}
	return true
}

func termEqual(a, b term.Term) bool {
	if v, ok := a.(term.Var); ok {
		_ = v
		return true // an unbound query variable matches anything
	}
	return a.String() == b.String()
}

// Memory is an in-memory Store, indexed by subject, predicate, and
// object position (teacher's FactIndex pattern: position -> value ->
// set of quad indices), adapted from per-term-position fact indexing to
// per-term-position quad indexing.
type Memory struct {
	mu sync.RWMutex

	quads []term.Quad
	// index[pos][value] is the set of quad slice indices whose term at
	// that position stringifies to value. pos 0=subject,1=predicate,
	// 2=object,3=graph.
	index [4]map[string]map[int]bool
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.index {
		m.index[i] = make(map[string]map[int]bool)
	}
	return m
}

func (m *Memory) Load(ctx context.Context, quads []term.Quad, baseIRI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quads {
		m.addLocked(q)
	}
	return nil
}

func (m *Memory) Add(ctx context.Context, q term.Quad) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.quads {
		if existing.Equal(q) {
			return false, nil
		}
	}
	m.addLocked(q)
	return true, nil
}

func (m *Memory) addLocked(q term.Quad) {
	idx := len(m.quads)
	m.quads = append(m.quads, q)

	fields := [4]string{q.Subject.String(), q.Predicate.String(), q.Object.String(), q.GraphName.String()}
	for pos, v := range fields {
		if m.index[pos][v] == nil {
			m.index[pos][v] = make(map[int]bool)
		}
		m.index[pos][v][idx] = true
	}
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quads), nil
}

// ConstructQuery evaluates pattern by intersecting the index sets for
// each bound (non-wildcard) position, then rehydrating the matching
// quads — equivalent in shape to FactIndex.Lookup's set-intersection
// strategy, generalized from 1-D fact positions to 4-D quad positions.
func (m *Memory) ConstructQuery(ctx context.Context, pattern Pattern) ([]term.Quad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates map[int]bool
	bind := func(pos int, t term.Term) {
		if t == nil || term.IsVar(t) {
			return
		}
		set := m.index[pos][t.String()]
		if candidates == nil {
			candidates = cloneSet(set)
			return
		}
		candidates = intersect(candidates, set)
	}

	bind(0, pattern.Subject)
	bind(1, pattern.Predicate)
	bind(2, pattern.Object)
	bind(3, pattern.Graph)

	var result []term.Quad
	if candidates == nil {
		// Fully wildcard pattern: every quad matches.
		for _, q := range m.quads {
			if pattern.Matches(q) {
				result = append(result, q)
			}
		}
		return result, nil
	}

	indices := make([]int, 0, len(candidates))
	for i := range candidates {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		if pattern.Matches(m.quads[i]) {
			result = append(result, m.quads[i])
		}
	}
	return result, nil
}

// Delete removes every quad matching pattern and rebuilds the position
// index around what remains. Deletes are expected to be far rarer than
// reads (spec §3: the outer loop is mostly CONSTRUCT-monotonic), so a
// full index rebuild here is simpler than maintaining incremental
// removal bookkeeping in addLocked's per-insert index.
func (m *Memory) Delete(ctx context.Context, pattern Pattern) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]term.Quad, 0, len(m.quads))
	removed := 0
	for _, q := range m.quads {
		if pattern.Matches(q) {
			removed++
			continue
		}
		kept = append(kept, q)
	}
	m.quads = kept
	m.rebuildIndex()

	return removed, nil
}

func (m *Memory) rebuildIndex() {
	for i := range m.index {
		m.index[i] = make(map[string]map[int]bool)
	}
	for idx, q := range m.quads {
		fields := [4]string{q.Subject.String(), q.Predicate.String(), q.Object.String(), q.GraphName.String()}
		for pos, v := range fields {
			if m.index[pos][v] == nil {
				m.index[pos][v] = make(map[int]bool)
			}
			m.index[pos][v][idx] = true
		}
	}
}

func (m *Memory) Dump(ctx context.Context) ([]term.Quad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]term.Quad, len(m.quads))
	copy(out, m.quads)
	sort.Sort(term.ByNQuad(out))
	return out, nil
}

func (m *Memory) LoadDump(ctx context.Context, quads []term.Quad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quads = append([]term.Quad(nil), quads...)
	m.rebuildIndex()
	return nil
}

func cloneSet(s map[int]bool) map[int]bool {
	out := make(map[int]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func intersect(a, b map[int]bool) map[int]bool {
	out := make(map[int]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

// String renders basic store stats for logging.
func (m *Memory) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("store.Memory(quads=%d)", len(m.quads))
}
