package orchestrator

import (
	"context"
	"testing"

	"github.com/gitrdm/rdfinfer/pkg/engine"
	"github.com/gitrdm/rdfinfer/pkg/framework"
	"github.com/gitrdm/rdfinfer/pkg/rulelang"
	"github.com/gitrdm/rdfinfer/pkg/store"
)

func TestStatsTrackerRecordsAndSorts(t *testing.T) {
	st := NewStatsTracker()
	st.Record("b-rule", OpRules, 3)
	st.Record("a-rule", OpRules, 5)
	st.Record("a-rule", OpRules, 2)

	sorted := st.SortedStats()
	if len(sorted) != 2 {
		t.Fatalf("len(sorted) = %d, want 2", len(sorted))
	}
	if sorted[0].Name != "a-rule" || sorted[0].NewTriples != 7 || sorted[0].Count != 2 {
		t.Errorf("a-rule entry = %+v, want NewTriples=7 Count=2", sorted[0])
	}
	if sorted[1].Name != "b-rule" || sorted[1].NewTriples != 3 {
		t.Errorf("b-rule entry = %+v, want NewTriples=3", sorted[1])
	}
}

func TestStatsTrackerIgnoresUpdateTriplesInCount(t *testing.T) {
	st := NewStatsTracker()
	st.Record("u", OpUpdate, 42)
	got := st.SortedStats()
	if got[0].NewTriples != 0 {
		t.Errorf("NewTriples = %d, want 0 for update operation", got[0].NewTriples)
	}
	if got[0].Count != 1 {
		t.Errorf("Count = %d, want 1", got[0].Count)
	}
}

func mustCompileRule(t *testing.T, text string) *rulelang.Rule {
	t.Helper()
	rules, err := rulelang.ParseRules(text)
	if err != nil {
		t.Fatalf("ParseRules(%q) error = %v", text, err)
	}
	if len(rules) != 1 {
		t.Fatalf("ParseRules(%q) = %d rules, want 1", text, len(rules))
	}
	return rules[0]
}

func TestSystemRunConvergesWithExtraQueryOnly(t *testing.T) {
	st := store.NewMemory()
	sys := New(st, nil)
	sys.MaxRounds = 5

	rule := mustCompileRule(t, `[transitive: (?x <urn:parentOf> ?y) (?y <urn:parentOf> ?z) -> (?x <urn:ancestorOf> ?z)]`)
	sys.ExtraQueries = []ExtraQuery{{Name: "transitive", Rule: rule, Op: OpRules}}

	ctx := context.Background()

	data := []byte(`<urn:a> <urn:parentOf> <urn:b> .
<urn:b> <urn:parentOf> <urn:c> .
`)
	parsed, err := store.ParseNQuads(data)
	if err != nil {
		t.Fatalf("ParseNQuads() error = %v", err)
	}
	if err := st.Load(ctx, parsed, "file://test"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stats, err := sys.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !stats.Converged {
		t.Fatalf("Run() did not converge within %d rounds", sys.MaxRounds)
	}

	dump, err := sys.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	found := false
	for _, q := range dump {
		if q.NQuad() == `<urn:a> <urn:ancestorOf> <urn:c> .` {
			found = true
		}
	}
	if !found {
		t.Errorf("Export() did not contain the derived ancestorOf triple; got %d quads", len(dump))
	}
}

func TestSystemRunWithEmptyFrameworksConvergesImmediately(t *testing.T) {
	sys := New(nil, nil)
	stats, err := sys.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !stats.Converged || stats.Rounds != 1 {
		t.Errorf("Run() = %+v, want converged after round 1 with nothing to do", stats)
	}
}

func TestSystemSkolemizesBlankNodesOnLoad(t *testing.T) {
	st := store.NewMemory()
	sys := New(st, nil)
	sys.MaxRounds = 1

	data := []byte(`_:b1 <urn:name> "Alice" .
`)
	parsed, err := store.ParseNQuads(data)
	if err != nil {
		t.Fatalf("ParseNQuads() error = %v", err)
	}
	ctx := context.Background()
	if err := st.Load(ctx, parsed, "file://test"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := sys.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dump, err := sys.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, q := range dump {
		if q.HasBlankNode() {
			t.Errorf("found a blank node after skolemization: %v", q)
		}
	}
}

func mustParseSPARQL(t *testing.T, text string) *engine.ParsedSPARQLText {
	t.Helper()
	parsed, err := engine.ParseSPARQLText(text)
	if err != nil {
		t.Fatalf("ParseSPARQLText(%q) error = %v", text, err)
	}
	return parsed
}

func TestSystemExecutesBundledSPARQLConstructFile(t *testing.T) {
	text := `CONSTRUCT { ?x <urn:flagged> "true"^^xsd:boolean } WHERE { ?x <urn:n> ?v . FILTER(?v >= 0) }`
	fw := &framework.Framework{
		Name: "fw1",
		Tier: framework.Custom,
		Files: map[framework.FileKind][]*framework.IncludedFile{
			framework.KindSPARQLConstruct: {{
				Name:         "c.rq",
				DisplayPath:  "fw1:c.rq",
				Content:      []byte(text),
				ParsedSPARQL: mustParseSPARQL(t, text),
			}},
		},
	}

	st := store.NewMemory()
	sys := New(st, nil)
	sys.Frameworks = []*framework.Framework{fw}
	sys.MaxRounds = 5

	ctx := context.Background()
	parsed, err := store.ParseNQuads([]byte(`<urn:x> <urn:n> "0"^^<http://www.w3.org/2001/XMLSchema#integer> .`))
	if err != nil {
		t.Fatalf("ParseNQuads() error = %v", err)
	}
	if err := st.Load(ctx, parsed, "file://test"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stats, err := sys.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !stats.Converged {
		t.Fatal("Run() did not converge")
	}

	dump, err := sys.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	found := false
	for _, q := range dump {
		if q.NQuad() == `<urn:x> <urn:flagged> "true"^^<http://www.w3.org/2001/XMLSchema#boolean> .` {
			found = true
		}
	}
	if !found {
		t.Errorf("Export() did not contain the CONSTRUCTed triple; got %d quads", len(dump))
	}
}

// TestSystemExecutesBundledSPARQLUpdateOscillationClamp exercises spec
// §8 scenario 5: a CONSTRUCT derives ?x :flagged true whenever ?x :n ?v
// with ?v >= 0, and an UPDATE with an empty WHERE unconditionally deletes
// every :flagged triple each round, regardless of binding (toStoreTerm
// resolves the unbound ?x to a wildcard against the single empty
// solution). CONSTRUCT then re-derives it next round, so the outer loop
// never reaches a fixed point; the system must still terminate cleanly
// at MaxRounds, reporting not-converged rather than looping forever or
// erroring.
func TestSystemExecutesBundledSPARQLUpdateOscillationClamp(t *testing.T) {
	constructText := `CONSTRUCT { ?x <urn:flagged> "true"^^xsd:boolean } WHERE { ?x <urn:n> ?v . FILTER(?v >= 0) }`
	updateText := `DELETE { ?x <urn:flagged> "true"^^xsd:boolean } WHERE {}`

	fw := &framework.Framework{
		Name: "fw1",
		Tier: framework.Custom,
		Files: map[framework.FileKind][]*framework.IncludedFile{
			framework.KindSPARQLConstruct: {{
				Name:         "c.rq",
				DisplayPath:  "fw1:c.rq",
				Content:      []byte(constructText),
				ParsedSPARQL: mustParseSPARQL(t, constructText),
			}},
			framework.KindSPARQLUpdate: {{
				Name:         "u.rq",
				DisplayPath:  "fw1:u.rq",
				Content:      []byte(updateText),
				ParsedSPARQL: mustParseSPARQL(t, updateText),
			}},
		},
	}

	st := store.NewMemory()
	sys := New(st, nil)
	sys.Frameworks = []*framework.Framework{fw}
	sys.MaxRounds = 5

	ctx := context.Background()
	parsed, err := store.ParseNQuads([]byte(`<urn:x> <urn:n> "0"^^<http://www.w3.org/2001/XMLSchema#integer> .`))
	if err != nil {
		t.Fatalf("ParseNQuads() error = %v", err)
	}
	if err := st.Load(ctx, parsed, "file://test"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stats, err := sys.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Converged {
		t.Fatal("Run() should not converge: CONSTRUCT re-derives :flagged every round after UPDATE deletes it")
	}
	if stats.Rounds != sys.MaxRounds {
		t.Errorf("Rounds = %d, want MaxRounds = %d", stats.Rounds, sys.MaxRounds)
	}

	dump, err := sys.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, q := range dump {
		if q.NQuad() == `<urn:x> <urn:flagged> "true"^^<http://www.w3.org/2001/XMLSchema#boolean> .` {
			t.Error("the :flagged triple should have been deleted by the UPDATE's final application within the round")
		}
	}
}
