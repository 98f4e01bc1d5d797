package rulelang

import "strings"

import "testing"

func mustParseOne(t *testing.T, src string) *Rule {
	t.Helper()
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	return rules[0]
}

func TestCompileClauseOrdering(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) greaterThan(?c, "0") noValue(?x, rdfs:label, ?y) -> (?x rdf:type ?c)]`
	rule := mustParseOne(t, src)

	cr, err := Compile(rule, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	patternIdx := strings.Index(cr.Query, "?x rdf:type ?c .")
	filterIdx := strings.Index(cr.Query, "FILTER(?c > \"0\")")
	negIdx := strings.Index(cr.Query, "FILTER NOT EXISTS")

	if !(patternIdx < filterIdx && filterIdx < negIdx) {
		t.Errorf("clause ordering wrong: pattern=%d filter=%d negation=%d, want pattern < filter < negation", patternIdx, filterIdx, negIdx)
	}
}

func TestCompileBinderBeforeFilter(t *testing.T) {
	src := `[r1: (?x ex:val ?v) sum(?v, "1", ?w) greaterThan(?w, "0") -> (?x ex:incremented ?w)]`
	rule := mustParseOne(t, src)

	cr, err := Compile(rule, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	bindIdx := strings.Index(cr.Query, "BIND((?v + \"1\") AS ?w)")
	filterIdx := strings.Index(cr.Query, "FILTER(?w > \"0\")")
	if bindIdx < 0 || filterIdx < 0 {
		t.Fatalf("expected both BIND and FILTER fragments in query:\n%s", cr.Query)
	}
	if !(bindIdx < filterIdx) {
		t.Errorf("BIND must precede FILTER: bind=%d filter=%d", bindIdx, filterIdx)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) -> (?x rdf:type ?c)]`
	rule := mustParseOne(t, src)

	first, err := Compile(rule, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	second, err := Compile(rule, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if first.Query != second.Query {
		t.Errorf("repeated compilation is not deterministic:\n%s\n---\n%s", first.Query, second.Query)
	}
}

func TestCompileLenientUnknownBuiltinDropped(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) totallyUnknownBuiltin(?c) -> (?x rdf:type ?c)]`
	rule := mustParseOne(t, src)

	cr, err := Compile(rule, CompileOptions{StrictBuiltins: false})
	if err != nil {
		t.Fatalf("Compile() error = %v, want lenient no-op drop", err)
	}
	if strings.Contains(cr.Query, "totallyUnknownBuiltin") {
		t.Errorf("unknown built-in should have been dropped from query:\n%s", cr.Query)
	}
}

func TestCompileStrictUnknownBuiltinErrors(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) totallyUnknownBuiltin(?c) -> (?x rdf:type ?c)]`
	rule := mustParseOne(t, src)

	if _, err := Compile(rule, CompileOptions{StrictBuiltins: true}); err == nil {
		t.Fatal("expected an error in strict mode for an unknown built-in, got nil")
	}
}

func TestCompileAllAggregatesErrors(t *testing.T) {
	good := mustParseOne(t, `[ok: (?x rdf:type ?c) -> (?x rdf:type ?c)]`)
	bad := &Rule{
		Name: "bad",
		Body: []BodyAtom{{Kind: AtomBuiltin, Builtin: BuiltinCall{Name: "nope", Args: nil}}},
		Head: []TriplePattern{{Subject: newTerm("?x"), Predicate: newTerm("rdf:type"), Object: newTerm("?c")}},
	}

	_, err := CompileAll([]*Rule{good, bad}, CompileOptions{StrictBuiltins: true})
	if err == nil {
		t.Fatal("expected aggregated error from CompileAll, got nil")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("aggregated error should mention the failing rule name: %v", err)
	}
}

func TestCompileMakeSkolemSingleArg(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) makeSkolem(?s) -> (?s rdf:type ?c)]`
	rule := mustParseOne(t, src)
	cr, err := Compile(rule, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(cr.Query, "BIND(BNODE() AS ?s)") {
		t.Errorf("expected single-arg makeSkolem to bind a fresh blank node:\n%s", cr.Query)
	}
}

func TestCompileMakeSkolemMultiArg(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) makeSkolem(?s, ?x, "suffix") -> (?s rdf:type ?c)]`
	rule := mustParseOne(t, src)
	cr, err := Compile(rule, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(cr.Query, `BIND(IRI(CONCAT("urn:skolem:", ENCODE_FOR_URI(STR(?x)), "_", "suffix")) AS ?s)`) {
		t.Errorf("unexpected makeSkolem fragment:\n%s", cr.Query)
	}
}
