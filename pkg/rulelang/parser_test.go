package rulelang

import "testing"

func TestParseRulesSimple(t *testing.T) {
	src := `[rdfs9: (?x rdf:type ?c) (?c rdfs:subClassOf ?d) -> (?x rdf:type ?d)]`
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	r := rules[0]
	if r.Name != "rdfs9" {
		t.Errorf("Name = %q, want %q", r.Name, "rdfs9")
	}
	if len(r.Body) != 2 {
		t.Fatalf("len(Body) = %d, want 2", len(r.Body))
	}
	if len(r.Head) != 1 {
		t.Fatalf("len(Head) = %d, want 1", len(r.Head))
	}
}

func TestParseRulesWithComments(t *testing.T) {
	src := `
# a leading comment
[r1: (?x rdf:type ?c) # trailing comment
  -> (?x rdfs:label "has type")]
/* a block
   comment */
[r2: (?a ?b ?c) -> (?a ?b ?c)]
`
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
}

func TestParseRulesPreservesHashInQuotedLiteral(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) -> (?x rdfs:comment "contains # not a comment")]`
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	obj := rules[0].Head[0].Object.Text
	if obj != `"contains # not a comment"` {
		t.Errorf("Object.Text = %q, want literal with '#' preserved", obj)
	}
}

func TestParseRulesRejectsNestedBrackets(t *testing.T) {
	src := `[r1: (?x rdf:type [?c]) -> (?x rdf:type ?c)]`
	if _, err := ParseRules(src); err == nil {
		t.Fatal("expected an error for nested brackets, got nil")
	}
}

func TestParseRulesMissingArrow(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) (?x rdf:type ?c)]`
	if _, err := ParseRules(src); err == nil {
		t.Fatal("expected an error for missing '->' separator, got nil")
	}
}

func TestParseRulesUnboundHeadVariable(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) -> (?x rdfs:label ?y)]`
	if _, err := ParseRules(src); err == nil {
		t.Fatal("expected an UnboundHeadVariable error, got nil")
	}
}

func TestParseNoValueThreeArgForm(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) noValue(?x, rdfs:label, ?y) -> (?x rdf:type ?c)]`
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	neg := rules[0].Body[1]
	if neg.Kind != AtomNegation {
		t.Fatalf("Body[1].Kind = %v, want AtomNegation", neg.Kind)
	}
	if neg.Negation.Predicate.Text != "rdfs:label" {
		t.Errorf("Predicate.Text = %q, want %q", neg.Negation.Predicate.Text, "rdfs:label")
	}
}

func TestParseNoValueTwoArgLegacyForm(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) noValue(?x, rdfs:label) -> (?x rdf:type ?c)]`
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	neg := rules[0].Body[1].Negation
	if !neg.Object.IsVariable {
		t.Errorf("legacy 2-arg noValue should bind a fresh anonymous variable for the object")
	}
}

func TestParseBooleanLiteralNormalization(t *testing.T) {
	src := `[r1: (?x rdf:type ?c) -> (?x ex:active true)]`
	rules, err := ParseRules(src)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	obj := rules[0].Head[0].Object.Text
	if obj != `"true"^^xsd:boolean` {
		t.Errorf("Object.Text = %q, want normalized boolean literal", obj)
	}
}
