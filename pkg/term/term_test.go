package term

import (
	"sort"
	"testing"
)

func TestLiteralString(t *testing.T) {
	t.Run("plain literal", func(t *testing.T) {
		l := Literal{Value: "hello"}
		if got, want := l.String(), `"hello"`; got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})

	t.Run("typed literal", func(t *testing.T) {
		l := Literal{Value: "42", Datatype: IRI("http://www.w3.org/2001/XMLSchema#integer")}
		want := `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`
		if got := l.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})

	t.Run("language literal", func(t *testing.T) {
		l := Literal{Value: "bonjour", Lang: "fr"}
		if got, want := l.String(), `"bonjour"@fr`; got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})

	t.Run("escapes quotes and control characters", func(t *testing.T) {
		l := Literal{Value: "a\"b\nc"}
		if got, want := l.String(), `"a\"b\nc"`; got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})
}

func TestBoolLiteral(t *testing.T) {
	if got, want := BoolLiteral(true).String(), `"true"^^<`+string(XSDBoolean)+">"; got != want {
		t.Errorf("BoolLiteral(true) = %q, want %q", got, want)
	}
	if got, want := BoolLiteral(false).String(), `"false"^^<`+string(XSDBoolean)+">"; got != want {
		t.Errorf("BoolLiteral(false) = %q, want %q", got, want)
	}
}

func TestQuadHasBlankNode(t *testing.T) {
	q := Quad{Subject: BlankNode("b0"), Predicate: IRI("p"), Object: IRI("o")}
	if !q.HasBlankNode() {
		t.Error("expected HasBlankNode to be true for blank subject")
	}

	q2 := Quad{Subject: IRI("s"), Predicate: IRI("p"), Object: BlankNode("b1")}
	if !q2.HasBlankNode() {
		t.Error("expected HasBlankNode to be true for blank object")
	}

	q3 := Quad{Subject: IRI("s"), Predicate: IRI("p"), Object: IRI("o")}
	if q3.HasBlankNode() {
		t.Error("expected HasBlankNode to be false when no blank node is present")
	}
}

func TestQuadEqualAndGet(t *testing.T) {
	a := Quad{Subject: IRI("s"), Predicate: IRI("p"), Object: Literal{Value: "1"}}
	b := Quad{Subject: IRI("s"), Predicate: IRI("p"), Object: Literal{Value: "1"}}
	if !a.Equal(b) {
		t.Error("expected structurally identical quads to be Equal")
	}

	if got := a.Get(Subject); got != a.Subject {
		t.Errorf("Get(Subject) = %v, want %v", got, a.Subject)
	}
	if got := a.Get(Predicate); got.(IRI) != a.Predicate {
		t.Errorf("Get(Predicate) = %v, want %v", got, a.Predicate)
	}
}

func TestByNQuadSort(t *testing.T) {
	quads := []Quad{
		{Subject: IRI("b"), Predicate: IRI("p"), Object: IRI("o")},
		{Subject: IRI("a"), Predicate: IRI("q"), Object: IRI("o")},
		{Subject: IRI("a"), Predicate: IRI("p"), Object: IRI("z")},
	}
	sort.Sort(ByNQuad(quads))

	want := []string{"<a>", "<a>", "<b>"}
	for i, q := range quads {
		if q.Subject.String() != want[i] {
			t.Errorf("quads[%d].Subject = %v, want %v", i, q.Subject, want[i])
		}
	}
}

func TestNQuadFormatting(t *testing.T) {
	q := Quad{Subject: IRI("urn:a"), Predicate: IRI("urn:p"), Object: IRI("urn:o")}
	if got, want := q.NQuad(), "<urn:a> <urn:p> <urn:o> ."; got != want {
		t.Errorf("NQuad() = %q, want %q", got, want)
	}

	withGraph := Quad{Subject: IRI("urn:a"), Predicate: IRI("urn:p"), Object: IRI("urn:o"), GraphName: IRI("urn:g")}
	if got, want := withGraph.NQuad(), "<urn:a> <urn:p> <urn:o> <urn:g> ."; got != want {
		t.Errorf("NQuad() = %q, want %q", got, want)
	}
}
