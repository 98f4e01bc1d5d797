package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gitrdm/rdfinfer/pkg/rulelang"
	"github.com/gitrdm/rdfinfer/pkg/skolem"
	"github.com/gitrdm/rdfinfer/pkg/store"
	"github.com/gitrdm/rdfinfer/pkg/term"
)

// evalBuiltin runs one built-in call against the current binding set,
// either filtering it out (returning ok=false) or extending it with a
// new binding. This is the Memory-store execution path's counterpart to
// rulelang's builtinTable: that table emits SPARQL text for a real
// backend, while this evaluates the same built-in set directly in Go so
// the in-memory reference store needs no SPARQL parser of its own.
func evalBuiltin(ctx context.Context, st store.Store, call rulelang.BuiltinCall, b Binding, sk *skolem.Skolemizer) (Binding, bool, error) {
	switch call.Name {
	case "greaterThan", "lessThan", "le", "ge", "equal", "notEqual":
		return evalComparison(call, b)

	case "regex":
		return evalRegex(call, b)

	case "strConcat":
		return evalConcat(call, b, false)
	case "uriConcat":
		return evalConcat(call, b, true)

	case "isLiteral":
		return evalTypeCheck(call, b, func(t term.Term) bool { _, ok := t.(term.Literal); return ok })
	case "isURI":
		return evalTypeCheck(call, b, func(t term.Term) bool { _, ok := t.(term.IRI); return ok })
	case "isBNode":
		return evalTypeCheck(call, b, func(t term.Term) bool { _, ok := t.(term.BlankNode); return ok })
	case "notBNode":
		return evalTypeCheck(call, b, func(t term.Term) bool { _, ok := t.(term.BlankNode); return !ok })

	case "sum":
		return evalArithmetic(call, b, func(x, y float64) float64 { return x + y })
	case "difference":
		return evalArithmetic(call, b, func(x, y float64) float64 { return x - y })
	case "product":
		return evalArithmetic(call, b, func(x, y float64) float64 { return x * y })
	case "quotient":
		return evalArithmetic(call, b, func(x, y float64) float64 { return x / y })

	case "now":
		return bindOut(call, b, 0, term.Literal{Value: time.Now().UTC().Format(time.RFC3339Nano), Datatype: term.IRI("http://www.w3.org/2001/XMLSchema#dateTime")})
	case "makeTemp":
		return bindOut(call, b, 0, term.BlankNode(fmt.Sprintf("tmp%d", tempCounter())))
	case "makeSkolem":
		return evalMakeSkolem(call, b, sk)

	case "listContains":
		return evalListContains(ctx, st, call, b)

	default:
		// Lenient by default, matching rulelang.Compile's default
		// behavior: an unrecognized built-in is a silent no-op pass.
		return b, true, nil
	}
}

var tempSeq int

func tempCounter() int {
	tempSeq++
	return tempSeq
}

func resolvedValue(t rulelang.Term, b Binding) (term.Term, bool) {
	v := toStoreTerm(t, b)
	if term.IsVar(v) {
		return nil, false
	}
	return v, true
}

func numericValue(t term.Term) (float64, bool) {
	lit, ok := t.(term.Literal)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(lit.Value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func evalComparison(call rulelang.BuiltinCall, b Binding) (Binding, bool, error) {
	if len(call.Args) != 2 {
		return nil, false, fmt.Errorf("%s expects 2 arguments", call.Name)
	}
	left, lok := resolvedValue(call.Args[0], b)
	right, rok := resolvedValue(call.Args[1], b)
	if !lok || !rok {
		return nil, false, nil
	}

	lf, lIsNum := numericValue(left)
	rf, rIsNum := numericValue(right)

	var cmp int
	if lIsNum && rIsNum {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(left.String(), right.String())
	}

	var pass bool
	switch call.Name {
	case "greaterThan":
		pass = cmp > 0
	case "lessThan":
		pass = cmp < 0
	case "le":
		pass = cmp <= 0
	case "ge":
		pass = cmp >= 0
	case "equal":
		pass = cmp == 0
	case "notEqual":
		pass = cmp != 0
	}
	return b, pass, nil
}

func evalRegex(call rulelang.BuiltinCall, b Binding) (Binding, bool, error) {
	if len(call.Args) != 2 {
		return nil, false, fmt.Errorf("regex expects 2 arguments")
	}
	subj, ok := resolvedValue(call.Args[0], b)
	if !ok {
		return nil, false, nil
	}
	patTerm, ok := resolvedValue(call.Args[1], b)
	if !ok {
		return nil, false, nil
	}
	pattern := literalValue(patTerm)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false, fmt.Errorf("regex: invalid pattern %q: %w", pattern, err)
	}
	return b, re.MatchString(literalValue(subj)), nil
}

func literalValue(t term.Term) string {
	if lit, ok := t.(term.Literal); ok {
		return lit.Value
	}
	return t.String()
}

func evalConcat(call rulelang.BuiltinCall, b Binding, asURI bool) (Binding, bool, error) {
	if len(call.Args) < 2 {
		return nil, false, fmt.Errorf("concat builtin expects at least 2 arguments")
	}
	var sb strings.Builder
	for _, a := range call.Args[:len(call.Args)-1] {
		v, ok := resolvedValue(a, b)
		if !ok {
			return nil, false, nil
		}
		sb.WriteString(literalValue(v))
	}
	var out term.Term
	if asURI {
		out = term.IRI(sb.String())
	} else {
		out = term.Literal{Value: sb.String()}
	}
	return bindOut(call, b, len(call.Args)-1, out)
}

func evalTypeCheck(call rulelang.BuiltinCall, b Binding, pred func(term.Term) bool) (Binding, bool, error) {
	if len(call.Args) != 1 {
		return nil, false, fmt.Errorf("%s expects 1 argument", call.Name)
	}
	v, ok := resolvedValue(call.Args[0], b)
	if !ok {
		return nil, false, nil
	}
	return b, pred(v), nil
}

func evalArithmetic(call rulelang.BuiltinCall, b Binding, op func(x, y float64) float64) (Binding, bool, error) {
	if len(call.Args) != 3 {
		return nil, false, fmt.Errorf("arithmetic builtin expects 3 arguments")
	}
	x, ok := resolvedValue(call.Args[0], b)
	if !ok {
		return nil, false, nil
	}
	y, ok := resolvedValue(call.Args[1], b)
	if !ok {
		return nil, false, nil
	}
	xf, xok := numericValue(x)
	yf, yok := numericValue(y)
	if !xok || !yok {
		return nil, false, fmt.Errorf("arithmetic builtin requires numeric literals, got %s and %s", x, y)
	}
	result := op(xf, yf)
	out := term.Literal{Value: strconv.FormatFloat(result, 'g', -1, 64), Datatype: term.IRI("http://www.w3.org/2001/XMLSchema#double")}
	return bindOut(call, b, 2, out)
}

func evalMakeSkolem(call rulelang.BuiltinCall, b Binding, sk *skolem.Skolemizer) (Binding, bool, error) {
	if len(call.Args) == 0 {
		return nil, false, fmt.Errorf("makeSkolem expects at least 1 argument")
	}
	if len(call.Args) == 1 {
		return bindOut(call, b, 0, term.BlankNode(fmt.Sprintf("skolem%d", tempCounter())))
	}

	// Mirrors compileMakeSkolem's SPARQL emission (pkg/rulelang/builtins.go):
	// only values resolved from a *variable* argument are percent-encoded
	// (there, ENCODE_FOR_URI(STR(...)); here, encodeForURI); a static
	// literal/IRI argument's text passes through unencoded.
	parts := make([]string, 0, len(call.Args)-1)
	for _, a := range call.Args[1:] {
		v, ok := resolvedValue(a, b)
		if !ok {
			return nil, false, nil
		}
		val := literalValue(v)
		if a.IsVariable {
			val = encodeForURI(val)
		}
		parts = append(parts, val)
	}
	iri := term.IRI(skolem.DefaultNamespace + strings.Join(parts, "_"))
	return bindOut(call, b, 0, iri)
}

// encodeForURI percent-encodes every byte of s outside the RFC 3986
// unreserved set (ALPHA / DIGIT / "-" / "." / "_" / "~"), matching
// SPARQL's ENCODE_FOR_URI. net/url.QueryEscape is not used here: it
// encodes spaces as "+" rather than "%20", which ENCODE_FOR_URI does not.
func encodeForURI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

// evalListContains walks list's rdf:first/rdf:rest chain looking for a
// node whose rdf:first equals elem, mirroring the SPARQL translation's
// "FILTER(EXISTS { list rdf:rest*/rdf:first elem })" (pkg/rulelang's
// listContains entry). It is a pure filter: no output binding, and a
// malformed or cyclic list simply fails the filter once every reachable
// node has been visited, rather than looping forever.
func evalListContains(ctx context.Context, st store.Store, call rulelang.BuiltinCall, b Binding) (Binding, bool, error) {
	if len(call.Args) != 2 {
		return nil, false, fmt.Errorf("listContains expects 2 arguments")
	}
	node, ok := resolvedValue(call.Args[0], b)
	if !ok {
		return nil, false, nil
	}
	elem, ok := resolvedValue(call.Args[1], b)
	if !ok {
		return nil, false, nil
	}

	rdfFirst := term.IRI(rulelang.StandardPrefixes["rdf"] + "first")
	rdfRest := term.IRI(rulelang.StandardPrefixes["rdf"] + "rest")

	visited := make(map[string]bool)
	for node != nil && !visited[node.String()] {
		visited[node.String()] = true

		firsts, err := st.ConstructQuery(ctx, store.Pattern{Subject: node, Predicate: rdfFirst})
		if err != nil {
			return nil, false, err
		}
		for _, q := range firsts {
			if q.Object.String() == elem.String() {
				return b, true, nil
			}
		}

		rests, err := st.ConstructQuery(ctx, store.Pattern{Subject: node, Predicate: rdfRest})
		if err != nil {
			return nil, false, err
		}
		if len(rests) == 0 {
			break
		}
		node = rests[0].Object
	}
	return b, false, nil
}

// bindOut extends b with call.Args[outPos] (which must be a variable)
// bound to value, and returns the extended binding with ok=true.
func bindOut(call rulelang.BuiltinCall, b Binding, outPos int, value term.Term) (Binding, bool, error) {
	if outPos >= len(call.Args) {
		return nil, false, fmt.Errorf("%s: missing output variable", call.Name)
	}
	out := call.Args[outPos]
	if !out.IsVariable {
		return nil, false, fmt.Errorf("%s: output position must be a variable, got %q", call.Name, out.Text)
	}
	name := strings.TrimPrefix(out.Text, "?")
	next := b.Clone()
	next[name] = value
	return next, true, nil
}
