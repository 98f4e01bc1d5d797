package rulelang

import (
	"fmt"
	"strings"
)

// builtinClass distinguishes filter-class built-ins (FILTER(...)) from
// binder-class built-ins (BIND(... AS ?var)), per spec §3.
type builtinClass int

const (
	classFilter builtinClass = iota
	classBinder
)

// builtinSpec captures one entry of the fixed built-in translation table
// (spec §4.1). compile renders args into a SPARQL fragment; class
// determines how the caller buckets it (BIND or FILTER group) when
// assembling the WHERE clause.
type builtinSpec struct {
	class   builtinClass
	compile func(args []Term) (string, error)
}

var builtinTable map[string]builtinSpec

func init() {
	builtinTable = map[string]builtinSpec{
		"greaterThan": comparison(">"),
		"lessThan":    comparison("<"),
		"le":          comparison("<="),
		"ge":          comparison(">="),
		"equal":       comparison("="),
		"notEqual":    comparison("!="),

		"regex": {class: classFilter, compile: func(args []Term) (string, error) {
			if err := arity("regex", args, 2); err != nil {
				return "", err
			}
			return fmt.Sprintf("FILTER(REGEX(%s, %s))", args[0].Text, args[1].Text), nil
		}},
		"strConcat": {class: classBinder, compile: concatBuiltin("CONCAT(%s)")},
		"uriConcat": {class: classBinder, compile: concatBuiltin("IRI(CONCAT(%s))")},

		"isLiteral": typeCheck("isLiteral"),
		"isURI":     typeCheck("isIRI"),
		"isBNode":   typeCheck("isBlank"),
		"notBNode": {class: classFilter, compile: func(args []Term) (string, error) {
			if err := arity("notBNode", args, 1); err != nil {
				return "", err
			}
			return fmt.Sprintf("FILTER(!isBlank(%s))", args[0].Text), nil
		}},

		"sum":        arithmetic("+"),
		"difference": arithmetic("-"),
		"product":    arithmetic("*"),
		"quotient":   arithmetic("/"),

		"now": {class: classBinder, compile: func(args []Term) (string, error) {
			if err := arity("now", args, 1); err != nil {
				return "", err
			}
			return fmt.Sprintf("BIND(NOW() AS %s)", args[0].Text), nil
		}},
		"makeTemp": {class: classBinder, compile: func(args []Term) (string, error) {
			if err := arity("makeTemp", args, 1); err != nil {
				return "", err
			}
			return fmt.Sprintf("BIND(BNODE() AS %s)", args[0].Text), nil
		}},
		"makeSkolem": {class: classBinder, compile: compileMakeSkolem},

		"listContains": {class: classFilter, compile: func(args []Term) (string, error) {
			if err := arity("listContains", args, 2); err != nil {
				return "", err
			}
			return fmt.Sprintf("FILTER(EXISTS { %s rdf:rest*/rdf:first %s })", args[0].Text, args[1].Text), nil
		}},
	}
}

func arity(name string, args []Term, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func comparison(op string) builtinSpec {
	return builtinSpec{class: classFilter, compile: func(args []Term) (string, error) {
		if err := arity("comparison", args, 2); err != nil {
			return "", err
		}
		return fmt.Sprintf("FILTER(%s %s %s)", args[0].Text, op, args[1].Text), nil
	}}
}

func typeCheck(sparqlFn string) builtinSpec {
	return builtinSpec{class: classFilter, compile: func(args []Term) (string, error) {
		if err := arity(sparqlFn, args, 1); err != nil {
			return "", err
		}
		return fmt.Sprintf("FILTER(%s(%s))", sparqlFn, args[0].Text), nil
	}}
}

func arithmetic(op string) builtinSpec {
	return builtinSpec{class: classBinder, compile: func(args []Term) (string, error) {
		if err := arity("arithmetic", args, 3); err != nil {
			return "", err
		}
		return fmt.Sprintf("BIND((%s %s %s) AS %s)", args[0].Text, op, args[1].Text, args[2].Text), nil
	}}
}

// concatBuiltin builds strConcat/uriConcat: all arguments but the last are
// concatenated; the last argument is the output variable.
func concatBuiltin(wrap string) func(args []Term) (string, error) {
	return func(args []Term) (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("concat builtin expects at least 2 arguments, got %d", len(args))
		}
		out := args[len(args)-1]
		parts := make([]string, len(args)-1)
		for i, a := range args[:len(args)-1] {
			parts[i] = a.Text
		}
		expr := fmt.Sprintf(wrap, strings.Join(parts, ", "))
		return fmt.Sprintf("BIND(%s AS %s)", expr, out.Text), nil
	}
}

// compileMakeSkolem ports jena_compiler.py's _compile_makeskolem: with a
// single argument it's equivalent to makeTemp (a fresh blank node);
// otherwise it builds a content-addressed skolem IRI from the remaining
// arguments.
func compileMakeSkolem(args []Term) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("makeSkolem expects at least 1 argument, got 0")
	}
	out := args[0]
	if len(args) == 1 {
		return fmt.Sprintf("BIND(BNODE() AS %s)", out.Text), nil
	}

	parts := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		switch {
		case a.IsVariable:
			parts = append(parts, fmt.Sprintf("ENCODE_FOR_URI(STR(%s))", a.Text))
		case strings.HasPrefix(a.Text, `"`) && strings.HasSuffix(a.Text, `"`):
			parts = append(parts, a.Text)
		default:
			parts = append(parts, fmt.Sprintf("%q", a.Text))
		}
	}
	concat := strings.Join(parts, `, "_", `)
	return fmt.Sprintf(`BIND(IRI(CONCAT("urn:skolem:", %s)) AS %s)`, concat, out.Text), nil
}
