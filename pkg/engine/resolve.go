package engine

import (
	"strings"

	"github.com/gitrdm/rdfinfer/pkg/rulelang"
	"github.com/gitrdm/rdfinfer/pkg/term"
)

// toStoreTerm resolves one RuleLang term into the term.Term used in a
// store.Pattern or a quad, given the current bindings: a bound
// variable resolves to its value, an unbound variable becomes a
// term.Var wildcard, and every other term resolves via resolveGround.
func toStoreTerm(t rulelang.Term, b Binding) term.Term {
	if t.IsVariable {
		name := strings.TrimPrefix(t.Text, "?")
		if v, ok := b[name]; ok {
			return v
		}
		return term.Var(name)
	}
	return resolveGround(t.Text)
}

// resolveGround parses a ground RuleLang term (never a variable) into a
// term.Term: an angle-bracketed or bare IRI, a prefixed name expanded via
// rulelang.StandardPrefixes, or a quoted literal with optional ^^datatype
// or @lang suffix.
func resolveGround(text string) term.Term {
	switch {
	case strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">"):
		return term.IRI(text[1 : len(text)-1])

	case strings.HasPrefix(text, `"`):
		return parseLiteral(text)

	case strings.Contains(text, ":"):
		parts := strings.SplitN(text, ":", 2)
		if ns, ok := rulelang.StandardPrefixes[parts[0]]; ok {
			return term.IRI(ns + parts[1])
		}
		return term.IRI(text)

	default:
		return term.IRI(text)
	}
}

// parseLiteral parses a quoted RuleLang literal, e.g. `"42"^^xsd:integer`,
// `"bonjour"@fr`, or a plain `"hello"`.
func parseLiteral(text string) term.Literal {
	end := strings.LastIndexByte(text, '"')
	if end <= 0 {
		return term.Literal{Value: strings.Trim(text, `"`)}
	}
	value := unescapeLiteral(text[1:end])
	suffix := text[end+1:]

	switch {
	case strings.HasPrefix(suffix, "^^"):
		dtText := suffix[2:]
		dt, ok := resolveGround(dtText).(term.IRI)
		if !ok {
			dt = term.IRI(dtText)
		}
		return term.Literal{Value: value, Datatype: dt}
	case strings.HasPrefix(suffix, "@"):
		return term.Literal{Value: value, Lang: suffix[1:]}
	default:
		return term.Literal{Value: value}
	}
}

func unescapeLiteral(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(s[i+1])
			}
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
