package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gitrdm/rdfinfer/pkg/term"
)

// ParseNQuads parses a restricted N-Triples/N-Quads subset: one
// statement per line, each of the form
//
//	<subject> <predicate> object [<graph>] .
//
// where object is an absolute IRI (<...>), a blank node (_:id), or a
// literal ("text", "text"^^<datatype>, or "text"@lang). This is the
// format this module's own bundled data files use; full Turtle (prefix
// declarations, relative IRIs, collection/blank-node shorthand) is out
// of scope for the in-memory reference store (spec §1: a real triple
// store and its RDF parser are an external collaborator).
func ParseNQuads(data []byte) ([]term.Quad, error) {
	var quads []term.Quad
	lines := strings.Split(string(data), "\n")

	for lineNo, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasSuffix(line, ".") {
			return nil, fmt.Errorf("nquads: line %d: statement must end with '.': %q", lineNo+1, line)
		}
		body := strings.TrimSpace(line[:len(line)-1])

		fields, err := splitNQuadFields(body)
		if err != nil {
			return nil, fmt.Errorf("nquads: line %d: %w", lineNo+1, err)
		}
		if len(fields) < 3 || len(fields) > 4 {
			return nil, fmt.Errorf("nquads: line %d: expected 3 or 4 terms, got %d", lineNo+1, len(fields))
		}

		subj, err := parseSubjectOrObject(fields[0])
		if err != nil {
			return nil, fmt.Errorf("nquads: line %d: subject: %w", lineNo+1, err)
		}
		predTerm, err := parseSubjectOrObject(fields[1])
		if err != nil {
			return nil, fmt.Errorf("nquads: line %d: predicate: %w", lineNo+1, err)
		}
		predIRI, ok := predTerm.(term.IRI)
		if !ok {
			return nil, fmt.Errorf("nquads: line %d: predicate must be an IRI, got %q", lineNo+1, fields[1])
		}
		obj, err := parseSubjectOrObject(fields[2])
		if err != nil {
			return nil, fmt.Errorf("nquads: line %d: object: %w", lineNo+1, err)
		}

		var graph term.IRI
		if len(fields) == 4 {
			g, err := parseSubjectOrObject(fields[3])
			if err != nil {
				return nil, fmt.Errorf("nquads: line %d: graph: %w", lineNo+1, err)
			}
			gi, ok := g.(term.IRI)
			if !ok {
				return nil, fmt.Errorf("nquads: line %d: graph must be an IRI, got %q", lineNo+1, fields[3])
			}
			graph = gi
		}

		quads = append(quads, term.Quad{Subject: subj, Predicate: predIRI, Object: obj, GraphName: graph})
	}

	return quads, nil
}

// splitNQuadFields splits a statement body on whitespace outside of
// quoted literals and angle brackets.
func splitNQuadFields(s string) ([]string, error) {
	var fields []string
	var current strings.Builder
	var inQuote bool
	var inAngle bool

	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote:
			current.WriteByte(c)
			if c == '"' && (i == 0 || s[i-1] != '\\') {
				inQuote = false
			}
		case inAngle:
			current.WriteByte(c)
			if c == '>' {
				inAngle = false
			}
		case c == '"':
			inQuote = true
			current.WriteByte(c)
		case c == '<':
			inAngle = true
			current.WriteByte(c)
		case c == ' ' || c == '\t':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	if inQuote || inAngle {
		return nil, fmt.Errorf("unterminated quote or angle bracket in %q", s)
	}
	return fields, nil
}

func parseSubjectOrObject(tok string) (term.Term, error) {
	switch {
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return term.IRI(tok[1 : len(tok)-1]), nil
	case strings.HasPrefix(tok, "_:"):
		return term.BlankNode(strings.TrimPrefix(tok, "_:")), nil
	case strings.HasPrefix(tok, `"`):
		return parseNQuadLiteral(tok)
	default:
		return nil, fmt.Errorf("unrecognized term %q", tok)
	}
}

func parseNQuadLiteral(tok string) (term.Literal, error) {
	end := strings.LastIndexByte(tok, '"')
	if end <= 0 {
		return term.Literal{}, fmt.Errorf("malformed literal %q", tok)
	}
	value, err := strconv.Unquote(tok[:end+1])
	if err != nil {
		value = tok[1:end]
	}
	suffix := tok[end+1:]

	switch {
	case strings.HasPrefix(suffix, "^^"):
		dt := suffix[2:]
		if strings.HasPrefix(dt, "<") && strings.HasSuffix(dt, ">") {
			dt = dt[1 : len(dt)-1]
		}
		return term.Literal{Value: value, Datatype: term.IRI(dt)}, nil
	case strings.HasPrefix(suffix, "@"):
		return term.Literal{Value: value, Lang: suffix[1:]}, nil
	case suffix == "":
		return term.Literal{Value: value}, nil
	default:
		return term.Literal{}, fmt.Errorf("malformed literal suffix %q", suffix)
	}
}
