package engine

import (
	"fmt"
	"strings"

	"github.com/gitrdm/rdfinfer/pkg/rulelang"
)

// ParsedSPARQLText is the shared AST produced by parsing a framework-
// bundled CONSTRUCT or UPDATE file's raw SPARQL text, reusing RuleLang's
// Term/TriplePattern/BodyAtom types (pkg/rulelang/ast.go) so that the
// join evaluator written for compiled RuleLang rules (evaluateAtoms) can
// execute these files too, with no second interpreter.
//
// Insert/Delete are the CONSTRUCT/INSERT/DELETE template triples; Where
// is the WHERE clause's body atoms (nil for the DELETE DATA/INSERT DATA
// forms, which have no WHERE clause and therefore match exactly one,
// empty solution).
type ParsedSPARQLText struct {
	Insert []rulelang.TriplePattern
	Delete []rulelang.TriplePattern
	Where  []rulelang.BodyAtom
}

// ParseSPARQLText parses one of the six forms this module supports:
// CONSTRUCT {...} WHERE {...}, DELETE {...} WHERE {...},
// INSERT {...} WHERE {...}, DELETE {...} INSERT {...} WHERE {...},
// DELETE DATA {...}, INSERT DATA {...}.
//
// This is deliberately a subset parser, not a SPARQL 1.1 grammar: bodies
// are conjunctive basic graph patterns (triples joined by top-level '.'),
// and the only supported filter shape is a single binary comparison
// (>,<,>=,<=,=,!=). OPTIONAL, UNION, property paths, and nested
// subqueries are out of scope, matching this module's non-goal of full
// SPARQL 1.1 compliance (the RuleLang interpreter these files feed into
// never needed more than that).
func ParseSPARQLText(text string) (*ParsedSPARQLText, error) {
	prefixes := extractPrefixes(text)

	type form struct {
		keyword string
		offset  int
	}
	var best *form
	for _, kw := range []string{"DELETE DATA", "INSERT DATA", "CONSTRUCT", "DELETE", "INSERT"} {
		idx := findTopLevelKeyword(text, kw, 0)
		if idx < 0 {
			continue
		}
		if best == nil || idx < best.offset || (idx == best.offset && len(kw) > len(best.keyword)) {
			best = &form{keyword: kw, offset: idx}
		}
	}
	if best == nil {
		return nil, ErrSPARQLText.New("no recognized CONSTRUCT/INSERT/DELETE form found")
	}

	switch best.keyword {
	case "DELETE DATA":
		block, _, err := extractBlock(text, best.offset+len(best.keyword))
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		triples, err := parseTriplesBlock(block, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		return &ParsedSPARQLText{Delete: triples}, nil

	case "INSERT DATA":
		block, _, err := extractBlock(text, best.offset+len(best.keyword))
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		triples, err := parseTriplesBlock(block, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		return &ParsedSPARQLText{Insert: triples}, nil

	case "CONSTRUCT":
		head, rest, err := extractBlock(text, best.offset+len(best.keyword))
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		insert, err := parseTriplesBlock(head, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		where, err := parseWhereAfter(rest, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		return &ParsedSPARQLText{Insert: insert, Where: where}, nil

	case "DELETE":
		delBlock, rest, err := extractBlock(text, best.offset+len(best.keyword))
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		del, err := parseTriplesBlock(delBlock, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}

		var ins []rulelang.TriplePattern
		if insIdx := findTopLevelKeyword(rest, "INSERT", 0); insIdx >= 0 {
			whereIdx := findTopLevelKeyword(rest, "WHERE", 0)
			if whereIdx < 0 || insIdx < whereIdx {
				insBlock, after, err := extractBlock(rest, insIdx+len("INSERT"))
				if err != nil {
					return nil, ErrSPARQLText.New(err.Error())
				}
				ins, err = parseTriplesBlock(insBlock, prefixes)
				if err != nil {
					return nil, ErrSPARQLText.New(err.Error())
				}
				rest = after
			}
		}

		where, err := parseWhereAfter(rest, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		return &ParsedSPARQLText{Delete: del, Insert: ins, Where: where}, nil

	case "INSERT":
		insBlock, rest, err := extractBlock(text, best.offset+len(best.keyword))
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		ins, err := parseTriplesBlock(insBlock, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		where, err := parseWhereAfter(rest, prefixes)
		if err != nil {
			return nil, ErrSPARQLText.New(err.Error())
		}
		return &ParsedSPARQLText{Insert: ins, Where: where}, nil
	}

	return nil, ErrSPARQLText.New("unreachable: unhandled form " + best.keyword)
}

// parseWhereAfter requires a WHERE keyword somewhere in rest and parses
// its braced block into body atoms.
func parseWhereAfter(rest string, prefixes map[string]string) ([]rulelang.BodyAtom, error) {
	whereIdx := findTopLevelKeyword(rest, "WHERE", 0)
	if whereIdx < 0 {
		return nil, fmt.Errorf("expected WHERE clause")
	}
	block, _, err := extractBlock(rest, whereIdx+len("WHERE"))
	if err != nil {
		return nil, err
	}
	return parseWhereBlock(block, prefixes)
}

// extractPrefixes scans text for "PREFIX name: <iri>" declarations
// (outside this subset's grammar is otherwise silent about namespaces),
// merging over rulelang.StandardPrefixes so a bundled file may both rely
// on the four standard prefixes and declare its own.
func extractPrefixes(text string) map[string]string {
	out := make(map[string]string, len(rulelang.StandardPrefixes))
	for k, v := range rulelang.StandardPrefixes {
		out[k] = v
	}

	searchFrom := 0
	for {
		idx := findTopLevelKeyword(text, "PREFIX", searchFrom)
		if idx < 0 {
			break
		}
		pos := idx + len("PREFIX")
		for pos < len(text) && isSpaceByte(text[pos]) {
			pos++
		}
		nameStart := pos
		for pos < len(text) && text[pos] != ':' {
			pos++
		}
		if pos >= len(text) {
			break
		}
		name := strings.TrimSpace(text[nameStart:pos])
		pos++ // skip ':'
		for pos < len(text) && isSpaceByte(text[pos]) {
			pos++
		}
		if pos >= len(text) || text[pos] != '<' {
			break
		}
		pos++ // skip '<'
		iriStart := pos
		for pos < len(text) && text[pos] != '>' {
			pos++
		}
		if pos >= len(text) {
			break
		}
		out[name] = text[iriStart:pos]
		pos++ // skip '>'
		searchFrom = pos
	}
	return out
}

// findTopLevelKeyword finds the first whole-word, case-insensitive
// occurrence of kw in s at or after from, skipping over double-quoted
// string literals (so a keyword-looking substring inside a literal value
// is never mistaken for syntax).
func findTopLevelKeyword(s string, kw string, from int) int {
	lower := strings.ToLower(s)
	kwLower := strings.ToLower(kw)
	inQuote := false
	for i := from; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			if i == 0 || s[i-1] != '\\' {
				inQuote = !inQuote
			}
			continue
		}
		if inQuote {
			continue
		}
		if i+len(kwLower) > len(lower) {
			continue
		}
		if lower[i:i+len(kwLower)] != kwLower {
			continue
		}
		before := byte(' ')
		if i > 0 {
			before = s[i-1]
		}
		after := byte(' ')
		if i+len(kwLower) < len(s) {
			after = s[i+len(kwLower)]
		}
		if !isWordByte(before) && !isWordByte(after) {
			return i
		}
	}
	return -1
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// extractBlock skips whitespace from offset, requires a '{', and returns
// the text between it and its matching '}' (respecting nested braces and
// quoted string literals), plus the index in s right after the closing
// brace.
func extractBlock(s string, offset int) (block string, restOffset int, err error) {
	i := offset
	for i < len(s) && isSpaceByte(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != '{' {
		return "", 0, fmt.Errorf("expected '{' at offset %d", offset)
	}
	start := i + 1
	depth := 1
	inQuote := false
	for i = start; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start:i], i + 1, nil
			}
		}
	}
	return "", 0, fmt.Errorf("unterminated block starting at offset %d", offset)
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

// splitTopLevel splits s on every occurrence of sep that is outside a
// quoted string literal and outside an <...> IRI, discarding empty
// trailing segments. A '.' between two digits (a decimal such as 1.5) is
// not treated as a separator.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	start := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		if c == '<' {
			// An IRI runs to the next '>' with no whitespace in between;
			// a '<' followed by whitespace or '=' is a comparison operator.
			if end := strings.IndexAny(s[i+1:], "> \t\r\n"); end >= 0 && s[i+1+end] == '>' {
				i += end + 1
				continue
			}
		}
		if c == '.' && i > 0 && i+1 < len(s) && isDigitByte(s[i-1]) && isDigitByte(s[i+1]) {
			continue
		}
		if c == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, s[start:])
	}
	return out
}

// parseTriplesBlock splits block into "." separated triples and parses
// each into exactly 3 whitespace-separated terms: predicate-object list
// shorthand (";", ",") is not supported (spec subset, see ParseSPARQLText).
func parseTriplesBlock(block string, prefixes map[string]string) ([]rulelang.TriplePattern, error) {
	var out []rulelang.TriplePattern
	for _, segment := range splitTopLevel(block, '.') {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		tokens := tokenizeWhitespace(segment)
		if len(tokens) != 3 {
			return nil, fmt.Errorf("expected exactly 3 terms in triple %q, got %d", segment, len(tokens))
		}
		out = append(out, rulelang.TriplePattern{
			Subject:   termFromToken(tokens[0], prefixes),
			Predicate: termFromToken(tokens[1], prefixes),
			Object:    termFromToken(tokens[2], prefixes),
		})
	}
	return out, nil
}

// parseWhereBlock splits block into "." separated segments, each either
// a triple pattern or a single FILTER(...) comparison, in source order.
func parseWhereBlock(block string, prefixes map[string]string) ([]rulelang.BodyAtom, error) {
	var out []rulelang.BodyAtom
	for _, segment := range splitTopLevel(block, '.') {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if len(segment) >= 6 && strings.EqualFold(segment[:6], "FILTER") {
			atom, err := parseFilter(segment, prefixes)
			if err != nil {
				return nil, err
			}
			out = append(out, atom)
			continue
		}
		tokens := tokenizeWhitespace(segment)
		if len(tokens) != 3 {
			return nil, fmt.Errorf("expected exactly 3 terms in WHERE triple %q, got %d", segment, len(tokens))
		}
		out = append(out, rulelang.BodyAtom{
			Kind: rulelang.AtomTriple,
			Triple: rulelang.TriplePattern{
				Subject:   termFromToken(tokens[0], prefixes),
				Predicate: termFromToken(tokens[1], prefixes),
				Object:    termFromToken(tokens[2], prefixes),
			},
		})
	}
	return out, nil
}

var comparisonOps = []struct {
	text string
	name string
}{
	{">=", "ge"},
	{"<=", "le"},
	{"!=", "notEqual"},
	{"=", "equal"},
	{">", "greaterThan"},
	{"<", "lessThan"},
}

// parseFilter parses "FILTER(<left> <op> <right>)" into the matching
// comparison built-in (the only FILTER shape this subset supports).
func parseFilter(segment string, prefixes map[string]string) (rulelang.BodyAtom, error) {
	rest := strings.TrimSpace(segment[len("FILTER"):])
	inner, _, err := extractParens(rest, 0)
	if err != nil {
		return rulelang.BodyAtom{}, err
	}
	for _, op := range comparisonOps {
		idx := strings.Index(inner, op.text)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(inner[:idx])
		right := strings.TrimSpace(inner[idx+len(op.text):])
		if left == "" || right == "" {
			continue
		}
		return rulelang.BodyAtom{
			Kind: rulelang.AtomBuiltin,
			Builtin: rulelang.BuiltinCall{
				Name: op.name,
				Args: []rulelang.Term{termFromToken(left, prefixes), termFromToken(right, prefixes)},
			},
		}, nil
	}
	return rulelang.BodyAtom{}, fmt.Errorf("FILTER(%s): no supported binary comparison found", inner)
}

// extractParens mirrors extractBlock for a parenthesized expression
// starting at offset in s.
func extractParens(s string, offset int) (inner string, restOffset int, err error) {
	i := offset
	for i < len(s) && isSpaceByte(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != '(' {
		return "", 0, fmt.Errorf("expected '(' at offset %d in %q", offset, s)
	}
	start := i + 1
	depth := 1
	inQuote := false
	for i = start; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start:i], i + 1, nil
			}
		}
	}
	return "", 0, fmt.Errorf("unterminated parenthesized expression starting at offset %d", offset)
}

// tokenizeWhitespace splits s on whitespace outside quoted literals, so
// a literal value containing spaces stays one token.
func tokenizeWhitespace(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inQuote = !inQuote
			cur.WriteByte(c)
			continue
		}
		if !inQuote && isSpaceByte(c) {
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}

var numericLiteral = func(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	if i == len(s) {
		return false
	}
	seenDigit, seenDot := false, false
	for ; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			seenDigit = true
		case s[i] == '.' && !seenDot:
			seenDot = true
		default:
			return false
		}
	}
	return seenDigit
}

// termFromToken resolves one raw SPARQL-text token into a rulelang.Term,
// ready for the shared toStoreTerm resolution path in resolve.go:
// variables and bracketed/quoted terms pass straight through, "a" is
// expanded to rdf:type, prefixed names are expanded to absolute
// <...> IRIs using prefixes, and bare numeric literals are wrapped as
// typed xsd literals (SPARQL text uses bare integers/decimals; RuleLang
// terms, which this shares a resolver with, always quote literal values).
func termFromToken(tok string, prefixes map[string]string) rulelang.Term {
	switch {
	case strings.HasPrefix(tok, "?") || strings.HasPrefix(tok, "$"):
		return rulelang.Term{Text: "?" + tok[1:], IsVariable: true}

	case tok == "a":
		return rulelang.Term{Text: "<" + prefixes["rdf"] + "type>"}

	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return rulelang.Term{Text: tok}

	case strings.HasPrefix(tok, `"`):
		return rulelang.Term{Text: tok}

	case tok == "true" || tok == "false":
		return rulelang.Term{Text: fmt.Sprintf(`"%s"^^xsd:boolean`, tok)}

	case numericLiteral(tok):
		dt := "xsd:integer"
		if strings.Contains(tok, ".") {
			dt = "xsd:decimal"
		}
		return rulelang.Term{Text: fmt.Sprintf(`"%s"^^%s`, tok, dt)}

	case strings.Contains(tok, ":"):
		parts := strings.SplitN(tok, ":", 2)
		if ns, ok := prefixes[parts[0]]; ok {
			return rulelang.Term{Text: "<" + ns + parts[1] + ">"}
		}
		return rulelang.Term{Text: tok}

	default:
		return rulelang.Term{Text: tok}
	}
}
