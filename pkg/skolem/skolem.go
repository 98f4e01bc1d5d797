// Package skolem assigns stable, deterministic IRIs to blank nodes
// before the first inference round (component C2). Skolemization runs
// exactly once, on the initial loaded data, so that rules downstream can
// match against a blank node's replacement IRI consistently across
// inference rounds.
package skolem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/gitrdm/rdfinfer/pkg/term"
)

// DefaultNamespace is the IRI prefix used for skolem URIs, matching the
// original implementation's "urn:skolem:" convention.
const DefaultNamespace = "urn:skolem:"

// Mode selects how stable IDs are derived for blank nodes.
type Mode int

const (
	// ModeContentBased derives a blank node's skolem IRI from the sorted
	// set of (predicate, object) pairs asserted about it (and, in
	// reverse, the (predicate, subject) pairs where it appears as an
	// object). Two blank nodes with identical assertions collapse onto
	// the same IRI — this is the default, matching the original system.
	ModeContentBased Mode = iota

	// ModeIdentifierHash derives a blank node's skolem IRI purely from
	// its original (store-local) identifier, with no regard to content.
	// Distinct blank node identifiers always yield distinct IRIs, even
	// if their asserted properties are identical.
	ModeIdentifierHash
)

// Skolemizer replaces blank nodes with stable urn:skolem: IRIs. The zero
// value is not usable; construct with New.
type Skolemizer struct {
	namespace string
	mode      Mode

	blankToIRI map[string]term.IRI
}

// New constructs a Skolemizer. An empty namespace defaults to
// DefaultNamespace.
func New(namespace string, mode Mode) *Skolemizer {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Skolemizer{
		namespace:  namespace,
		mode:       mode,
		blankToIRI: make(map[string]term.IRI),
	}
}

// SkolemizeQuads rewrites every blank node subject/object in quads with
// its stable skolem IRI, returning a new slice (the input is never
// mutated). Skolemization is idempotent: a blank node encountered twice
// always maps to the same IRI within one Skolemizer's lifetime, and
// running SkolemizeQuads output back through the same Skolemizer is a
// no-op, since it contains no remaining blank nodes.
func (s *Skolemizer) SkolemizeQuads(quads []term.Quad) []term.Quad {
	switch s.mode {
	case ModeContentBased:
		s.generateContentBasedIDs(quads)
	case ModeIdentifierHash:
		for _, q := range quads {
			s.registerIdentifier(q.Subject)
			s.registerIdentifier(q.Object)
		}
	}

	out := make([]term.Quad, len(quads))
	for i, q := range quads {
		out[i] = term.Quad{
			Subject:   s.skolemizeTerm(q.Subject),
			Predicate: q.Predicate,
			Object:    s.skolemizeTerm(q.Object),
			GraphName: q.GraphName,
		}
	}
	return out
}

// signaturePair is one (predicate, value) contribution to a blank node's
// content signature.
type signaturePair struct {
	predicate string
	value     string
}

func (s *Skolemizer) generateContentBasedIDs(quads []term.Quad) {
	signatures := make(map[string][]signaturePair)

	for _, q := range quads {
		if bn, ok := q.Subject.(term.BlankNode); ok {
			id := string(bn)
			signatures[id] = append(signatures[id], signaturePair{
				predicate: string(q.Predicate),
				value:     termString(q.Object),
			})
		}
		if bn, ok := q.Object.(term.BlankNode); ok {
			id := string(bn)
			signatures[id] = append(signatures[id], signaturePair{
				predicate: "^" + string(q.Predicate),
				value:     termString(q.Subject),
			})
		}
	}

	for blankID, sig := range signatures {
		if _, already := s.blankToIRI[blankID]; already {
			continue
		}
		sort.Slice(sig, func(i, j int) bool {
			if sig[i].predicate != sig[j].predicate {
				return sig[i].predicate < sig[j].predicate
			}
			return sig[i].value < sig[j].value
		})

		parts := make([]string, len(sig))
		for i, p := range sig {
			parts[i] = p.predicate + "=" + p.value
		}
		sigStr := strings.Join(parts, ";")
		stableID := hashPrefix(sigStr, 16)
		s.blankToIRI[blankID] = term.IRI(s.namespace + "content-" + stableID)
	}
}

func (s *Skolemizer) registerIdentifier(t term.Term) {
	bn, ok := t.(term.BlankNode)
	if !ok {
		return
	}
	id := string(bn)
	if _, already := s.blankToIRI[id]; already {
		return
	}
	stableID := hashPrefix(id, 16)
	s.blankToIRI[id] = term.IRI(s.namespace + stableID)
}

func (s *Skolemizer) skolemizeTerm(t term.Term) term.Term {
	bn, ok := t.(term.BlankNode)
	if !ok {
		return t
	}
	id := string(bn)
	if iri, ok := s.blankToIRI[id]; ok {
		return iri
	}
	// Fallback: a blank node missed by the bulk pass (should not happen
	// in practice, since SkolemizeQuads always registers every blank node
	// it sees first) still gets a deterministic identifier-hash IRI.
	s.registerIdentifier(t)
	return s.blankToIRI[id]
}

func termString(t term.Term) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func hashPrefix(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	full := hex.EncodeToString(sum[:])
	if n > len(full) {
		n = len(full)
	}
	return full[:n]
}

// String renders the Skolemizer's configuration for logging.
func (s *Skolemizer) String() string {
	modeName := "content"
	if s.mode == ModeIdentifierHash {
		modeName = "identifier"
	}
	return fmt.Sprintf("skolemizer(namespace=%s, mode=%s, assigned=%d)", s.namespace, modeName, len(s.blankToIRI))
}
