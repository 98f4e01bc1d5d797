package engine

import "github.com/gitrdm/rdfinfer/pkg/term"

// Binding maps a RuleLang variable name (without the leading '?') to the
// term it is currently bound to within one candidate solution.
type Binding map[string]term.Term

// Clone returns a shallow copy of b.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
