package evidence

// Index is the immutable set of accepted packs keyed by rule id. It is safe
// for concurrent readers.
type Index struct {
	packs        map[string]*Pack
	ids          []string
	problems     []Problem
	degradations []Degradation
}

// Get returns the pack with the given rule id. A nil index holds nothing.
func (x *Index) Get(ruleID string) (*Pack, bool) {
	if x == nil {
		return nil, false
	}
	p, ok := x.packs[ruleID]
	return p, ok
}

// Len returns the number of packs.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.ids)
}

// RuleIDs returns every rule id in byte order.
func (x *Index) RuleIDs() []string {
	if x == nil {
		return nil
	}
	return append([]string(nil), x.ids...)
}

// ByKind returns the packs of a kind ordered by rule id.
func (x *Index) ByKind(kind Kind) []*Pack {
	if x == nil {
		return nil
	}
	var out []*Pack
	for _, id := range x.ids {
		if p := x.packs[id]; p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Problems returns packs left out of the index under PolicySkip.
func (x *Index) Problems() []Problem {
	if x == nil {
		return nil
	}
	return x.problems
}

// Degradations returns the data-quality notes applied during load.
func (x *Index) Degradations() []Degradation {
	if x == nil {
		return nil
	}
	return x.degradations
}
