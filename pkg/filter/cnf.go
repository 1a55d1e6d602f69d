package filter

// DefaultMaxCNFClauses bounds the number of clauses ToCNF may produce.
const DefaultMaxCNFClauses = 10000

// ToCNF converts f into conjunctive normal form with the default clause bound.
func ToCNF(f Filter) Filter {
	return ToCNFWithLimit(f, DefaultMaxCNFClauses)
}

// ToCNFWithLimit converts f into an AND of disjunctions, or a single non-AND
// filter when it cannot be split. Opaque filters are atoms. If distributing OR
// over AND would produce more than maxClauses clauses, f is returned unchanged
// and treated by callers as one unsplittable clause.
func ToCNFWithLimit(f Filter, maxClauses int) Filter {
	if f == nil {
		return nil
	}
	clauses, ok := cnf(pushDownNot(f, false), maxClauses)
	if !ok {
		return f
	}

	out := make([]Filter, 0, len(clauses))
	seen := make(map[string]bool, len(clauses))
	for _, clause := range clauses {
		if len(clause) == 0 {
			return f
		}
		c := Or(dedupe(clause)...)
		key := c.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return And(out...)
}

// pushDownNot applies De Morgan's laws so that NOT only wraps leaves.
func pushDownNot(f Filter, negate bool) Filter {
	switch t := f.(type) {
	case *NotFilter:
		return pushDownNot(t.Filter, !negate)
	case *AndFilter:
		children := make([]Filter, len(t.Filters))
		for i, c := range t.Filters {
			children[i] = pushDownNot(c, negate)
		}
		if negate {
			return &OrFilter{Filters: children}
		}
		return &AndFilter{Filters: children}
	case *OrFilter:
		children := make([]Filter, len(t.Filters))
		for i, c := range t.Filters {
			children[i] = pushDownNot(c, negate)
		}
		if negate {
			return &AndFilter{Filters: children}
		}
		return &OrFilter{Filters: children}
	}
	if negate {
		return Not(f)
	}
	return f
}

// cnf returns the clause list of f, each clause a disjunction of literals.
func cnf(f Filter, maxClauses int) ([][]Filter, bool) {
	switch t := f.(type) {
	case *AndFilter:
		var out [][]Filter
		for _, c := range t.Filters {
			sub, ok := cnf(c, maxClauses)
			if !ok {
				return nil, false
			}
			out = append(out, sub...)
			if len(out) > maxClauses {
				return nil, false
			}
		}
		return out, true
	case *OrFilter:
		out := [][]Filter{{}}
		for _, c := range t.Filters {
			sub, ok := cnf(c, maxClauses)
			if !ok {
				return nil, false
			}
			if len(out)*len(sub) > maxClauses {
				return nil, false
			}
			next := make([][]Filter, 0, len(out)*len(sub))
			for _, left := range out {
				for _, right := range sub {
					clause := make([]Filter, 0, len(left)+len(right))
					clause = append(clause, left...)
					clause = append(clause, right...)
					next = append(next, clause)
				}
			}
			out = next
		}
		return out, true
	}
	return [][]Filter{{f}}, true
}

func dedupe(literals []Filter) []Filter {
	out := make([]Filter, 0, len(literals))
	seen := make(map[string]bool, len(literals))
	for _, l := range literals {
		key := l.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, l)
		}
	}
	return out
}
