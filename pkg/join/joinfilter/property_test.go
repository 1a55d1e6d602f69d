package joinfilter

import (
	"math/rand"
	"testing"

	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/join/table"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/jon-wei/druid-sub000/pkg/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	keyValues  = []interface{}{"1", "2", "3", "4", nil}
	yValues    = []interface{}{"A", "B", "C", nil}
	pageValues = []interface{}{"p0", "p1", "p2"}
	filterCols = []string{"x", "page", "j.y", "j.k", "m.z", "m.k"}
	filterVals = map[string][]interface{}{
		"x": keyValues, "page": pageValues,
		"j.y": yValues, "j.k": keyValues,
		"m.z": yValues, "m.k": keyValues,
	}
	joinTypes = []domain.JoinType{domain.JoinTypeInner, domain.JoinTypeLeft}
)

func pick(r *rand.Rand, values []interface{}) interface{} {
	return values[r.Intn(len(values))]
}

func randomJoinFilter(r *rand.Rand, depth int) filter.Filter {
	if depth == 0 || r.Intn(3) == 0 {
		col := filterCols[r.Intn(len(filterCols))]
		return filter.Selector(col, pick(r, filterVals[col]))
	}
	switch r.Intn(3) {
	case 0:
		return filter.Not(randomJoinFilter(r, depth-1))
	case 1:
		return &filter.AndFilter{Filters: []filter.Filter{randomJoinFilter(r, depth-1), randomJoinFilter(r, depth-1)}}
	default:
		return &filter.OrFilter{Filters: []filter.Filter{randomJoinFilter(r, depth-1), randomJoinFilter(r, depth-1)}}
	}
}

type joinedRow struct {
	base     domain.Row
	combined domain.Row
}

func randomTable(r *rand.Rand, attr string) ([]domain.Row, *table.IndexedTable) {
	rows := make([]domain.Row, 6)
	for i := range rows {
		rows[i] = domain.Row{"k": pick(r, keyValues), attr: pick(r, yValues)}
	}
	keys := []string{"k"}
	if r.Intn(2) == 0 {
		keys = append(keys, attr)
	}
	tbl, err := table.New(rows, []string{"k", attr}, keys)
	if err != nil {
		panic(err)
	}
	return rows, tbl
}

func mustClause(prefix, condition string, joinType domain.JoinType, j join.Joinable) *join.JoinableClause {
	cond, err := join.ParseCondition(condition, prefix)
	if err != nil {
		panic(err)
	}
	clause, err := join.NewJoinableClause(prefix, joinType, cond, j)
	if err != nil {
		panic(err)
	}
	return clause
}

// joinStage joins rows against right on leftKey == right.k by nested loops.
// LEFT keeps unmatched rows with the right-hand columns null.
func joinStage(rows []joinedRow, right []domain.Row, prefix, leftKey string, joinType domain.JoinType, columns ...string) []joinedRow {
	var out []joinedRow
	for _, row := range rows {
		matched := false
		key := row.combined[leftKey]
		for _, rr := range right {
			if key == nil || rr["k"] == nil || !utils.ValuesEqual(key, rr["k"]) {
				continue
			}
			matched = true
			combined := row.combined.Clone()
			for _, col := range columns {
				combined[prefix+col] = rr[col]
			}
			out = append(out, joinedRow{base: row.base, combined: combined})
		}
		if !matched && joinType == domain.JoinTypeLeft {
			combined := row.combined.Clone()
			for _, col := range columns {
				combined[prefix+col] = nil
			}
			out = append(out, joinedRow{base: row.base, combined: combined})
		}
	}
	return out
}

// randomInstance builds random base rows joined to a random right table j.,
// optionally followed by a second table m. joined through j.k, each with a
// random join type. It returns every joined row by nested loops.
func randomInstance(r *rand.Rand) ([]*join.JoinableClause, []joinedRow) {
	jRows, jTable := randomTable(r, "y")
	jType := joinTypes[r.Intn(len(joinTypes))]
	clauses := []*join.JoinableClause{mustClause("j.", "x == j.k", jType, jTable)}

	var joined []joinedRow
	for i := 0; i < 8; i++ {
		base := domain.Row{"x": pick(r, keyValues), "page": pick(r, pageValues)}
		joined = append(joined, joinedRow{base: base, combined: base.Clone()})
	}
	joined = joinStage(joined, jRows, "j.", "x", jType, "k", "y")

	if r.Intn(2) == 0 {
		mRows, mTable := randomTable(r, "z")
		mType := joinTypes[r.Intn(len(joinTypes))]
		clauses = append(clauses, mustClause("m.", "j.k == m.k", mType, mTable))
		joined = joinStage(joined, mRows, "m.", "j.k", mType, "k", "z")
	} else {
		for _, row := range joined {
			row.combined["m.k"], row.combined["m.z"] = nil, nil
		}
	}
	return clauses, joined
}

func TestSplit_SoundnessProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("base filter keeps every base row of a true match", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			clauses, joined := randomInstance(r)
			f := randomJoinFilter(r, 3)

			cfg := DefaultConfig()
			cfg.EnableRewriteValueColumnFilters = r.Intn(2) == 0
			cfg.FilterRewriteMaxSize = int64(1 + r.Intn(3))
			split := BuildPreAnalysis(clauses, nil, f, cfg).Split()

			for _, row := range joined {
				if !f.Matches(row.combined) {
					continue
				}
				if split.BaseFilter != nil && !split.BaseFilter.Matches(segment.WithVirtualColumns(row.base, split.PushDownVirtualColumns)) {
					return false
				}
				if split.JoinFilter != nil && !split.JoinFilter.Matches(row.combined) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("base and join filters together select exactly the matches", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			clauses, joined := randomInstance(r)
			f := randomJoinFilter(r, 3)
			split := BuildPreAnalysis(clauses, nil, f, DefaultConfig()).Split()

			for _, row := range joined {
				got := (split.BaseFilter == nil || split.BaseFilter.Matches(row.base)) &&
					(split.JoinFilter == nil || split.JoinFilter.Matches(row.combined))
				if got != f.Matches(row.combined) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
