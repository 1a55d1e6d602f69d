package join

import (
	"time"

	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// joinCursor emits the rows of one join stage. It is positioned either on a
// matched right row or, for LEFT joins, on a null-extended left row.
type joinCursor struct {
	left     segment.Cursor
	clause   *JoinableClause
	matcher  JoinMatcher
	keys     []interface{}
	nullRow  bool
	metrics  *monitor.JoinMetrics
	joinType string
}

// MakeJoinCursor wraps left with one join stage. INNER drops unmatched left
// rows; LEFT emits them once with the clause's columns null. A left row whose
// key evaluates to null never matches.
func MakeJoinCursor(left segment.Cursor, clause *JoinableClause, metrics *monitor.JoinMetrics) (segment.Cursor, error) {
	matcher, err := clause.Joinable.MakeJoinMatcher(clause.Condition.RightEquiColumns())
	if err != nil {
		return nil, err
	}
	c := &joinCursor{
		left:     left,
		clause:   clause,
		matcher:  matcher,
		keys:     make([]interface{}, len(clause.Condition.Equalities)),
		metrics:  metrics,
		joinType: clause.JoinType.String(),
	}
	c.positionLeft()
	return c, nil
}

func (c *joinCursor) Time() time.Time { return c.left.Time() }

func (c *joinCursor) Get(column string) interface{} {
	if c.clause.IncludesColumn(column) {
		if c.nullRow || !c.matcher.HasMatch() {
			return nil
		}
		return c.matcher.Get(c.clause.UnprefixColumn(column))
	}
	return c.left.Get(column)
}

func (c *joinCursor) IsDone() bool { return c.left.IsDone() }

func (c *joinCursor) Advance() {
	if c.left.IsDone() {
		return
	}
	if !c.nullRow {
		c.matcher.NextMatch()
		if c.skipResidue() {
			c.metrics.RecordJoinedRow(c.joinType)
			return
		}
	}
	c.left.Advance()
	c.positionLeft()
}

func (c *joinCursor) Reset() {
	c.left.Reset()
	c.positionLeft()
}

// positionLeft moves to the first left row, starting at the current one, that
// produces an output row.
func (c *joinCursor) positionLeft() {
	for ; !c.left.IsDone(); c.left.Advance() {
		c.nullRow = false
		if c.match() {
			c.metrics.RecordJoinedRow(c.joinType)
			return
		}
		if c.clause.JoinType == domain.JoinTypeLeft {
			c.nullRow = true
			c.metrics.RecordJoinedRow(c.joinType)
			return
		}
	}
}

func (c *joinCursor) match() bool {
	cond := c.clause.Condition
	switch {
	case cond.AlwaysFalse:
		c.matcher.Match(nil)
		return false
	case len(cond.Equalities) == 0:
		c.matcher.MatchAll()
	default:
		for i, eq := range cond.Equalities {
			c.keys[i] = eq.Left.Eval(c.left)
		}
		c.matcher.Match(c.keys)
	}
	return c.skipResidue()
}

// skipResidue advances the matcher past matches rejected by the non-equi
// conditions, reporting whether a match remains.
func (c *joinCursor) skipResidue() bool {
	residue := c.clause.Condition.NonEquiConditions
	for ; c.matcher.HasMatch(); c.matcher.NextMatch() {
		ok := true
		for _, e := range residue {
			if !utils.ToBool(e.Eval(c)) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// postJoinCursor applies post-join virtual columns and the retained join filter.
type postJoinCursor struct {
	segment.Cursor
	selector domain.ColumnSelector
	filter   filter.Filter
}

// WrapPostJoin layers virtual columns over cursor and skips rows rejected by f.
// With no virtual columns and no filter the cursor is returned unchanged.
func WrapPostJoin(cursor segment.Cursor, vcs segment.VirtualColumns, f filter.Filter) segment.Cursor {
	if len(vcs) == 0 && f == nil {
		return cursor
	}
	c := &postJoinCursor{Cursor: cursor, selector: segment.WithVirtualColumns(cursor, vcs), filter: f}
	c.seek()
	return c
}

func (c *postJoinCursor) Get(column string) interface{} { return c.selector.Get(column) }

func (c *postJoinCursor) Advance() {
	c.Cursor.Advance()
	c.seek()
}

func (c *postJoinCursor) Reset() {
	c.Cursor.Reset()
	c.seek()
}

func (c *postJoinCursor) seek() {
	if c.filter == nil {
		return
	}
	for !c.Cursor.IsDone() && !c.filter.Matches(c.selector) {
		c.Cursor.Advance()
	}
}
