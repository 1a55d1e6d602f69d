package join

import (
	"github.com/cockroachdb/errors"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
)

// JoinableClause 描述一个右表挂载：前缀、连接类型、连接条件和 Joinable
type JoinableClause struct {
	Prefix    string
	JoinType  domain.JoinType
	Condition *Condition
	Joinable  Joinable
}

// NewJoinableClause 创建并校验连接子句
func NewJoinableClause(prefix string, joinType domain.JoinType, condition *Condition, joinable Joinable) (*JoinableClause, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if !joinType.Valid() {
		return nil, errors.Newf("unsupported join type %q", joinType)
	}
	if condition == nil {
		return nil, errors.New("join clause requires a condition")
	}
	if condition.RightPrefix != prefix {
		return nil, errors.Newf("condition prefix [%s] does not match clause prefix [%s]", condition.RightPrefix, prefix)
	}
	if joinable == nil {
		return nil, errors.Newf("join clause [%s] has no joinable", prefix)
	}
	return &JoinableClause{Prefix: prefix, JoinType: joinType, Condition: condition, Joinable: joinable}, nil
}

// IncludesColumn 判断列名是否属于该子句
func (c *JoinableClause) IncludesColumn(column string) bool {
	return IsPrefixedBy(column, c.Prefix)
}

// UnprefixColumn 去掉子句前缀
func (c *JoinableClause) UnprefixColumn(column string) string {
	if !c.IncludesColumn(column) {
		return column
	}
	return column[len(c.Prefix):]
}

// AvailableColumns 返回带前缀的右表列
func (c *JoinableClause) AvailableColumns() []string {
	cols := c.Joinable.AvailableColumns()
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = c.Prefix + col
	}
	return out
}

func (c *JoinableClause) String() string {
	return c.JoinType.String() + " JOIN [" + c.Prefix + "] ON " + c.Condition.String()
}

// ValidateClauses 校验每个前缀合法，且互不重复、互不遮蔽
func ValidateClauses(clauses []*JoinableClause) error {
	prefixes := make([]string, len(clauses))
	for i, c := range clauses {
		if err := ValidatePrefix(c.Prefix); err != nil {
			return err
		}
		prefixes[i] = c.Prefix
	}
	return CheckPrefixesForDuplicatesAndShadowing(prefixes)
}

// ClauseSpec is the planner-level description of one join clause.
type ClauseSpec struct {
	Prefix     string          `json:"prefix"`
	DataSource string          `json:"dataSource"`
	JoinType   domain.JoinType `json:"joinType"`
	Condition  string          `json:"condition"`
}

// CreateClauses builds joinable clauses from specs. A data source the factory
// cannot turn into a Joinable fails with ErrNotJoinable.
func CreateClauses(specs []ClauseSpec, factory JoinableFactory) ([]*JoinableClause, error) {
	clauses := make([]*JoinableClause, 0, len(specs))
	for _, spec := range specs {
		if err := ValidatePrefix(spec.Prefix); err != nil {
			return nil, err
		}
		cond, err := ParseCondition(spec.Condition, spec.Prefix)
		if err != nil {
			return nil, errors.Wrapf(err, "clause [%s]", spec.Prefix)
		}
		joinable, ok := factory.Build(spec.DataSource, cond)
		if !ok {
			return nil, domain.NewErrNotJoinable(spec.DataSource)
		}
		clause, err := NewJoinableClause(spec.Prefix, spec.JoinType, cond, joinable)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	if err := ValidateClauses(clauses); err != nil {
		return nil, err
	}
	return clauses, nil
}
