package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/join/lookup"
	"github.com/jon-wei/druid-sub000/pkg/join/sqljoin"
	"github.com/jon-wei/druid-sub000/pkg/join/table"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/spf13/cast"
)

// Scenario 一次连接执行的输入
type Scenario struct {
	Base           BaseSpec                     `json:"base"`
	Segments       []BaseSpec                   `json:"segments"`
	Tables         map[string]TableSpec         `json:"tables"`
	Lookups        map[string]map[string]string `json:"lookups"`
	Clauses        []join.ClauseSpec            `json:"clauses"`
	Filter         string                       `json:"filter"`
	VirtualColumns []VirtualColumnSpec          `json:"virtualColumns"`
	Columns        []string                     `json:"columns"`
	Granularity    string                       `json:"granularity"`
	Descending     bool                         `json:"descending"`
	Context        map[string]interface{}       `json:"context"`
}

// BaseSpec 基表段
type BaseSpec struct {
	Rows    []domain.Row `json:"rows"`
	Metrics []string     `json:"metrics"`
}

// TableSpec 可连接的表：内联行，或通过 driver/dsn/query 从数据库加载
type TableSpec struct {
	Rows       []domain.Row `json:"rows"`
	KeyColumns []string     `json:"keyColumns"`
	Driver     string       `json:"driver"`
	DSN        string       `json:"dsn"`
	Query      string       `json:"query"`
}

// VirtualColumnSpec 表达式虚拟列
type VirtualColumnSpec struct {
	Name       string           `json:"name"`
	Expression string           `json:"expression"`
	OutputType domain.ValueType `json:"outputType"`
}

// LoadScenario 从文件加载场景
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "读取场景文件失败")
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "解析场景文件失败")
	}
	if len(sc.Columns) == 0 {
		return nil, errors.New("scenario lists no output columns")
	}
	normalizeRows(sc.Base.Rows)
	for _, seg := range sc.Segments {
		normalizeRows(seg.Rows)
	}
	for _, t := range sc.Tables {
		normalizeRows(t.Rows)
	}
	return &sc, nil
}

// normalizeRows turns integral JSON numbers into int64 so they join with
// integer keys loaded from SQL sources.
func normalizeRows(rows []domain.Row) {
	for _, row := range rows {
		for k, v := range row {
			f, ok := v.(float64)
			if !ok || f != math.Trunc(f) {
				continue
			}
			if n, err := cast.ToInt64E(f); err == nil {
				row[k] = n
			}
		}
	}
}

// joinResources holds what joinables opened for the run.
type joinResources struct {
	lookups []*lookup.Joinable
}

// Close releases every lookup.
func (r *joinResources) Close() {
	for _, l := range r.lookups {
		_ = l.Close()
	}
}

// Err returns the first lookup read error seen during the run.
func (r *joinResources) Err() error {
	for _, l := range r.lookups {
		if err := l.Err(); err != nil {
			return err
		}
	}
	return nil
}

// joinables builds every table and lookup of the scenario. SQL tables are
// materialized and their database handles closed before it returns.
func (sc *Scenario) joinables(ctx context.Context, logger log.Logger) (join.MapJoinableFactory, *joinResources, error) {
	factory := make(join.MapJoinableFactory)
	res := &joinResources{}

	for name, spec := range sc.Tables {
		var (
			tbl *table.IndexedTable
			err error
		)
		if spec.Driver != "" {
			tbl, err = loadSQLTable(ctx, spec)
		} else {
			tbl, err = table.New(spec.Rows, nil, spec.KeyColumns)
		}
		if err != nil {
			res.Close()
			return nil, nil, errors.Wrapf(err, "table %s", name)
		}
		factory[name] = tbl
	}

	for name, entries := range sc.Lookups {
		l, err := lookup.Open(entries, lookup.WithLogger(log.With(logger, "lookup", name)))
		if err != nil {
			res.Close()
			return nil, nil, errors.Wrapf(err, "lookup %s", name)
		}
		res.lookups = append(res.lookups, l)
		factory[name] = l
	}
	return factory, res, nil
}

func loadSQLTable(ctx context.Context, spec TableSpec) (*table.IndexedTable, error) {
	db, err := sql.Open(spec.Driver, spec.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return sqljoin.Load(ctx, db, spec.Query, spec.KeyColumns)
}

// bases returns the base segments in order: base first, then segments.
func (sc *Scenario) bases() ([]segment.StorageAdapter, error) {
	specs := append([]BaseSpec{sc.Base}, sc.Segments...)
	out := make([]segment.StorageAdapter, 0, len(specs))
	for i, spec := range specs {
		if i > 0 && len(spec.Rows) == 0 {
			continue
		}
		a, err := segment.NewMemoryAdapter(spec.Rows, nil, spec.Metrics)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d", i)
		}
		out = append(out, a)
	}
	return out, nil
}

func (sc *Scenario) virtualColumns() (segment.VirtualColumns, error) {
	vcs := make(segment.VirtualColumns, 0, len(sc.VirtualColumns))
	for _, spec := range sc.VirtualColumns {
		vc, err := segment.ParseExpressionVirtualColumn(spec.Name, spec.Expression, spec.OutputType)
		if err != nil {
			return nil, errors.Wrapf(err, "virtual column %s", spec.Name)
		}
		vcs = append(vcs, vc)
	}
	return vcs, nil
}
