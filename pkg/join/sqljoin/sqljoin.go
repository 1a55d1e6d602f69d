// Package sqljoin materializes a SQL result set into an indexed-table Joinable.
package sqljoin

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jon-wei/druid-sub000/pkg/join/table"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
)

// Load 执行查询并把结果物化为按 keyColumns 建索引的内存表
func Load(ctx context.Context, db *sql.DB, query string, keyColumns []string) (*table.IndexedTable, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query joinable source")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read result columns")
	}

	result, err := convertRows(rows, columns)
	if err != nil {
		return nil, err
	}
	return table.New(result, columns, keyColumns)
}

// convertRows 转换查询结果，[]byte 统一转为 string
func convertRows(rows *sql.Rows, columns []string) ([]domain.Row, error) {
	result := make([]domain.Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		scanArgs := make([]interface{}, len(columns))
		for i := range columns {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		row := make(domain.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate rows")
	}
	return result, nil
}
