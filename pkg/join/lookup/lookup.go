// Package lookup provides a two-column key/value Joinable stored in Badger.
package lookup

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// Lookup columns.
const (
	KeyColumn   = "k"
	ValueColumn = "v"
)

// Joinable is a k -> v lookup held in an in-memory Badger database. A read
// error other than a missing key is logged and kept; the probe that hit it
// reports no match.
type Joinable struct {
	db     *badger.DB
	size   int
	logger log.Logger

	mu      sync.Mutex
	readErr error
}

var _ join.Joinable = (*Joinable)(nil)

// Option 配置 Joinable
type Option func(*Joinable)

// WithLogger 设置读取错误的日志
func WithLogger(logger log.Logger) Option {
	return func(j *Joinable) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// Open 打开内存 Badger 并写入映射
func Open(entries map[string]string, opts ...Option) (*Joinable, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger lookup")
	}

	wb := db.NewWriteBatch()
	for k, v := range entries {
		if err := wb.Set([]byte(k), []byte(v)); err != nil {
			wb.Cancel()
			db.Close()
			return nil, errors.Wrapf(err, "failed to write lookup key %q", k)
		}
	}
	if err := wb.Flush(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to flush lookup")
	}
	j := &Joinable{db: db, size: len(entries), logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Err returns the first read error hit by a matcher or a correlated-value
// search, or nil.
func (j *Joinable) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readErr
}

func (j *Joinable) recordErr(op string, err error) {
	level.Error(j.logger).Log("msg", "lookup read failed", "op", op, "err", err)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.readErr == nil {
		j.readErr = errors.Wrapf(err, "lookup %s", op)
	}
}

// Close 关闭底层数据库
func (j *Joinable) Close() error {
	return j.db.Close()
}

func (j *Joinable) AvailableColumns() []string { return []string{KeyColumn, ValueColumn} }

func (j *Joinable) Cardinality(column string) int {
	if column == KeyColumn {
		return j.size
	}
	return domain.CardinalityUnknown
}

func (j *Joinable) ColumnCapabilities(column string) *domain.ColumnCapabilities {
	switch column {
	case KeyColumn:
		return &domain.ColumnCapabilities{Type: domain.ValueTypeString, HasBitmapIndexes: true}
	case ValueColumn:
		return &domain.ColumnCapabilities{Type: domain.ValueTypeString}
	}
	return nil
}

// MakeJoinMatcher supports joins on the key column only.
func (j *Joinable) MakeJoinMatcher(keyColumns []string) (join.JoinMatcher, error) {
	if len(keyColumns) > 1 || (len(keyColumns) == 1 && keyColumns[0] != KeyColumn) {
		return nil, errors.Newf("lookup joins only support the %q column, got %v", KeyColumn, keyColumns)
	}
	return &matcher{j: j}, nil
}

// CorrelatedColumnValues uses a point read when searching by key and a full
// iteration when searching by value.
func (j *Joinable) CorrelatedColumnValues(searchColumn, searchValue, retrievalColumn string, maxSize int64, allowNonKeyColumnSearch bool) ([]string, bool) {
	if j.ColumnCapabilities(searchColumn) == nil || j.ColumnCapabilities(retrievalColumn) == nil {
		return nil, false
	}
	if searchColumn == retrievalColumn {
		if maxSize < 1 {
			return nil, false
		}
		return []string{searchValue}, true
	}

	if searchColumn == KeyColumn {
		v, found, err := j.get(searchValue)
		if err != nil {
			j.recordErr("correlated values", err)
			return nil, false
		}
		if !found {
			return []string{}, true
		}
		if maxSize < 1 {
			return nil, false
		}
		return []string{v}, true
	}

	if !allowNonKeyColumnSearch {
		return nil, false
	}
	var keys []string
	oversized := false
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(val) != searchValue {
				continue
			}
			if int64(len(keys)) >= maxSize {
				oversized = true
				return nil
			}
			keys = append(keys, string(item.KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		j.recordErr("correlated values", err)
		return nil, false
	}
	if oversized {
		return nil, false
	}
	if keys == nil {
		keys = []string{}
	}
	sort.Strings(keys)
	return keys, true
}

func (j *Joinable) get(key string) (string, bool, error) {
	var value string
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		value = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

type entry struct {
	key, value string
}

// matcher buffers the current matches; a key probe yields at most one.
type matcher struct {
	j       *Joinable
	matches []entry
	pos     int
}

func (m *matcher) Match(keys []interface{}) {
	m.matches, m.pos = m.matches[:0], 0
	if len(keys) != 1 || keys[0] == nil {
		return
	}
	key := utils.ToString(keys[0])
	value, found, err := m.j.get(key)
	if err != nil {
		m.j.recordErr("match", err)
		return
	}
	if found {
		m.matches = append(m.matches, entry{key: key, value: value})
	}
}

func (m *matcher) MatchAll() {
	m.matches, m.pos = m.matches[:0], 0
	err := m.j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			m.matches = append(m.matches, entry{key: string(item.KeyCopy(nil)), value: string(val)})
		}
		return nil
	})
	if err != nil {
		m.matches = m.matches[:0]
		m.j.recordErr("match all", err)
	}
}

func (m *matcher) HasMatch() bool { return m.pos < len(m.matches) }

func (m *matcher) NextMatch() { m.pos++ }

func (m *matcher) Get(column string) interface{} {
	if !m.HasMatch() {
		return nil
	}
	switch column {
	case KeyColumn:
		return m.matches[m.pos].key
	case ValueColumn:
		return m.matches[m.pos].value
	}
	return nil
}
