package domain

import "time"

// TimeColumn 保留的时间列名
const TimeColumn = "__time"

// CardinalityUnknown 基数未知
const CardinalityUnknown = -1

// ColumnSelector 按列名读取当前行的值，缺失的列返回 nil
type ColumnSelector interface {
	Get(column string) interface{}
}

// Row 行数据
type Row map[string]interface{}

// Get 返回列值，实现 ColumnSelector
func (r Row) Get(column string) interface{} {
	return r[column]
}

// Clone 浅拷贝一行
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NullRow 所有列都为 NULL 的选择器
var NullRow ColumnSelector = nullRow{}

type nullRow struct{}

func (nullRow) Get(string) interface{} { return nil }

// ValueType 列的值类型
type ValueType string

const (
	// ValueTypeString 字符串
	ValueTypeString ValueType = "STRING"
	// ValueTypeLong 整数
	ValueTypeLong ValueType = "LONG"
	// ValueTypeDouble 浮点数
	ValueTypeDouble ValueType = "DOUBLE"
	// ValueTypeComplex 复杂类型
	ValueTypeComplex ValueType = "COMPLEX"
)

// ColumnCapabilities 列能力描述，用于规划和类型检查
type ColumnCapabilities struct {
	Type              ValueType `json:"type"`
	DictionaryEncoded bool      `json:"dictionary_encoded"`
	HasBitmapIndexes  bool      `json:"has_bitmap_indexes"`
	HasMultipleValues bool      `json:"has_multiple_values"`
}

// InferValueType 根据 Go 值推断列类型
func InferValueType(v interface{}) ValueType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, time.Time:
		return ValueTypeLong
	case float32, float64:
		return ValueTypeDouble
	case string, nil:
		return ValueTypeString
	default:
		return ValueTypeComplex
	}
}

// JoinType 连接类型
type JoinType string

const (
	// JoinTypeInner 内连接，未匹配的基表行被丢弃
	JoinTypeInner JoinType = "INNER"
	// JoinTypeLeft 左连接，未匹配的基表行保留，右表列为 NULL
	JoinTypeLeft JoinType = "LEFT"
)

// Valid 是否为支持的连接类型
func (t JoinType) Valid() bool {
	return t == JoinTypeInner || t == JoinTypeLeft
}

// String 返回连接类型名
func (t JoinType) String() string {
	return string(t)
}
