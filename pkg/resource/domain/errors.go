package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// 连接层领域错误

// ErrInvalidPrefix 非法前缀错误
type ErrInvalidPrefix struct {
	Prefix string
	Reason string
}

func (e *ErrInvalidPrefix) Error() string {
	return fmt.Sprintf("invalid join prefix [%s]: %s", e.Prefix, e.Reason)
}

// ErrDuplicatePrefix 重复前缀错误
type ErrDuplicatePrefix struct {
	Prefix string
}

func (e *ErrDuplicatePrefix) Error() string {
	return fmt.Sprintf("Detected duplicate prefix in join clauses: [%s]", e.Prefix)
}

// ErrConflictingPrefix 前缀互相遮蔽错误
type ErrConflictingPrefix struct {
	Prefix  string
	Shadows string
}

func (e *ErrConflictingPrefix) Error() string {
	return fmt.Sprintf("Detected conflicting prefixes in join clauses: [%s, %s]", e.Prefix, e.Shadows)
}

// ErrUnsupportedOperation 不支持的操作错误
type ErrUnsupportedOperation struct {
	Target    string
	Operation string
}

func (e *ErrUnsupportedOperation) Error() string {
	return fmt.Sprintf("Cannot retrieve %s from %s", e.Operation, e.Target)
}

// ErrNotJoinable 数据源无法构造 Joinable
type ErrNotJoinable struct {
	DataSource string
}

func (e *ErrNotJoinable) Error() string {
	return fmt.Sprintf("dataSource is not joinable: %s", e.DataSource)
}

// ErrInvalidConfig 配置无效错误
type ErrInvalidConfig struct {
	ConfigKey string
	Message   string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config for %s: %s", e.ConfigKey, e.Message)
}

// ErrColumnNotFound 列不存在错误
type ErrColumnNotFound struct {
	ColumnName string
	TableName  string
}

func (e *ErrColumnNotFound) Error() string {
	return fmt.Sprintf("column %s not found in table %s", e.ColumnName, e.TableName)
}

// 辅助函数

// NewErrInvalidPrefix 创建非法前缀错误
func NewErrInvalidPrefix(prefix, reason string) *ErrInvalidPrefix {
	return &ErrInvalidPrefix{Prefix: prefix, Reason: reason}
}

// NewErrDuplicatePrefix 创建重复前缀错误
func NewErrDuplicatePrefix(prefix string) *ErrDuplicatePrefix {
	return &ErrDuplicatePrefix{Prefix: prefix}
}

// NewErrConflictingPrefix 创建前缀冲突错误
func NewErrConflictingPrefix(prefix, shadows string) *ErrConflictingPrefix {
	return &ErrConflictingPrefix{Prefix: prefix, Shadows: shadows}
}

// NewErrUnsupportedOperation 创建不支持操作错误
func NewErrUnsupportedOperation(target, operation string) *ErrUnsupportedOperation {
	return &ErrUnsupportedOperation{Target: target, Operation: operation}
}

// NewErrNotJoinable 创建不可连接错误
func NewErrNotJoinable(dataSource string) *ErrNotJoinable {
	return &ErrNotJoinable{DataSource: dataSource}
}

// NewErrInvalidConfig 创建配置无效错误
func NewErrInvalidConfig(key, message string) *ErrInvalidConfig {
	return &ErrInvalidConfig{ConfigKey: key, Message: message}
}

// NewErrColumnNotFound 创建列不存在错误
func NewErrColumnNotFound(columnName, tableName string) *ErrColumnNotFound {
	return &ErrColumnNotFound{ColumnName: columnName, TableName: tableName}
}

// IsConfigurationError 判断是否为构造期的配置错误（前缀或数据源问题），这类错误不可重试
func IsConfigurationError(err error) bool {
	var (
		invalid     *ErrInvalidPrefix
		duplicate   *ErrDuplicatePrefix
		conflicting *ErrConflictingPrefix
		notJoinable *ErrNotJoinable
		badConfig   *ErrInvalidConfig
	)
	return errors.As(err, &invalid) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &conflicting) ||
		errors.As(err, &notJoinable) ||
		errors.As(err, &badConfig)
}

// IsUnsupportedOperation 判断是否为不支持的操作
func IsUnsupportedOperation(err error) bool {
	var target *ErrUnsupportedOperation
	return errors.As(err, &target)
}
