package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/spf13/cast"
)

// Config 应用程序配置
type Config struct {
	Join    JoinConfig    `json:"join"`
	Log     LogConfig     `json:"log"`
	Monitor MonitorConfig `json:"monitor"`
}

// JoinConfig 连接过滤下推配置
type JoinConfig struct {
	EnableFilterPushDown            bool  `json:"enable_filter_push_down"`
	EnableFilterRewrite             bool  `json:"enable_filter_rewrite"`
	EnableRewriteValueColumnFilters bool  `json:"enable_rewrite_value_column_filters"`
	FilterRewriteMaxSize            int64 `json:"filter_rewrite_max_size"`
	MaxCNFClauses                   int   `json:"max_cnf_clauses"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // logfmt or json
}

// MonitorConfig 监控配置
type MonitorConfig struct {
	Enabled bool `json:"enabled"`
}

// Query context keys recognized by JoinConfig.WithContext.
const (
	CtxEnableJoinFilterPushDown                  = "enableJoinFilterPushDown"
	CtxEnableJoinFilterRewrite                   = "enableJoinFilterRewrite"
	CtxEnableJoinFilterRewriteValueColumnFilters = "enableJoinFilterRewriteValueColumnFilters"
	CtxJoinFilterRewriteMaxSize                  = "joinFilterRewriteMaxSize"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Join: DefaultJoinConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "logfmt",
		},
		Monitor: MonitorConfig{
			Enabled: true,
		},
	}
}

// DefaultJoinConfig 返回默认连接配置
func DefaultJoinConfig() JoinConfig {
	return JoinConfig{
		EnableFilterPushDown:            true,
		EnableFilterRewrite:             true,
		EnableRewriteValueColumnFilters: false,
		FilterRewriteMaxSize:            10000,
		MaxCNFClauses:                   10000,
	}
}

// WithContext applies per-query overrides. Values may be booleans, numbers or
// their string forms.
func (c JoinConfig) WithContext(ctx map[string]interface{}) (JoinConfig, error) {
	out := c
	bools := []struct {
		key    string
		target *bool
	}{
		{CtxEnableJoinFilterPushDown, &out.EnableFilterPushDown},
		{CtxEnableJoinFilterRewrite, &out.EnableFilterRewrite},
		{CtxEnableJoinFilterRewriteValueColumnFilters, &out.EnableRewriteValueColumnFilters},
	}
	for _, b := range bools {
		v, ok := ctx[b.key]
		if !ok {
			continue
		}
		parsed, err := cast.ToBoolE(v)
		if err != nil {
			return c, domain.NewErrInvalidConfig(b.key, err.Error())
		}
		*b.target = parsed
	}

	if v, ok := ctx[CtxJoinFilterRewriteMaxSize]; ok {
		size, err := cast.ToInt64E(v)
		if err != nil {
			return c, domain.NewErrInvalidConfig(CtxJoinFilterRewriteMaxSize, err.Error())
		}
		out.FilterRewriteMaxSize = size
	}

	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

// Validate 验证连接配置
func (c JoinConfig) Validate() error {
	if c.FilterRewriteMaxSize < 1 {
		return domain.NewErrInvalidConfig("filter_rewrite_max_size", "must be greater than 0")
	}
	if c.MaxCNFClauses < 1 {
		return domain.NewErrInvalidConfig("max_cnf_clauses", "must be greater than 0")
	}
	return nil
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 如果没有指定配置文件，使用默认配置
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "解析配置文件失败")
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault 尝试从常见位置加载配置文件
func LoadConfigOrDefault() *Config {
	possiblePaths := []string{
		"config.json",
		"./config/config.json",
		"/etc/joinexec/config.json",
	}

	if envPath := os.Getenv("JOINEXEC_CONFIG"); envPath != "" {
		if config, err := LoadConfig(envPath); err == nil {
			return config
		}
	}

	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if config, err := LoadConfig(absPath); err == nil {
				return config
			}
		}
	}

	return DefaultConfig()
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if err := config.Join.Validate(); err != nil {
		return err
	}

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return domain.NewErrInvalidConfig("log.level", "unknown level "+config.Log.Level)
	}

	switch strings.ToLower(config.Log.Format) {
	case "logfmt", "json":
	default:
		return domain.NewErrInvalidConfig("log.format", "unknown format "+config.Log.Format)
	}

	return nil
}
