// =============================================================================
// 📦 evoflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.Load("config.yaml")
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/evoflow/evoflow/evolution"
	"github.com/evoflow/evoflow/internal/cache"
	"github.com/evoflow/evoflow/store"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 evoflow 的完整配置结构
type Config struct {
	// Database 数据库配置
	Database store.Config `yaml:"database"`

	// Cache 活跃版本缓存配置
	Cache CacheConfig `yaml:"cache"`

	// Sweep 进化扫描配置
	Sweep evolution.SweepConfig `yaml:"sweep"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// MetricsNamespace Prometheus 指标命名空间
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// CacheConfig 缓存配置（含开关）
type CacheConfig struct {
	// Enabled 是否启用 Redis 缓存；禁用时直接读存储
	Enabled bool `yaml:"enabled"`

	cache.Config `yaml:",inline"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别: debug / info / warn / error
	Level string `yaml:"level"`
	// Development 开发模式（彩色控制台输出）
	Development bool `yaml:"development"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Database:         store.DefaultConfig(),
		Cache:            CacheConfig{Enabled: false, Config: cache.DefaultConfig()},
		Sweep:            evolution.DefaultSweepConfig(),
		Log:              LogConfig{Level: "info"},
		MetricsNamespace: "evoflow",
	}
}

// =============================================================================
// 📥 加载
// =============================================================================

// Load 加载配置: 默认值 → YAML 文件（可选） → 环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv 应用环境变量覆盖（EVOFLOW_ 前缀）
func applyEnv(cfg *Config) {
	if v := os.Getenv("EVOFLOW_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("EVOFLOW_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("EVOFLOW_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("EVOFLOW_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("EVOFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// =============================================================================
// 📝 日志构建
// =============================================================================

// NewLogger 根据日志配置构建 zap.Logger
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
