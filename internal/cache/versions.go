// Package cache 提供基于 Redis 的活跃版本缓存。
//
// 缓存的是每个插件当前解析出的活跃 AgentVersion,作为链式执行读路径的
// 优化层。所有缓存错误都向下吞掉:未命中、连接失败、条目损坏一律回落到
// 存储查询,版本切换时由 lifecycle 管理器负责失效。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evoflow/evoflow/types"
)

// =============================================================================
// 💾 活跃版本缓存
// =============================================================================

// Config 缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 活跃版本条目过期时间
	// TTL 必须保持较短：版本切换存在两步写入窗口，缓存只是
	// 读路径优化，不承担一致性职责
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:     "localhost:6379",
		DB:       0,
		TTL:      30 * time.Second,
		PoolSize: 10,
	}
}

// VersionCache 缓存每个插件当前解析出的活跃 AgentVersion。
// 读取失败或未命中一律回落到存储查询，缓存错误从不向上传播。
type VersionCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewVersionCache 创建活跃版本缓存
func NewVersionCache(cfg Config, logger *zap.Logger) (*VersionCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	c := &VersionCache{
		redis:  client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "version_cache")),
	}

	logger.Info("version cache initialized",
		zap.String("addr", cfg.Addr),
		zap.Duration("ttl", ttl),
	)

	return c, nil
}

func key(pluginID string) string {
	return "evoflow:active_version:" + pluginID
}

// GetActive 获取插件的活跃版本；未命中或出错返回 (nil, false)
func (c *VersionCache) GetActive(ctx context.Context, pluginID string) (*types.AgentVersion, bool) {
	raw, err := c.redis.Get(ctx, key(pluginID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache get failed", zap.String("plugin_id", pluginID), zap.Error(err))
		}
		return nil, false
	}

	var v types.AgentVersion
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.logger.Warn("cache entry corrupt, dropping",
			zap.String("plugin_id", pluginID), zap.Error(err))
		_ = c.redis.Del(ctx, key(pluginID)).Err()
		return nil, false
	}
	return &v, true
}

// SetActive 写入插件的活跃版本，失败仅记录日志
func (c *VersionCache) SetActive(ctx context.Context, v *types.AgentVersion) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key(v.PluginID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", zap.String("plugin_id", v.PluginID), zap.Error(err))
	}
}

// Invalidate 在版本切换后清除插件的缓存条目
func (c *VersionCache) Invalidate(ctx context.Context, pluginID string) {
	if err := c.redis.Del(ctx, key(pluginID)).Err(); err != nil {
		c.logger.Debug("cache invalidate failed", zap.String("plugin_id", pluginID), zap.Error(err))
	}
}

// Close 关闭 Redis 连接
func (c *VersionCache) Close() error {
	return c.redis.Close()
}
