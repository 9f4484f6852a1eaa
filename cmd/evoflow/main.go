// =============================================================================
// evoflow 主入口
// =============================================================================
// 插件执行与进化流水线的管理命令行
//
// 使用方法:
//
//	evoflow sweep                        # 对所有租户执行一次进化扫描
//	evoflow sweep --tenant <id>          # 仅扫描指定租户
//	evoflow migrate                      # 初始化 / 更新数据库 schema
//	evoflow version                      # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/evoflow/evoflow"
	"github.com/evoflow/evoflow/config"
	"github.com/evoflow/evoflow/store"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sweep":
		runSweep(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🔄 sweep 子命令
// =============================================================================

func runSweep(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	tenantID := fs.String("tenant", "", "restrict the sweep to one tenant")
	timeout := fs.Duration("timeout", 10*time.Minute, "overall sweep deadline")
	_ = fs.Parse(args)

	cfg, logger := mustLoad(*configPath)
	defer func() { _ = logger.Sync() }()

	p, err := evoflow.New(cfg, nil, evoflow.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := p.RunEvolutionSweep(ctx, *tenantID)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if result.Errors > 0 {
		os.Exit(1)
	}
}

// =============================================================================
// 🗄️ migrate 子命令
// =============================================================================

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	_ = fs.Parse(args)

	cfg, logger := mustLoad(*configPath)
	defer func() { _ = logger.Sync() }()

	// NewGormStore 内部执行 AutoMigrate
	if _, err := store.NewGormStore(cfg.Database, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("schema up to date", zap.String("driver", cfg.Database.Driver))
}

// =============================================================================
// 🔧 工具函数
// =============================================================================

func mustLoad(path string) (*config.Config, *zap.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func printVersion() {
	fmt.Printf("evoflow %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`evoflow - plugin execution & evolution pipeline

Usage:
  evoflow sweep [--config config.yaml] [--tenant id] [--timeout 10m]
  evoflow migrate [--config config.yaml]
  evoflow version`)
}
