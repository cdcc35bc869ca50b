// @title SIA 言语康复练习 API
// @version 1.0
// @description 失语症患者练习活动的后端服务：生成练习、逐题作答、提示与进度跟踪。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sia_backend/internal/app"
	"sia_backend/internal/config"
	"sia_backend/pkg/configwatcher"
	"sia_backend/pkg/logger"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.MigrateOnly = *migrateOnly

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		path := filepath.Join(*configDir, "config.yaml")
		if err := configwatcher.WatchConfig(ctx, path, application.ReloadConfig); err != nil {
			logger.Log.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	application.Run()
}
