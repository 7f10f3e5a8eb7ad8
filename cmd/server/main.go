// @title           MeroDocs Gate Service API
// @version         1.0
// @description     Gate visit registration, resident approvals and parcel collection for residential societies

// @contact.name   API Support

// @BasePath  /api

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Enter the token with the `Bearer ` prefix
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"merodocs-http-service/internal/app/routes"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/infrastructure/config"
	"merodocs-http-service/internal/infrastructure/database"
	"merodocs-http-service/pkg/logger"
)

func main() {
	// 初始化日志配置
	if err := logger.SetupLogger(); err != nil {
		fmt.Printf("初始化日志配置失败: %v\n", err)
		os.Exit(1)
	}

	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		logger.Warning("无法加载.env文件: %v", err)
		// 即使加载失败也继续执行，可能环境变量已经通过其他方式设置
	} else {
		logger.Info("成功加载.env文件")
	}

	// 获取配置
	cfg := config.GetConfig()

	opts := logger.DefaultOptions()
	opts.Level = cfg.LogLevel
	opts.Format = cfg.LogFormat
	opts.Dir = cfg.LogDir
	if err := logger.Configure(opts); err != nil {
		logger.Error("日志配置无效: %v", err)
		os.Exit(1)
	}
	if cfg.EnvType == "SERVER" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建数据库连接池
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		logger.Error("无法创建数据库连接池: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("数据库迁移模式: %s", cfg.DBMigrationMode)
	if err := database.Migrate(pool.GetDB(), cfg.DBMigrationMode); err != nil {
		logger.Error("数据库迁移失败: %v", err)
		os.Exit(1)
	}

	serviceContainer, err := container.NewServiceContainer(pool.GetDB(), cfg, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("初始化服务失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	serviceContainer.Start(ctx)

	r := routes.SetupRouter(serviceContainer, cfg)
	printSystemInfo(pool)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("服务器启动在: http://0.0.0.0:%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("启动服务器失败: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭HTTP服务失败: %v", err)
	}
	// 等待后台通知发送完
	serviceContainer.Close()
	logger.Info("服务器已退出")
}

// printSystemInfo 打印系统信息
func printSystemInfo(pool *database.ConnectionPool) {
	stats, err := pool.Stats()
	if err == nil {
		logger.Info("数据库连接池状态: %+v", stats)
	}

	logger.Info("系统CPU核心数: %d", runtime.NumCPU())
	logger.Info("当前Go协程数: %d", runtime.NumGoroutine())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info("系统内存使用: Alloc=%v MiB, Sys=%v MiB", m.Alloc/1024/1024, m.Sys/1024/1024)
}
