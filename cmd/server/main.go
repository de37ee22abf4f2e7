package main

import (
	"flag"
	"os"
	"strings"
	"syscall"

	"github.com/schoolpay-next/internal/app"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	release := cfg.Server.Mode == "release"
	for name, secret := range map[string]string{"jwt": cfg.JWT.SecretKey, "student_jwt": cfg.StudentJWT.SecretKey} {
		if !isWeakSecret(secret) {
			continue
		}
		if release {
			stdLog.Fatalf("%s secret 过弱或仍为默认值，请在生产环境中配置强随机密钥", name)
		}
		stdLog.Printf("警告: %s secret 过弱或仍为默认值，建议在生产环境中更换", name)
	}

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
		LogLevel:               cfg.Database.Pool.LogLevel,
	}); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 平台超级管理员只在首次启动且提供了密码时创建
	superUser := strings.TrimSpace(os.Getenv("SP_SUPER_ADMIN_USERNAME"))
	if superUser == "" {
		superUser = "admin"
	}
	superPass := os.Getenv("SP_SUPER_ADMIN_PASSWORD")
	if superPass == "" {
		stdLog.Printf("警告: 未设置 SP_SUPER_ADMIN_PASSWORD，已跳过超级管理员初始化")
	} else {
		authService := service.NewAuthService(cfg, repository.NewAdminRepository(models.DB))
		if _, created, err := authService.EnsureSuperAdmin(superUser, superPass); err != nil {
			stdLog.Printf("警告: 初始化超级管理员失败: %v", err)
		} else if created {
			logger.Warnw("super_admin_created", "username", superUser)
		}
	}

	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	for _, marker := range []string{"change-me", "change-in-production", "your-secret-key"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}
