package app

import (
	"errors"
	"fmt"
	"net"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/provider"
	"github.com/schoolpay-next/internal/router"
	"github.com/schoolpay-next/internal/worker"
)

// BuildRunner 按启动模式组装服务：api 只起 HTTP，worker 起队列消费与周期扫描
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !isValidMode(mode) {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	container := provider.NewContainer(cfg)
	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(listenAddr(cfg), engine))
	}

	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		if cfg.Queue.Enabled {
			queueService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, queueService)
		} else {
			logger.Warnw("app_queue_disabled", "mode", mode)
		}
		// 风控重试与欠费刷新不依赖队列
		services = append(services, worker.NewSweepService(consumer))
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}
	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	opts.Logger.Infow("app_start", "addr", listenAddr(opts.Config), "mode", opts.Mode, "services", runner.Names())
	return RunWithOptions(runner, opts)
}

func listenAddr(cfg *config.Config) string {
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	return net.JoinHostPort(cfg.Server.Host, port)
}
