// WAN 监控主程序
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/holygeek00/lite-wanmon/internal/monitor"
	"github.com/holygeek00/lite-wanmon/internal/status"
	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/logging"
)

// version 构建时通过 -ldflags 注入
var version = "dev"

// shutdownTimeout 关闭状态服务器和等待通知发送的超时
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/wanmon.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run a single monitoring cycle and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	logLevel := flag.String("log-level", "", "Override logging.level from config (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		// 配置加载失败时使用默认 logger
		logger := logging.NewJSONLogger(logging.ERROR, os.Stderr)
		logger.Error("Failed to load config",
			logging.Err(err),
			logging.F("config_path", *configPath),
		)
		os.Exit(1)
	}

	if err := run(cfg, *once, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "wanmon: %v\n", err)
		os.Exit(1)
	}
}

// newLogger 按配置创建 logger，override 非空时覆盖配置的级别
func newLogger(cfg *config.Config, out io.Writer, override string) *logging.JSONLogger {
	logger := newLogger(cfg, out, logLevel)
	if override != "" {
		logger.SetLevel(logging.ParseLevel(override))
	}
	return logger
}

func run(cfg *config.Config, once bool, logLevel string) (err error) {
	out, err := logging.NewOutput(logging.OutputOptions{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    *cfg.Logging.Console,
	})
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	logger := newLogger(cfg, out, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go out.RotateDaily(ctx, nil)

	logger.Info("Starting WAN Monitor",
		logging.F("version", version),
		logging.F("wans", cfg.WANIDs()),
		logging.F("strategy", cfg.Monitor.Strategy),
		logging.F("source", cfg.Source.Type),
		logging.F("interval", cfg.Monitor.Interval().String()),
		logging.F("loss_threshold_percent", cfg.Monitor.Threshold()),
		logging.F("consecutive_checks", cfg.Monitor.Checks()),
		logging.F("log_level", logger.GetLevel().String()),
	)

	runner := monitor.ExecRunner{}

	var source monitor.ReadingSource
	switch cfg.Source.Type {
	case config.SourcePing:
		source = monitor.NewPingSource(cfg.WANs, monitor.ICMPPinger{}, logger.WithFields(logging.F("component", "ping_source")))
	default:
		source = monitor.NewGatewayStatusSource(cfg.Source.Command, cfg.Source.Timeout, runner, logger.WithFields(logging.F("component", "gateway_status")))
	}

	executor := monitor.NewExecutorWithRunner(cfg.WANs, cfg.Remediation.Timeout(), runner, logger.WithFields(logging.F("component", "executor")))
	metrics := monitor.NewMetrics()

	var notifier *monitor.WebhookNotifier
	opts := monitor.Options{
		Source:         source,
		Remediator:     executor,
		Metrics:        metrics,
		InterfaceStats: monitor.ReadInterfaceCounters,
		Logger:         logger,
	}
	if cfg.Notify.URL != "" {
		notifier = monitor.NewWebhookNotifier(cfg.Notify.URL, cfg.Notify.Timeout, cfg.Notify.RetryAttempts, cfg.Notify.RetryBackoff, nil, logger.WithFields(logging.F("component", "notifier")))
		opts.Notifier = notifier
	}

	mon, err := monitor.New(cfg, opts)
	if err != nil {
		return err
	}

	var srv *status.Server
	if cfg.Status.Enabled && !once {
		srv = status.NewServer(cfg.Status, mon, metrics, version, logger.WithFields(logging.F("component", "status")))
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	if once {
		res := mon.RunCycle(ctx)
		if res.SourceError != nil {
			err = res.SourceError
		}
	} else {
		err = mon.Run(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		err = multierr.Append(err, srv.Stop(shutdownCtx))
	}
	if notifier != nil {
		err = multierr.Append(err, notifier.Close(shutdownCtx))
	}

	logger.Info("WAN Monitor shutdown complete")
	return err
}
