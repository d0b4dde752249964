package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holygeek00/lite-wanmon/pkg/logging"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// ReadingSource 每个周期提供一次全部 WAN 的读数
// 失败时返回 error，不返回部分数据
type ReadingSource interface {
	Read(ctx context.Context) (models.Snapshot, error)
}

// ReadingSourceFunc 函数形式的 ReadingSource
type ReadingSourceFunc func(ctx context.Context) (models.Snapshot, error)

// Read 实现 ReadingSource
func (f ReadingSourceFunc) Read(ctx context.Context) (models.Snapshot, error) {
	return f(ctx)
}

// gatewayStatusColumns 网关状态表的最少列数：
// Name Monitor Source Delay StdDev Loss Status
const gatewayStatusColumns = 7

// GatewayStatusSource 执行网关状态命令并解析输出表格
type GatewayStatusSource struct {
	command []string
	runner  CommandRunner
	timeout time.Duration
	logger  logging.Logger
}

// NewGatewayStatusSource 创建网关状态采样源
func NewGatewayStatusSource(command []string, timeout time.Duration, runner CommandRunner, logger logging.Logger) *GatewayStatusSource {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GatewayStatusSource{
		command: append([]string(nil), command...),
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
}

// Read 实现 ReadingSource
func (s *GatewayStatusSource) Read(ctx context.Context) (models.Snapshot, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.runner.Run(ctx, s.command)
	if err != nil {
		return nil, &models.ReadingSourceError{
			Err: fmt.Errorf("gateway status command %q failed (exit code %d): %w", strings.Join(s.command, " "), res.ExitCode, err),
		}
	}

	s.logger.Debug("Gateway status output", logging.F("output", string(res.Output)))

	snap, skipped := ParseGatewayStatus(string(res.Output))
	for _, line := range skipped {
		s.logger.Warn("Skipping malformed gateway status line", logging.F("line", line))
	}
	return snap, nil
}

// ParseGatewayStatus 解析网关状态表格
// 第一行是表头；少于 7 列或丢包率无法解析的行被跳过并返回
func ParseGatewayStatus(output string) (models.Snapshot, []string) {
	snap := make(models.Snapshot)
	var skipped []string

	lines := strings.Split(output, "\n")
	if len(lines) <= 1 {
		return snap, nil
	}

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		columns := strings.Fields(line)
		if len(columns) < gatewayStatusColumns {
			skipped = append(skipped, line)
			continue
		}

		name := columns[0]
		loss, err := strconv.ParseFloat(strings.TrimSuffix(columns[5], "%"), 64)
		if err != nil {
			skipped = append(skipped, line)
			continue
		}
		status := columns[6]

		snap[name] = models.Reading{
			WanID:       name,
			LossPercent: loss,
			Status:      models.ParseLinkStatus(status),
			RawStatus:   status,
		}
	}

	return snap, skipped
}
