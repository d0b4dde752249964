package monitor

import (
	"context"
	"fmt"
	"time"

	probing "github.com/go-ping/ping"
	"go.uber.org/multierr"

	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/logging"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// ProbeStats 一次探测的统计
type ProbeStats struct {
	PacketsSent int
	PacketsRecv int
	AvgRtt      time.Duration
}

// Pinger 对目标发送 ICMP 探测
type Pinger interface {
	Ping(ctx context.Context, target config.ProbeConfig) (ProbeStats, error)
}

// ICMPPinger 基于 go-ping 的 Pinger 实现
type ICMPPinger struct{}

// Ping 实现 Pinger
func (ICMPPinger) Ping(ctx context.Context, target config.ProbeConfig) (ProbeStats, error) {
	pinger, err := probing.NewPinger(target.Target)
	if err != nil {
		return ProbeStats{}, fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = target.Count
	pinger.Timeout = target.Timeout
	pinger.SetPrivileged(target.Privileged == nil || *target.Privileged)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return ProbeStats{}, fmt.Errorf("ping failed: %w", err)
	}

	stats := pinger.Statistics()
	return ProbeStats{
		PacketsSent: stats.PacketsSent,
		PacketsRecv: stats.PacketsRecv,
		AvgRtt:      stats.AvgRtt,
	}, nil
}

// PingSource 通过 ping 每条 WAN 的探测目标得到读数
type PingSource struct {
	wans   []config.WANConfig
	pinger Pinger
	logger logging.Logger
}

// NewPingSource 创建 ping 采样源
func NewPingSource(wans []config.WANConfig, pinger Pinger, logger logging.Logger) *PingSource {
	if pinger == nil {
		pinger = ICMPPinger{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PingSource{
		wans:   append([]config.WANConfig(nil), wans...),
		pinger: pinger,
		logger: logger,
	}
}

// LossPercent 根据发送和接收的包数计算丢包率
func LossPercent(sent, recv int) float64 {
	if sent <= 0 {
		return 100
	}
	if recv > sent {
		recv = sent
	}
	return float64(sent-recv) / float64(sent) * 100
}

// Read 实现 ReadingSource
// 单个 WAN 探测失败时从快照中省略该 WAN；全部失败时整个周期失败
func (s *PingSource) Read(ctx context.Context) (models.Snapshot, error) {
	snap := make(models.Snapshot, len(s.wans))
	var errs []error

	for _, w := range s.wans {
		if err := ctx.Err(); err != nil {
			return nil, &models.ReadingSourceError{Err: err}
		}

		stats, err := s.pinger.Ping(ctx, w.Probe)
		if err != nil {
			s.logger.Error("Probe failed",
				logging.WAN(w.ID),
				logging.F("target", w.Probe.Target),
				logging.Err(err),
			)
			errs = append(errs, fmt.Errorf("wan %s: %w", w.ID, err))
			continue
		}

		status := models.StatusOnline
		if stats.PacketsRecv == 0 {
			status = models.StatusDown
		}

		snap[w.ID] = models.Reading{
			WanID:       w.ID,
			LossPercent: LossPercent(stats.PacketsSent, stats.PacketsRecv),
			Status:      status,
			RawStatus:   string(status),
		}

		s.logger.Debug("Probe result",
			logging.WAN(w.ID),
			logging.F("target", w.Probe.Target),
			logging.F("sent", stats.PacketsSent),
			logging.F("recv", stats.PacketsRecv),
			logging.F("avg_rtt_ms", float64(stats.AvgRtt.Microseconds())/1000.0),
		)
	}

	if len(s.wans) > 0 && len(errs) == len(s.wans) {
		return nil, &models.ReadingSourceError{Err: multierr.Combine(errs...)}
	}
	return snap, nil
}
