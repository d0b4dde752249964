package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// fakePinger 按 ping 目标返回预设统计
type fakePinger struct {
	stats map[string]ProbeStats
	errs  map[string]error
}

func (f fakePinger) Ping(ctx context.Context, target config.ProbeConfig) (ProbeStats, error) {
	if err, ok := f.errs[target.Target]; ok {
		return ProbeStats{}, err
	}
	return f.stats[target.Target], nil
}

func pingWANs() []config.WANConfig {
	return []config.WANConfig{
		{ID: "WAN_DHCP", Probe: config.ProbeConfig{Target: "8.8.8.8", Count: 5}},
		{ID: "WAN2_DHCP", Probe: config.ProbeConfig{Target: "1.1.1.1", Count: 5}},
	}
}

func TestLossPercent(t *testing.T) {
	tests := []struct {
		sent, recv int
		want       float64
	}{
		{5, 5, 0},
		{5, 0, 100},
		{4, 1, 75},
		{10, 4, 60},
		{0, 0, 100},
		{3, 5, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LossPercent(tt.sent, tt.recv), "sent=%d recv=%d", tt.sent, tt.recv)
	}
}

func TestPingSourceRead(t *testing.T) {
	pinger := fakePinger{stats: map[string]ProbeStats{
		"8.8.8.8": {PacketsSent: 5, PacketsRecv: 2},
		"1.1.1.1": {PacketsSent: 5, PacketsRecv: 0},
	}}

	snap, err := NewPingSource(pingWANs(), pinger, nil).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 2)

	assert.Equal(t, 60.0, snap["WAN_DHCP"].LossPercent)
	assert.Equal(t, models.StatusOnline, snap["WAN_DHCP"].Status)
	assert.Equal(t, 100.0, snap["WAN2_DHCP"].LossPercent)
	assert.Equal(t, models.StatusDown, snap["WAN2_DHCP"].Status)
}

func TestPingSourceOmitsFailedTarget(t *testing.T) {
	pinger := fakePinger{
		stats: map[string]ProbeStats{"8.8.8.8": {PacketsSent: 5, PacketsRecv: 5}},
		errs:  map[string]error{"1.1.1.1": errors.New("network is unreachable")},
	}

	snap, err := NewPingSource(pingWANs(), pinger, nil).Read(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap, "WAN_DHCP")
	assert.NotContains(t, snap, "WAN2_DHCP")
}

func TestPingSourceAllTargetsFail(t *testing.T) {
	pinger := fakePinger{errs: map[string]error{
		"8.8.8.8": errors.New("permission denied"),
		"1.1.1.1": errors.New("permission denied"),
	}}

	snap, err := NewPingSource(pingWANs(), pinger, nil).Read(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, models.ErrSourceFailed)
	assert.Contains(t, err.Error(), "wan WAN_DHCP")
	assert.Contains(t, err.Error(), "wan WAN2_DHCP")
}

func TestPingSourceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPingSource(pingWANs(), fakePinger{}, nil).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, models.ErrSourceFailed)
}
