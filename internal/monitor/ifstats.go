package monitor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/net"
)

// InterfaceCounters 网卡计数器
type InterfaceCounters struct {
	Name        string `json:"name"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	Errin       uint64 `json:"errin"`
	Errout      uint64 `json:"errout"`
	Dropin      uint64 `json:"dropin"`
	Dropout     uint64 `json:"dropout"`
}

// InterfaceStatsFunc 读取指定网卡的计数器
type InterfaceStatsFunc func(names ...string) (map[string]InterfaceCounters, error)

// ReadInterfaceCounters 通过 gopsutil 读取网卡计数器，未找到的网卡不出现在结果中
func ReadInterfaceCounters(names ...string) (map[string]InterfaceCounters, error) {
	out := make(map[string]InterfaceCounters, len(names))
	if len(names) == 0 {
		return out, nil
	}

	counters, err := net.IOCounters(true)
	if err != nil {
		return nil, fmt.Errorf("failed to read interface counters: %w", err)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	for _, c := range counters {
		if !wanted[c.Name] {
			continue
		}
		out[c.Name] = InterfaceCounters{
			Name:        c.Name,
			BytesSent:   c.BytesSent,
			BytesRecv:   c.BytesRecv,
			PacketsSent: c.PacketsSent,
			PacketsRecv: c.PacketsRecv,
			Errin:       c.Errin,
			Errout:      c.Errout,
			Dropin:      c.Dropin,
			Dropout:     c.Dropout,
		}
	}
	return out, nil
}
