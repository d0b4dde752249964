// Package models 定义 WAN 监控系统的核心数据模型
package models

import (
	"math"
	"strings"
	"time"
)

// LinkStatus 链路状态
type LinkStatus string

const (
	// StatusOnline 链路在线
	StatusOnline LinkStatus = "online"
	// StatusDown 链路中断
	StatusDown LinkStatus = "down"
	// StatusOther 其他状态（如 pfSense 的 "loss"、"delay" 告警）
	StatusOther LinkStatus = "other"
)

// ParseLinkStatus 从状态文本解析链路状态
func ParseLinkStatus(s string) LinkStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "up":
		return StatusOnline
	case "down", "offline":
		return StatusDown
	default:
		return StatusOther
	}
}

// Reading 单个周期内某条 WAN 的一次读数
type Reading struct {
	WanID       string     `json:"wan_id"`
	LossPercent float64    `json:"loss_percent"` // 0 - 100
	Status      LinkStatus `json:"status"`
	RawStatus   string     `json:"raw_status,omitempty"`
}

// Validate 验证读数的有效性
func (r Reading) Validate() error {
	if r.WanID == "" {
		return ErrEmptyWanID
	}
	if math.IsNaN(r.LossPercent) || r.LossPercent < 0 || r.LossPercent > 100 {
		return &DataError{WanID: r.WanID, LossPercent: r.LossPercent}
	}
	return nil
}

// Snapshot 一次采样得到的全部读数，wan_id -> reading
type Snapshot map[string]Reading

// Action 修复动作
type Action string

const (
	// ActionRestart 重启 WAN
	ActionRestart Action = "restart"
	// ActionResetInterface 释放/续租 DHCP，用于完全中断
	ActionResetInterface Action = "reset_interface"
)

// Decision 检测器对一次读数的判定结果
type Decision struct {
	WanID         string   `json:"wan_id"`
	Strategy      string   `json:"strategy"`
	Actions       []Action `json:"actions,omitempty"`
	Average       float64  `json:"sliding_average"`
	Samples       int      `json:"samples"`
	BreachCount   int      `json:"breach_count"`
	FullLossCount int      `json:"full_loss_count"`
}

// Fired 是否触发了任何修复动作
func (d Decision) Fired() bool {
	return len(d.Actions) > 0
}

// Has 检查是否包含指定动作
func (d Decision) Has(a Action) bool {
	for _, x := range d.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// WanSnapshot WAN 跟踪状态的只读快照
type WanSnapshot struct {
	WanID          string     `json:"wan_id"`
	RecentLosses   []float64  `json:"recent_losses"`
	SlidingAverage float64    `json:"sliding_average"`
	BreachCount    int        `json:"breach_count"`
	FullLossCount  int        `json:"full_loss_count"`
	LastReading    *Reading   `json:"last_reading,omitempty"`
	LastUpdate     *time.Time `json:"last_update,omitempty"`
	LastAction     Action     `json:"last_action,omitempty"`
	LastActionAt   *time.Time `json:"last_action_at,omitempty"`
	Remediations   int        `json:"remediations"`
}

// RemediationEvent 修复事件，用于通知
type RemediationEvent struct {
	CycleID     string   `json:"cycle_id"`
	WanID       string   `json:"wan_id"`
	Action      Action   `json:"action"`
	Success     bool     `json:"success"`
	ExitCode    int      `json:"exit_code"`
	Output      string   `json:"output,omitempty"`
	Error       string   `json:"error,omitempty"`
	Decision    Decision `json:"decision"`
	Timestamp   int64    `json:"timestamp"`
	DurationMs  int64    `json:"duration_ms"`
	CommandLine []string `json:"command"`
}

// ErrorResponse 表示错误响应
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WansResponse WAN 状态列表响应
type WansResponse struct {
	Strategy string        `json:"strategy"`
	Wans     []WanSnapshot `json:"wans"`
}

// HealthStatus 健康状态常量
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// DetailedHealthResponse 详细健康响应
type DetailedHealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// ComponentHealth 组件健康状态
type ComponentHealth struct {
	Status    string                 `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	LastCheck string                 `json:"last_check"`
}

// IsHealthy 检查整体健康状态
func (d *DetailedHealthResponse) IsHealthy() bool {
	for _, comp := range d.Components {
		if comp.Status == HealthStatusUnhealthy {
			return false
		}
	}
	return true
}

// NewComponentHealth 创建组件状态
func NewComponentHealth(status string) ComponentHealth {
	return ComponentHealth{
		Status:    status,
		Details:   make(map[string]interface{}),
		LastCheck: time.Now().Format(time.RFC3339),
	}
}

// NewDetailedHealthResponse 创建详细健康响应
func NewDetailedHealthResponse() *DetailedHealthResponse {
	return &DetailedHealthResponse{
		Status:     HealthStatusHealthy,
		Components: make(map[string]ComponentHealth),
		Timestamp:  time.Now().Format(time.RFC3339),
	}
}

// AddComponent 添加组件健康状态
func (d *DetailedHealthResponse) AddComponent(name string, health ComponentHealth) {
	d.Components[name] = health
	if health.Status == HealthStatusUnhealthy {
		d.Status = HealthStatusUnhealthy
	} else if health.Status == HealthStatusDegraded && d.Status == HealthStatusHealthy {
		d.Status = HealthStatusDegraded
	}
}
