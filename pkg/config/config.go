// Package config 提供配置文件解析功能
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// 检测策略名称
const (
	StrategySlidingAverage    = "sliding_average"
	StrategyConsecutiveBreach = "consecutive_breach"
)

// 采样来源类型
const (
	SourceGatewayStatus = "gateway_status"
	SourcePing          = "ping"
)

// DefaultGatewayStatusCommand pfSense 网关状态命令
var DefaultGatewayStatusCommand = []string{"/usr/local/sbin/pfSsh.php", "playback", "gatewaystatus"}

// Config WAN 监控配置
type Config struct {
	Monitor     MonitorConfig     `yaml:"monitor"`
	WANs        []WANConfig       `yaml:"wans"`
	Source      SourceConfig      `yaml:"source"`
	Remediation RemediationConfig `yaml:"remediation"`
	Status      StatusConfig      `yaml:"status"`
	Notify      NotifyConfig      `yaml:"notify"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// MonitorConfig 检测配置
type MonitorConfig struct {
	// 指针字段区分未配置和显式的 0
	IntervalSeconds      *int     `yaml:"interval_seconds"`
	CooldownSeconds      *int     `yaml:"cooldown_seconds"`
	LossThresholdPercent *float64 `yaml:"loss_threshold_percent"`
	ConsecutiveChecks    *int     `yaml:"consecutive_checks"`
	Strategy             string   `yaml:"strategy"`
}

// WANConfig 单条 WAN 的配置
type WANConfig struct {
	ID               string      `yaml:"id"`
	Interface        string      `yaml:"interface"`
	RestartCommand   []string    `yaml:"restart_command"`
	RenewDHCPCommand []string    `yaml:"renew_dhcp_command"`
	Probe            ProbeConfig `yaml:"probe"`
}

// ProbeConfig ping 采样配置
type ProbeConfig struct {
	Target     string        `yaml:"target"`
	Count      int           `yaml:"count"`
	Timeout    time.Duration `yaml:"timeout"`
	Privileged *bool         `yaml:"privileged"`
}

// SourceConfig 采样来源配置
type SourceConfig struct {
	Type    string        `yaml:"type"`
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// RemediationConfig 修复命令配置
type RemediationConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// StatusConfig 状态 HTTP 服务配置
type StatusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Port          int    `yaml:"port"`
}

// NotifyConfig 修复事件通知配置
type NotifyConfig struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  []int         `yaml:"retry_backoff"` // 秒
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    *bool  `yaml:"console"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
}

// Interval 轮询间隔
func (m MonitorConfig) Interval() time.Duration {
	if m.IntervalSeconds == nil {
		return 0
	}
	return time.Duration(*m.IntervalSeconds) * time.Second
}

// Checks 连续检查次数，同时是滑动窗口容量
func (m MonitorConfig) Checks() int {
	if m.ConsecutiveChecks == nil {
		return 0
	}
	return *m.ConsecutiveChecks
}

// Cooldown 修复后的冷却时间
func (m MonitorConfig) Cooldown() time.Duration {
	if m.CooldownSeconds == nil {
		return 0
	}
	return time.Duration(*m.CooldownSeconds) * time.Second
}

// Threshold 丢包率阈值（百分比）
func (m MonitorConfig) Threshold() float64 {
	if m.LossThresholdPercent == nil {
		return 0
	}
	return *m.LossThresholdPercent
}

// Timeout 修复命令超时
func (r RemediationConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// WANIDs 按配置顺序返回 WAN ID
func (c *Config) WANIDs() []string {
	ids := make([]string, 0, len(c.WANs))
	for _, w := range c.WANs {
		ids = append(ids, w.ID)
	}
	return ids
}

// WAN 按 ID 查找 WAN 配置
func (c *Config) WAN(id string) (WANConfig, bool) {
	for _, w := range c.WANs {
		if w.ID == id {
			return w, true
		}
	}
	return WANConfig{}, false
}

// ConfigurationError 配置错误，启动时致命
type ConfigurationError struct {
	Path string
	Err  error
}

// Error 实现 error 接口
func (e *ConfigurationError) Error() string {
	var verrs []ValidationError
	for _, err := range multierr.Errors(e.Err) {
		var ve ValidationError
		if !errors.As(err, &ve) {
			return fmt.Sprintf("config %s: %v", e.Path, e.Err)
		}
		verrs = append(verrs, ve)
	}
	return fmt.Sprintf("config %s: %s", e.Path, FormatValidationErrors(verrs))
}

// Unwrap 返回底层错误
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ValidationErrors 返回所有验证错误
func (e *ConfigurationError) ValidationErrors() []ValidationError {
	var out []ValidationError
	for _, err := range multierr.Errors(e.Err) {
		var ve ValidationError
		if errors.As(err, &ve) {
			out = append(out, ve)
		}
	}
	return out
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config file path is trusted input
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	cfg, err := Parse(data)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			ce.Path = path
			return nil, ce
		}
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse 解析 YAML 配置，设置默认值并验证
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to parse config file: %w", err)}
	}

	ApplyDefaults(&cfg)

	// 执行配置验证
	validationErrors := Validate(&cfg)
	if len(validationErrors) > 0 {
		errs := make([]error, 0, len(validationErrors))
		for _, ve := range validationErrors {
			errs = append(errs, ve)
		}
		return nil, &ConfigurationError{Err: multierr.Combine(errs...)}
	}

	return &cfg, nil
}

// ApplyDefaults 设置默认值
func ApplyDefaults(cfg *Config) {
	if cfg.Monitor.IntervalSeconds == nil {
		interval := 60
		cfg.Monitor.IntervalSeconds = &interval
	}
	if cfg.Monitor.CooldownSeconds == nil {
		cooldown := 30
		cfg.Monitor.CooldownSeconds = &cooldown
	}
	if cfg.Monitor.LossThresholdPercent == nil {
		threshold := 50.0
		cfg.Monitor.LossThresholdPercent = &threshold
	}
	if cfg.Monitor.ConsecutiveChecks == nil {
		checks := 3
		cfg.Monitor.ConsecutiveChecks = &checks
	}
	if cfg.Monitor.Strategy == "" {
		cfg.Monitor.Strategy = StrategySlidingAverage
	}

	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceGatewayStatus
	}
	if cfg.Source.Type == SourceGatewayStatus && len(cfg.Source.Command) == 0 {
		cfg.Source.Command = append([]string(nil), DefaultGatewayStatusCommand...)
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 30 * time.Second
	}

	for i := range cfg.WANs {
		// 快照按 ID 精确匹配
		cfg.WANs[i].ID = strings.TrimSpace(cfg.WANs[i].ID)

		p := &cfg.WANs[i].Probe
		if p.Count == 0 {
			p.Count = 5
		}
		if p.Timeout == 0 {
			p.Timeout = 5 * time.Second
		}
		if p.Privileged == nil {
			privileged := true
			p.Privileged = &privileged
		}
	}

	if cfg.Remediation.TimeoutSeconds == 0 {
		cfg.Remediation.TimeoutSeconds = 60
	}

	if cfg.Status.ListenAddress == "" {
		cfg.Status.ListenAddress = "127.0.0.1"
	}
	if cfg.Status.Port == 0 {
		cfg.Status.Port = 9108
	}

	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
	if cfg.Notify.RetryAttempts == 0 {
		cfg.Notify.RetryAttempts = 3
	}
	if len(cfg.Notify.RetryBackoff) == 0 {
		cfg.Notify.RetryBackoff = []int{1, 2, 4}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Console == nil {
		console := true
		cfg.Logging.Console = &console
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 7
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 7
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
}
