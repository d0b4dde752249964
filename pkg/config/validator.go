// Package config 提供配置文件解析和验证功能
package config

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (got: '%s')", e.Field, e.Message, e.Value)
}

// ValidateURL 验证 URL 格式
// 返回 true 如果字符串是有效的 HTTP 或 HTTPS URL
func ValidateURL(urlStr string) bool {
	if urlStr == "" {
		return false
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// ValidatePort 验证端口范围
func ValidatePort(port int) bool {
	return port >= 1 && port <= 65535
}

// ValidateListenAddress 验证监听地址格式
func ValidateListenAddress(addr string) bool {
	if addr == "" {
		return false
	}
	return net.ParseIP(addr) != nil
}

// ValidateCommand 验证参数向量形式的命令
func ValidateCommand(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	return strings.TrimSpace(argv[0]) != ""
}

// Validate 验证监控配置
// 返回所有验证错误的列表
func Validate(cfg *Config) []ValidationError {
	var errors []ValidationError

	m := cfg.Monitor
	if m.IntervalSeconds == nil || *m.IntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitor.interval_seconds",
			Value:   fmt.Sprintf("%d", int(m.Interval()/time.Second)),
			Message: "must be >= 1",
		})
	}
	if m.CooldownSeconds != nil && *m.CooldownSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.cooldown_seconds",
			Value:   fmt.Sprintf("%d", *m.CooldownSeconds),
			Message: "must be non-negative",
		})
	}
	if m.LossThresholdPercent != nil {
		th := *m.LossThresholdPercent
		if math.IsNaN(th) || th < 0 || th > 100 {
			errors = append(errors, ValidationError{
				Field:   "monitor.loss_threshold_percent",
				Value:   fmt.Sprintf("%v", th),
				Message: "must be in range [0, 100]",
			})
		}
	}
	if m.Checks() < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitor.consecutive_checks",
			Value:   fmt.Sprintf("%d", m.Checks()),
			Message: "must be >= 1",
		})
	}
	if m.Strategy != StrategySlidingAverage && m.Strategy != StrategyConsecutiveBreach {
		errors = append(errors, ValidationError{
			Field:   "monitor.strategy",
			Value:   m.Strategy,
			Message: "must be one of: sliding_average, consecutive_breach",
		})
	}

	errors = append(errors, validateWANs(cfg)...)
	errors = append(errors, validateSource(cfg)...)

	if cfg.Remediation.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "remediation.timeout_seconds",
			Value:   fmt.Sprintf("%d", cfg.Remediation.TimeoutSeconds),
			Message: "must be non-negative",
		})
	}

	if cfg.Status.Enabled {
		if !ValidateListenAddress(cfg.Status.ListenAddress) {
			errors = append(errors, ValidationError{
				Field:   "status.listen_address",
				Value:   cfg.Status.ListenAddress,
				Message: "must be a valid IP address (e.g., 127.0.0.1 or 0.0.0.0)",
			})
		}
		if !ValidatePort(cfg.Status.Port) {
			errors = append(errors, ValidationError{
				Field:   "status.port",
				Value:   fmt.Sprintf("%d", cfg.Status.Port),
				Message: "must be in range [1, 65535]",
			})
		}
	}

	if cfg.Notify.URL != "" && !ValidateURL(cfg.Notify.URL) {
		errors = append(errors, ValidationError{
			Field:   "notify.url",
			Value:   cfg.Notify.URL,
			Message: "must be a valid HTTP or HTTPS URL",
		})
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if cfg.Logging.Level != "" && !validLevels[strings.ToUpper(cfg.Logging.Level)] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   cfg.Logging.Level,
			Message: "must be one of: DEBUG, INFO, WARN, ERROR",
		})
	}

	return errors
}

// validateWANs 验证 WAN 列表：ID 唯一，两条修复命令都必须配置
func validateWANs(cfg *Config) []ValidationError {
	var errors []ValidationError

	if len(cfg.WANs) == 0 {
		return append(errors, ValidationError{
			Field:   "wans",
			Value:   "[]",
			Message: "at least one WAN is required",
		})
	}

	seen := make(map[string]bool, len(cfg.WANs))
	for i, w := range cfg.WANs {
		prefix := fmt.Sprintf("wans[%d]", i)

		id := strings.TrimSpace(w.ID)
		if id == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".id",
				Value:   w.ID,
				Message: "id is required",
			})
		} else if seen[id] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".id",
				Value:   w.ID,
				Message: "duplicate WAN id",
			})
		}
		seen[id] = true

		if !ValidateCommand(w.RestartCommand) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".restart_command",
				Value:   strings.Join(w.RestartCommand, " "),
				Message: "restart_command is required for WAN " + w.ID,
			})
		}
		if !ValidateCommand(w.RenewDHCPCommand) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".renew_dhcp_command",
				Value:   strings.Join(w.RenewDHCPCommand, " "),
				Message: "renew_dhcp_command is required for WAN " + w.ID,
			})
		}

		if cfg.Source.Type == SourcePing {
			if w.Probe.Target == "" {
				errors = append(errors, ValidationError{
					Field:   prefix + ".probe.target",
					Value:   "",
					Message: "probe.target is required when source.type is ping",
				})
			}
			if w.Probe.Count < 1 {
				errors = append(errors, ValidationError{
					Field:   prefix + ".probe.count",
					Value:   fmt.Sprintf("%d", w.Probe.Count),
					Message: "must be >= 1",
				})
			}
		}
	}

	return errors
}

func validateSource(cfg *Config) []ValidationError {
	switch cfg.Source.Type {
	case SourceGatewayStatus:
		if !ValidateCommand(cfg.Source.Command) {
			return []ValidationError{{
				Field:   "source.command",
				Value:   strings.Join(cfg.Source.Command, " "),
				Message: "source.command is required for gateway_status",
			}}
		}
	case SourcePing:
	default:
		return []ValidationError{{
			Field:   "source.type",
			Value:   cfg.Source.Type,
			Message: "must be one of: gateway_status, ping",
		}}
	}
	return nil
}

// FormatValidationErrors 格式化验证错误为可读字符串
func FormatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range errors {
		sb.WriteString(fmt.Sprintf("  - %s: %s (got: '%s')\n", err.Field, err.Message, err.Value))
	}
	return sb.String()
}
