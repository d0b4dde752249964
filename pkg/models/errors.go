package models

import (
	"errors"
	"fmt"
)

var (
	// 验证错误
	ErrEmptyWanID     = errors.New("wan_id cannot be empty")
	ErrLossOutOfRange = errors.New("loss_percent must be between 0 and 100")

	// 业务错误
	ErrUnknownWAN           = errors.New("wan not configured")
	ErrWANNotInSnapshot     = errors.New("wan not found in status snapshot")
	ErrSourceFailed         = errors.New("reading source failed")
	ErrRemediationFailed    = errors.New("remediation command failed")
	ErrCommandNotConfigured = errors.New("remediation command not configured")
)

// ReadingSourceError 采样失败，或快照中缺少已配置的 WAN
type ReadingSourceError struct {
	WanID string // 整个周期失败时为空
	Err   error
}

// Error 实现 error 接口
func (e *ReadingSourceError) Error() string {
	if e.WanID == "" {
		return fmt.Sprintf("reading source: %v", e.Err)
	}
	return fmt.Sprintf("reading source: wan %s: %v", e.WanID, e.Err)
}

// Unwrap 返回底层错误
func (e *ReadingSourceError) Unwrap() error {
	return e.Err
}

// Is 所有 ReadingSourceError 都匹配 ErrSourceFailed
func (e *ReadingSourceError) Is(target error) bool {
	return target == ErrSourceFailed
}

// DataError 丢包率超出 [0,100]
type DataError struct {
	WanID       string
	LossPercent float64
}

// Error 实现 error 接口
func (e *DataError) Error() string {
	return fmt.Sprintf("wan %s: loss_percent %v out of range [0,100]", e.WanID, e.LossPercent)
}

// Is 匹配 ErrLossOutOfRange
func (e *DataError) Is(target error) bool {
	return target == ErrLossOutOfRange
}

// RemediationError 修复命令执行失败
type RemediationError struct {
	WanID    string
	Action   Action
	ExitCode int // -1 表示进程未能启动或被超时终止
	Output   string
	Err      error
}

// Error 实现 error 接口
func (e *RemediationError) Error() string {
	return fmt.Sprintf("%s command for wan %s failed (exit code %d): %v", e.Action, e.WanID, e.ExitCode, e.Err)
}

// Unwrap 返回底层错误
func (e *RemediationError) Unwrap() error {
	return e.Err
}

// Is 匹配 ErrRemediationFailed
func (e *RemediationError) Is(target error) bool {
	return target == ErrRemediationFailed
}
