package monitor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/holygeek00/lite-wanmon/pkg/config"
	"github.com/holygeek00/lite-wanmon/pkg/logging"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// CommandResult 命令执行结果
type CommandResult struct {
	Output   []byte
	ExitCode int
}

// CommandRunner 执行参数向量形式的外部命令
type CommandRunner interface {
	Run(ctx context.Context, argv []string) (CommandResult, error)
}

// commandWaitDelay 上下文结束后等待输出管道关闭的最长时间
const commandWaitDelay = 2 * time.Second

// ExecRunner 使用 os/exec 直接执行命令，不经过 shell
type ExecRunner struct{}

// Run 实现 CommandRunner
func (ExecRunner) Run(ctx context.Context, argv []string) (CommandResult, error) {
	if len(argv) == 0 {
		return CommandResult{ExitCode: -1}, models.ErrCommandNotConfigured
	}

	// #nosec G204 - argv comes from the validated config file
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	// 超时时终止整个进程组；子进程仍占用输出管道时最多再等 WaitDelay
	setProcessGroup(cmd)
	cmd.WaitDelay = commandWaitDelay
	output, err := cmd.CombinedOutput()
	res := CommandResult{Output: output}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%w: %v", ctxErr, err)
	}
	return res, err
}

// Remediator 修复动作执行器
type Remediator interface {
	Restart(ctx context.Context, wanID string) (RemediationResult, error)
	RenewDHCP(ctx context.Context, wanID string) (RemediationResult, error)
}

// RemediationResult 一次修复动作的结果
type RemediationResult struct {
	WanID    string
	Action   models.Action
	Command  []string
	Output   string
	ExitCode int
	Duration time.Duration
}

// Executor 按 WAN 配置执行重启和 DHCP 续租命令
type Executor struct {
	commands map[string]config.WANConfig
	runner   CommandRunner
	timeout  time.Duration
	logger   logging.Logger
	mu       sync.Mutex
}

// NewExecutor 创建修复执行器
func NewExecutor(wans []config.WANConfig, timeout time.Duration) *Executor {
	return NewExecutorWithRunner(wans, timeout, ExecRunner{}, nil)
}

// NewExecutorWithRunner 创建修复执行器，使用指定的 CommandRunner 和 Logger
func NewExecutorWithRunner(wans []config.WANConfig, timeout time.Duration, runner CommandRunner, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	commands := make(map[string]config.WANConfig, len(wans))
	for _, w := range wans {
		commands[w.ID] = w
	}

	return &Executor{
		commands: commands,
		runner:   runner,
		timeout:  timeout,
		logger:   logger,
	}
}

// Restart 执行 WAN 的重启命令
func (e *Executor) Restart(ctx context.Context, wanID string) (RemediationResult, error) {
	wan, ok := e.commands[wanID]
	if !ok {
		return RemediationResult{WanID: wanID, Action: models.ActionRestart}, fmt.Errorf("%w: %s", models.ErrUnknownWAN, wanID)
	}
	return e.run(ctx, wanID, models.ActionRestart, wan.RestartCommand)
}

// RenewDHCP 执行 WAN 的 DHCP 释放/续租命令
func (e *Executor) RenewDHCP(ctx context.Context, wanID string) (RemediationResult, error) {
	wan, ok := e.commands[wanID]
	if !ok {
		return RemediationResult{WanID: wanID, Action: models.ActionResetInterface}, fmt.Errorf("%w: %s", models.ErrUnknownWAN, wanID)
	}
	return e.run(ctx, wanID, models.ActionResetInterface, wan.RenewDHCPCommand)
}

func (e *Executor) run(ctx context.Context, wanID string, action models.Action, argv []string) (RemediationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := RemediationResult{
		WanID:   wanID,
		Action:  action,
		Command: append([]string(nil), argv...),
	}

	if len(argv) == 0 {
		res.ExitCode = -1
		return res, &models.RemediationError{WanID: wanID, Action: action, ExitCode: -1, Err: models.ErrCommandNotConfigured}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("Running remediation command",
		logging.WAN(wanID),
		logging.F("action", string(action)),
		logging.F("command", strings.Join(argv, " ")),
	)

	start := time.Now()
	out, err := e.runner.Run(ctx, argv)
	res.Duration = time.Since(start)
	res.Output = string(out.Output)
	res.ExitCode = out.ExitCode

	if err != nil {
		e.logger.Error("Remediation command failed",
			logging.WAN(wanID),
			logging.F("action", string(action)),
			logging.F("exit_code", out.ExitCode),
			logging.F("output", res.Output),
			logging.Err(err),
		)
		return res, &models.RemediationError{
			WanID:    wanID,
			Action:   action,
			ExitCode: out.ExitCode,
			Output:   res.Output,
			Err:      err,
		}
	}

	e.logger.Info("Remediation command output",
		logging.WAN(wanID),
		logging.F("action", string(action)),
		logging.F("output", res.Output),
		logging.F("duration_ms", res.Duration.Milliseconds()),
	)
	return res, nil
}

// Remediate 按动作类型分派到对应命令
func Remediate(ctx context.Context, r Remediator, wanID string, action models.Action) (RemediationResult, error) {
	switch action {
	case models.ActionRestart:
		return r.Restart(ctx, wanID)
	case models.ActionResetInterface:
		return r.RenewDHCP(ctx, wanID)
	default:
		return RemediationResult{WanID: wanID, Action: action}, fmt.Errorf("unknown remediation action %q", action)
	}
}
