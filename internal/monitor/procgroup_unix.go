//go:build unix

package monitor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup 让命令在独立进程组中运行，取消时杀死整个组
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
