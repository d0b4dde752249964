//go:build !unix

package monitor

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
