//go:build windows

package ytdlp

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func suspendProcess(cmd *exec.Cmd) error { return ErrSuspendUnsupported }
func resumeProcess(cmd *exec.Cmd) error  { return ErrSuspendUnsupported }

func terminateProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func killProcess(cmd *exec.Cmd) error { return terminateProcess(cmd) }
