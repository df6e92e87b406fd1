//go:build unix

package ytdlp

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// The engine runs in its own process group so signals reach the ffmpeg
// children it spawns for merging and extraction.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func suspendProcess(cmd *exec.Cmd) error   { return signalGroup(cmd, unix.SIGSTOP) }
func resumeProcess(cmd *exec.Cmd) error    { return signalGroup(cmd, unix.SIGCONT) }
func terminateProcess(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGTERM) }
func killProcess(cmd *exec.Cmd) error      { return signalGroup(cmd, unix.SIGKILL) }
