package ytdlp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"yt-allinone/internal/model"
)

var ErrSuspendUnsupported = errors.New("suspending downloads is not supported on this platform")

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// EngineError is returned when yt-dlp exits unsuccessfully.
type EngineError struct {
	Err    error
	Stderr string
	Stdout string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("yt-dlp failed: %v: %s", e.Err, e.Diagnostic())
}

func (e *EngineError) Unwrap() error { return e.Err }

// Diagnostic returns the engine's own explanation: the last ERROR line when
// there is one, otherwise the captured stderr tail.
func (e *EngineError) Diagnostic() string {
	lines := strings.Split(e.Stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.Contains(line, "ERROR:") {
			return line
		}
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		return s
	}
	return e.Err.Error()
}

// Process is a running download. Done is closed once the engine has exited
// and its output has been fully consumed.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	mu      sync.Mutex
	outTail strings.Builder
	errTail strings.Builder
}

func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Wait() error {
	<-p.done
	return p.err
}

func (p *Process) Suspend() error   { return suspendProcess(p.cmd) }
func (p *Process) Resume() error    { return resumeProcess(p.cmd) }
func (p *Process) Terminate() error { return terminateProcess(p.cmd) }
func (p *Process) Kill() error      { return killProcess(p.cmd) }

func startProcess(binary string, args []string, onProgress func(model.Progress), logger *slog.Logger) (*Process, error) {
	cmd := exec.Command(binary, args...)
	setProcessGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start yt-dlp: %w", err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			if stream == StreamStdout {
				if prog, ok := ParseProgressLine(line); ok {
					if onProgress != nil {
						onProgress(prog)
					}
					continue
				}
			}
			p.mu.Lock()
			appendTail(&p.outTail, &p.errTail, stream, line)
			p.mu.Unlock()
			if logger != nil {
				logger.Debug("yt-dlp output", "stream", string(stream), "line", line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)

	go func() {
		wg.Wait()
		if err := cmd.Wait(); err != nil {
			p.mu.Lock()
			p.err = &EngineError{
				Err:    err,
				Stderr: strings.TrimSpace(p.errTail.String()),
				Stdout: strings.TrimSpace(p.outTail.String()),
			}
			p.mu.Unlock()
		}
		close(p.done)
	}()
	return p, nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

const maxTail = 8192

// appendTail keeps the most recent output; engine errors are printed last.
func appendTail(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	b.WriteString(line)
	b.WriteString("\n")
	if b.Len() <= maxTail {
		return
	}
	kept := b.String()
	kept = kept[len(kept)-maxTail:]
	if i := strings.IndexByte(kept, '\n'); i >= 0 && i < len(kept)-1 {
		kept = kept[i+1:]
	}
	b.Reset()
	b.WriteString(kept)
}
