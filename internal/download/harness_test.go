package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"yt-allinone/internal/model"
	"yt-allinone/internal/ytdlp"
)

type fakeProc struct {
	done chan struct{}
	once sync.Once
	err  error

	mu         sync.Mutex
	suspended  int
	resumed    int
	terminated int
	killed     int
	ignoreTerm bool
}

func newFakeProc() *fakeProc {
	return &fakeProc{done: make(chan struct{})}
}

func (p *fakeProc) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *fakeProc) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended++
	return nil
}

func (p *fakeProc) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumed++
	return nil
}

func (p *fakeProc) Terminate() error {
	p.mu.Lock()
	p.terminated++
	ignore := p.ignoreTerm
	p.mu.Unlock()
	if !ignore {
		p.finish(errors.New("signal: terminated"))
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.mu.Lock()
	p.killed++
	p.mu.Unlock()
	p.finish(errors.New("signal: killed"))
	return nil
}

func (p *fakeProc) Wait() error {
	<-p.done
	return p.err
}

func (p *fakeProc) Done() <-chan struct{} { return p.done }

func (p *fakeProc) counts() (suspended, resumed, terminated, killed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended, p.resumed, p.terminated, p.killed
}

// fakeEngine runs script for each Start call on its own goroutine. The
// script drives progress and decides how the process ends.
type fakeEngine struct {
	mu     sync.Mutex
	calls  []ytdlp.Options
	procs  []*fakeProc
	script func(call int, opts ytdlp.Options, emit func(model.Progress), proc *fakeProc)
	setup  func(proc *fakeProc)
}

func (e *fakeEngine) Start(_ context.Context, _ string, opts ytdlp.Options, onProgress func(model.Progress)) (Process, error) {
	proc := newFakeProc()
	if e.setup != nil {
		e.setup(proc)
	}
	e.mu.Lock()
	call := len(e.calls)
	e.calls = append(e.calls, opts)
	e.procs = append(e.procs, proc)
	e.mu.Unlock()
	go e.script(call, opts, onProgress, proc)
	return proc, nil
}

func (e *fakeEngine) lastProc() *fakeProc {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.procs) == 0 {
		return nil
	}
	return e.procs[len(e.procs)-1]
}

func (e *fakeEngine) callOptions() []ytdlp.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ytdlp.Options(nil), e.calls...)
}

// blockUntilSignalled leaves the process running until Terminate or Kill.
func blockUntilSignalled(_ int, _ ytdlp.Options, _ func(model.Progress), _ *fakeProc) {}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) observe(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) kinds() []model.EventKind {
	out := []model.EventKind{}
	for _, ev := range r.snapshot() {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind model.EventKind) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) terminal() []model.Event {
	var out []model.Event
	for _, ev := range r.snapshot() {
		if ev.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testTask(t *testing.T) model.Task {
	t.Helper()
	return model.NewTask("https://www.youtube.com/watch?v=abcdefghijk", t.TempDir(), model.QualityBest)
}

// startAsync runs Start on a goroutine and returns a channel with its result.
func startAsync(m *Manager, ctx context.Context, task model.Task) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- m.Start(ctx, task)
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(10 * time.Second):
		t.Fatalf("Start did not return")
		return nil
	}
}

// processStarted reports once the manager holds the engine process, so
// controls act on it rather than on a task still being launched.
func processStarted(m *Manager) func() bool {
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.active != nil && m.active.proc != nil
	}
}
