package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"yt-allinone/internal/classify"
	"yt-allinone/internal/model"
	"yt-allinone/internal/ytdlp"
)

var (
	ErrAlreadyRunning = errors.New("a download is already running")
	ErrCancelled      = errors.New("download cancelled")
)

const (
	DefaultGracePeriod = 5 * time.Second
	defaultKillWait    = 5 * time.Second
	cookieRetryNote    = "retried without cookies"
)

// Process is a running engine invocation.
type Process interface {
	Suspend() error
	Resume() error
	Terminate() error
	Kill() error
	Wait() error
	Done() <-chan struct{}
}

type Engine interface {
	Start(ctx context.Context, videoURL string, opts ytdlp.Options, onProgress func(model.Progress)) (Process, error)
}

type clientEngine struct {
	client *ytdlp.Client
}

// NewEngine adapts a yt-dlp client to the manager's Engine interface.
func NewEngine(client *ytdlp.Client) Engine {
	return clientEngine{client: client}
}

func (e clientEngine) Start(ctx context.Context, videoURL string, opts ytdlp.Options, onProgress func(model.Progress)) (Process, error) {
	proc, err := e.client.Start(ctx, videoURL, opts, onProgress)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

type Observer func(model.Event)

type Options struct {
	Logger      *slog.Logger
	Classifier  *classify.Classifier
	GracePeriod time.Duration
	KillWait    time.Duration
	// applied to every task
	CookiesPath string
	Proxy       string
	Fragments   int
}

type run struct {
	task      model.Task
	proc      Process
	cancelled bool
	lastBytes map[string]int64
}

// Manager runs one download at a time and reports its progress to
// observers. All methods are safe for concurrent use.
type Manager struct {
	engine     Engine
	classifier *classify.Classifier
	logger     *slog.Logger
	grace      time.Duration
	killWait   time.Duration
	defaults   Options

	obsMu     sync.RWMutex
	observers []*observerEntry

	mu     sync.Mutex
	state  model.ManagerState
	active *run
}

type observerEntry struct {
	fn Observer
}

func NewManager(engine Engine, opts Options) *Manager {
	m := &Manager{
		engine:     engine,
		classifier: opts.Classifier,
		logger:     opts.Logger,
		grace:      opts.GracePeriod,
		killWait:   opts.KillWait,
		defaults:   opts,
		state:      model.StateIdle,
	}
	if m.classifier == nil {
		m.classifier = classify.New("en")
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.grace <= 0 {
		m.grace = DefaultGracePeriod
	}
	if m.killWait <= 0 {
		m.killWait = defaultKillWait
	}
	return m
}

// OnProgress registers an observer. Observers are called in registration
// order; the returned func unregisters it.
func (m *Manager) OnProgress(obs Observer) (remove func()) {
	entry := &observerEntry{fn: obs}
	m.obsMu.Lock()
	m.observers = append(m.observers, entry)
	m.obsMu.Unlock()
	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		for i, e := range m.observers {
			if e == entry {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) State() model.ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentTask returns the active task, if any.
func (m *Manager) CurrentTask() (model.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return model.Task{}, false
	}
	return m.active.task, true
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.active
	if r == nil {
		return false
	}
	if r.proc == nil {
		return true
	}
	select {
	case <-r.proc.Done():
		return false
	default:
		return true
	}
}

// Start runs task to completion. It returns nil after a done event,
// ErrCancelled after Cancel or ctx cancellation, or the *model.DownloadError
// that was reported in the error event.
func (m *Manager) Start(ctx context.Context, task model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	opts, err := m.buildOptions(task)
	if err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if err := model.Transition(&m.state, model.StateRunning); err != nil {
		m.mu.Unlock()
		return err
	}
	r := &run{task: task, lastBytes: map[string]int64{}}
	m.active = r
	m.mu.Unlock()
	defer m.finish(r)

	stop := context.AfterFunc(ctx, func() {
		_ = m.cancelRun(r, false)
	})
	defer stop()

	log := m.logger.With("task_id", task.ID)
	log.Info("download start", "url", task.URL, "quality", string(task.Quality), "only_audio", task.OnlyAudio, "cookies", string(task.CookiesSource))

	err = m.attempt(ctx, r, opts)
	if err == nil {
		log.Info("download done")
		m.emitDone(r, "")
		return nil
	}
	if m.stopped(ctx, r) {
		log.Info("download cancelled")
		return ErrCancelled
	}

	raw := diagnostic(err)
	if opts.CookiesFromBrowser != "" && classify.IsCookieCopyFailure(raw) {
		log.Warn("cookie database unavailable, retrying without cookies", "browser", opts.CookiesFromBrowser)
		opts.CookiesFromBrowser = ""
		err = m.attempt(ctx, r, opts)
		if err == nil {
			log.Info("download done", "note", cookieRetryNote)
			m.emitDone(r, cookieRetryNote)
			return nil
		}
		if m.stopped(ctx, r) {
			log.Info("download cancelled")
			return ErrCancelled
		}
		derr := m.classifier.CookieFallbackFailure(diagnostic(err))
		log.Error("download failed after cookie fallback", "code", string(derr.Code), "message", derr.Message)
		m.emitError(r, derr)
		return derr
	}

	derr := m.classifier.Classify(raw)
	log.Error("download failed", "code", string(derr.Code), "message", derr.Message)
	m.emitError(r, derr)
	return derr
}

func (m *Manager) attempt(ctx context.Context, r *run, opts ytdlp.Options) error {
	if m.wasCancelled(r) {
		return ErrCancelled
	}
	proc, err := m.engine.Start(ctx, r.task.URL, opts, func(p model.Progress) {
		m.onProgress(r, p)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	if r.cancelled {
		m.mu.Unlock()
		_ = proc.Kill()
		_ = proc.Wait()
		return ErrCancelled
	}
	r.proc = proc
	m.mu.Unlock()

	err = proc.Wait()

	m.mu.Lock()
	if r.proc == proc {
		r.proc = nil
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) finish(r *run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != r {
		return
	}
	m.active = nil
	_ = model.Transition(&m.state, model.StateIdle)
}

func (m *Manager) wasCancelled(r *run) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return r.cancelled
}

func (m *Manager) stopped(ctx context.Context, r *run) bool {
	return m.wasCancelled(r) || ctx.Err() != nil
}

func (m *Manager) onProgress(r *run, p model.Progress) {
	m.mu.Lock()
	if m.active != r || r.cancelled {
		m.mu.Unlock()
		return
	}
	// video and audio streams are separate files, each counting from zero
	if p.TotalBytes > 0 {
		if last, seen := r.lastBytes[p.Filename]; seen && p.DownloadedBytes < last {
			m.mu.Unlock()
			return
		}
		r.lastBytes[p.Filename] = p.DownloadedBytes
	}
	m.mu.Unlock()

	ev := model.NewEvent(model.EventProgress, r.task.ID)
	ev.Progress = &p
	m.emit(ev)
}

// Pause suspends the engine. It does nothing unless a download is running.
func (m *Manager) Pause() error {
	m.mu.Lock()
	r := m.active
	if r == nil || r.proc == nil || r.cancelled || m.state != model.StateRunning {
		m.mu.Unlock()
		return nil
	}
	if err := r.proc.Suspend(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("pause download: %w", err)
	}
	_ = model.Transition(&m.state, model.StatePaused)
	m.mu.Unlock()

	m.logger.Info("download paused", "task_id", r.task.ID)
	m.emit(model.NewEvent(model.EventPaused, r.task.ID))
	return nil
}

// Resume continues a paused download. It does nothing unless paused.
func (m *Manager) Resume() error {
	m.mu.Lock()
	r := m.active
	if r == nil || r.proc == nil || r.cancelled || m.state != model.StatePaused {
		m.mu.Unlock()
		return nil
	}
	if err := r.proc.Resume(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("resume download: %w", err)
	}
	_ = model.Transition(&m.state, model.StateRunning)
	m.mu.Unlock()

	m.logger.Info("download resumed", "task_id", r.task.ID)
	m.emit(model.NewEvent(model.EventResumed, r.task.ID))
	return nil
}

// Cancel stops the active download. The engine gets the grace period to exit
// after a termination request before it is killed. The manager is idle when
// Cancel returns, whatever happened to the process.
func (m *Manager) Cancel(deletePartial bool) error {
	m.mu.Lock()
	r := m.active
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return m.cancelRun(r, deletePartial)
}

func (m *Manager) cancelRun(r *run, deletePartial bool) error {
	m.mu.Lock()
	if m.active != r || r.cancelled {
		m.mu.Unlock()
		return nil
	}
	r.cancelled = true
	proc := r.proc
	paused := m.state == model.StatePaused
	m.mu.Unlock()

	log := m.logger.With("task_id", r.task.ID)
	log.Info("download cancelling", "delete_partial", deletePartial)
	m.emit(model.NewEvent(model.EventCancelling, r.task.ID))

	defer func() {
		m.finish(r)
		if deletePartial {
			removed, err := removePartials(r.task.OutputDirectory)
			if err != nil {
				log.Warn("remove partial files", "dir", r.task.OutputDirectory, "err", err)
			}
			if len(removed) > 0 {
				log.Info("removed partial files", "files", removed)
			}
		}
	}()

	if proc == nil {
		return nil
	}
	if paused {
		// a stopped process cannot act on the termination request
		_ = proc.Resume()
	}
	if err := proc.Terminate(); err != nil {
		log.Warn("terminate engine", "err", err)
	}
	select {
	case <-proc.Done():
		return nil
	case <-time.After(m.grace):
	}

	log.Warn("engine ignored termination, killing", "grace", m.grace.String())
	if err := proc.Kill(); err != nil {
		log.Warn("kill engine", "err", err)
	}
	select {
	case <-proc.Done():
		return nil
	case <-time.After(m.killWait):
		return fmt.Errorf("download engine did not exit within %s after kill", m.killWait)
	}
}

// The terminal emitters clear the active run first so an observer may start
// the next task as soon as it sees done or error.
func (m *Manager) emitDone(r *run, note string) {
	m.finish(r)
	ev := model.NewEvent(model.EventDone, r.task.ID)
	ev.Note = note
	m.emit(ev)
}

func (m *Manager) emitError(r *run, derr *model.DownloadError) {
	m.finish(r)
	ev := model.NewEvent(model.EventError, r.task.ID)
	ev.Error = derr
	m.emit(ev)
}

func (m *Manager) emit(ev model.Event) {
	m.obsMu.RLock()
	observers := make([]Observer, 0, len(m.observers))
	for _, e := range m.observers {
		observers = append(observers, e.fn)
	}
	m.obsMu.RUnlock()

	for _, obs := range observers {
		m.deliver(obs, ev)
	}
}

func (m *Manager) deliver(obs Observer, ev model.Event) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("progress observer panicked", "kind", string(ev.Kind), "task_id", ev.TaskID, "panic", fmt.Sprint(p))
		}
	}()
	obs(ev)
}

func diagnostic(err error) string {
	var engineErr *ytdlp.EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Diagnostic()
	}
	return err.Error()
}
