package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v5"

	"yt-allinone/internal/discovery"
	"yt-allinone/internal/download"
	"yt-allinone/internal/model"
	"yt-allinone/internal/ytdlp"
)

// TaskDefaults fill fields a task request leaves empty.
type TaskDefaults struct {
	OutputDirectory string
	Quality         model.Quality
	Cookies         model.Browser
}

type Controller struct {
	manager    *download.Manager
	enumerator *discovery.Enumerator
	defaults   TaskDefaults
	logger     *slog.Logger
	events     *EventLog

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	busy bool
}

func NewController(manager *download.Manager, enumerator *discovery.Enumerator, defaults TaskDefaults, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := &Controller{
		manager:    manager,
		enumerator: enumerator,
		defaults:   defaults,
		logger:     logger,
		events:     NewEventLog(DefaultEventCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}
	manager.OnProgress(ctrl.events.Append)
	return ctrl
}

// Close cancels a running download and waits for it to stop.
func (ctrl *Controller) Close() {
	ctrl.cancel()
	ctrl.wg.Wait()
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func fail(c *echo.Context, status int, err error) error {
	body := errorBody{Error: err.Error()}
	var derr *model.DownloadError
	if errors.As(err, &derr) {
		body = errorBody{Error: derr.Message, Code: string(derr.Code), Hint: derr.Hint}
	}
	return c.JSON(status, body)
}

func (ctrl *Controller) Health(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "state": string(ctrl.manager.State())})
}

// ListEntries runs a dry run for ?url= with optional filter, limit and
// cookies parameters.
func (ctrl *Controller) ListEntries(c *echo.Context) error {
	in, ok := discovery.ParseInput(c.QueryParam("url"))
	if !ok {
		return fail(c, http.StatusBadRequest, errors.New("url must be a YouTube video, playlist, channel or handle"))
	}
	opts := discovery.DryRunOptions{Cookies: ctrl.defaults.Cookies}
	switch f := discovery.Filter(strings.ToLower(c.QueryParam("filter"))); f {
	case discovery.FilterNone, discovery.FilterShorts, discovery.FilterRegular:
		opts.Filter = f
	default:
		return fail(c, http.StatusBadRequest, errors.New("filter must be shorts or regular"))
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fail(c, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
		}
		opts.Limit = n
	}
	if raw := c.QueryParam("cookies"); raw != "" {
		b, err := model.ParseBrowser(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, err)
		}
		opts.Cookies = b
	}

	entries, err := ctrl.enumerator.DryRun(c.Request().Context(), in.CanonicalURL, opts)
	if err != nil {
		return fail(c, http.StatusBadGateway, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"url": in.CanonicalURL, "entries": entries})
}

type taskRequest struct {
	URL             string            `json:"url"`
	OutputDirectory string            `json:"output_directory"`
	Quality         string            `json:"quality"`
	OnlyAudio       bool              `json:"only_audio"`
	Cookies         string            `json:"cookies_from_browser"`
	ExtraOptions    map[string]string `json:"extra_options"`
}

func (ctrl *Controller) buildTask(req taskRequest) (model.Task, error) {
	if strings.TrimSpace(req.URL) == "" {
		return model.Task{}, errors.New("url is required")
	}
	quality := ctrl.defaults.Quality
	if req.Quality != "" {
		q, err := model.ParseQuality(req.Quality)
		if err != nil {
			return model.Task{}, err
		}
		quality = q
	}
	dir := req.OutputDirectory
	if dir == "" {
		dir = ctrl.defaults.OutputDirectory
	}
	task := model.NewTask(discovery.Canonicalize(req.URL), dir, quality)
	task.OnlyAudio = req.OnlyAudio
	task.ExtraOptions = req.ExtraOptions
	task.CookiesSource = ctrl.defaults.Cookies
	if req.Cookies != "" {
		b, err := model.ParseBrowser(req.Cookies)
		if err != nil {
			return model.Task{}, err
		}
		task.CookiesSource = b
	}
	return task, ctrl.manager.CheckTask(task)
}

// StartTask accepts a download and runs it in the background. Only one task
// runs at a time; a second request gets 409.
func (ctrl *Controller) StartTask(c *echo.Context) error {
	base, _, _ := strings.Cut(c.Request().Header.Get(echo.HeaderContentType), ";")
	if strings.TrimSpace(base) != echo.MIMEApplicationJSON {
		return fail(c, http.StatusUnsupportedMediaType, errors.New("request body must be application/json"))
	}
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, errors.New("invalid JSON body"))
	}
	task, err := ctrl.buildTask(req)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}

	ctrl.mu.Lock()
	if ctrl.busy || ctrl.manager.IsRunning() {
		ctrl.mu.Unlock()
		return fail(c, http.StatusConflict, download.ErrAlreadyRunning)
	}
	ctrl.busy = true
	ctrl.mu.Unlock()

	ctrl.wg.Add(1)
	go func() {
		defer ctrl.wg.Done()
		defer func() {
			ctrl.mu.Lock()
			ctrl.busy = false
			ctrl.mu.Unlock()
		}()
		if err := ctrl.manager.Start(ctrl.ctx, task); err != nil {
			ctrl.logger.Info("task ended", "task_id", task.ID, "error", err)
		}
	}()
	return c.JSON(http.StatusAccepted, task)
}

func (ctrl *Controller) CurrentTask(c *echo.Context) error {
	body := map[string]any{"state": ctrl.manager.State()}
	if task, ok := ctrl.manager.CurrentTask(); ok {
		body["task"] = task
	}
	return c.JSON(http.StatusOK, body)
}

// ControlTask handles pause, resume and cancel. cancel accepts
// ?delete_partial=true.
func (ctrl *Controller) ControlTask(c *echo.Context) error {
	var err error
	switch c.Param("action") {
	case "pause":
		err = ctrl.manager.Pause()
	case "resume":
		err = ctrl.manager.Resume()
	case "cancel":
		deletePartial, _ := strconv.ParseBool(c.QueryParam("delete_partial"))
		err = ctrl.manager.Cancel(deletePartial)
	default:
		return fail(c, http.StatusNotFound, errors.New("unknown action"))
	}
	if errors.Is(err, ytdlp.ErrSuspendUnsupported) {
		return fail(c, http.StatusNotImplemented, err)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"state": ctrl.manager.State()})
}

// Events returns events with a sequence number greater than ?after=.
func (ctrl *Controller) Events(c *echo.Context) error {
	var after int64
	if raw := c.QueryParam("after"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return fail(c, http.StatusBadRequest, errors.New("after must be a non-negative integer"))
		}
		after = n
	}
	records, last := ctrl.events.Since(after)
	return c.JSON(http.StatusOK, map[string]any{"events": records, "last": last})
}
