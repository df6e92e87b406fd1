package cli

import (
	"io"
	"log/slog"
	"time"

	"yt-allinone/internal/audio"
	"yt-allinone/internal/classify"
	"yt-allinone/internal/config"
	"yt-allinone/internal/discovery"
	"yt-allinone/internal/download"
	"yt-allinone/internal/logging"
	"yt-allinone/internal/ytdlp"
)

// app carries what every command needs once the root pre-run has loaded
// config and opened the log.
type app struct {
	configPath string
	logLevel   string
	locale     string

	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
	classifier *classify.Classifier

	stdout io.Writer
	stderr io.Writer
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.locale != "" {
		cfg.Locale = classify.SupportedLocale(a.locale)
	}
	a.cfg = cfg

	logger, closer, err := logging.New(logging.Options{
		Path:          cfg.LogPath(time.Now()),
		Level:         logging.ParseLevel(cfg.Log.Level),
		IncludeStderr: cfg.Log.IncludeStderr,
		Stderr:        a.stderr,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.logCloser = closer
	a.classifier = classify.New(cfg.Locale)
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *app) client() *ytdlp.Client {
	return ytdlp.NewClient(a.cfg.Engine.YTDLPPath, a.logger)
}

func (a *app) enumerator() *discovery.Enumerator {
	en := discovery.NewEnumerator(a.client(), a.classifier, a.logger)
	en.CookiesPath = a.cfg.Download.CookiesFile
	en.Proxy = a.cfg.Download.Proxy
	return en
}

func (a *app) manager() *download.Manager {
	return download.NewManager(download.NewEngine(a.client()), download.Options{
		Logger:      a.logger,
		Classifier:  a.classifier,
		GracePeriod: a.cfg.CancelGracePeriod(),
		CookiesPath: a.cfg.Download.CookiesFile,
		Proxy:       a.cfg.Download.Proxy,
	})
}

func (a *app) transcoder() *audio.Transcoder {
	return audio.NewTranscoder(a.cfg.Engine.FFmpegPath, a.cfg.Engine.FFprobePath, a.classifier, a.logger)
}
