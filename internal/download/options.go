package download

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"yt-allinone/internal/model"
	"yt-allinone/internal/ytdlp"
)

const (
	outputTemplate = "%(title)s.%(ext)s"
	audioFormat    = "bestaudio/best"
	audioCodec     = "mp3"
	audioBitrate   = "192K"
)

// Task.ExtraOptions keys interpreted by the manager. Any other key is passed
// to the engine as a long option after validation.
const (
	OptSubtitlesOnly = "subtitles_only"
	OptSubLangs      = "sub_langs"
	OptUserAgent     = "user_agent"
	OptReferer       = "referer"
	OptProxy         = "proxy"
	OptSafeMode      = "safe_mode"
)

// CheckTask reports whether Start would accept task, without running it.
func (m *Manager) CheckTask(task model.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	_, err := m.buildOptions(task)
	return err
}

func (m *Manager) buildOptions(task model.Task) (ytdlp.Options, error) {
	quality := task.Quality
	if quality == "" {
		quality = model.QualityBest
	}
	format, err := model.FormatSelector(quality)
	if err != nil {
		return ytdlp.Options{}, err
	}

	opts := ytdlp.Options{
		Format:             format,
		OutputTemplate:     filepath.Join(task.OutputDirectory, outputTemplate),
		CookiesFromBrowser: string(task.CookiesSource),
		CookiesPath:        m.defaults.CookiesPath,
		Proxy:              m.defaults.Proxy,
		Fragments:          m.defaults.Fragments,
		Retry: ytdlp.RetryPolicy{
			Retries:           10,
			FragmentRetries:   10,
			FileAccessRetries: 10,
			RetrySleep:        "http:exp=1:10",
		},
		Continue:         true,
		NoOverwrites:     true,
		WindowsFilenames: true,
		TrimFilenames:    200,
		GeoBypass:        true,
	}
	if task.OnlyAudio {
		opts.Format = audioFormat
		opts.ExtractAudio = &ytdlp.AudioExtraction{Codec: audioCodec, Quality: audioBitrate}
	}

	extra := task.ExtraOptions
	subsOnly, err := boolOption(extra, OptSubtitlesOnly)
	if err != nil {
		return ytdlp.Options{}, err
	}
	langs, hasLangs := extra[OptSubLangs]
	switch {
	case subsOnly:
		opts.Subtitles = &ytdlp.SubtitleOptions{SkipMedia: true, Langs: langs, Convert: "srt"}
	case hasLangs:
		opts.Subtitles = &ytdlp.SubtitleOptions{Langs: langs}
	}

	headers := map[string]string{}
	if ua := strings.TrimSpace(extra[OptUserAgent]); ua != "" {
		headers["User-Agent"] = ua
	}
	if ref := strings.TrimSpace(extra[OptReferer]); ref != "" {
		headers["Referer"] = ref
	}
	if len(headers) > 0 {
		opts.Headers = headers
	}
	if proxy := strings.TrimSpace(extra[OptProxy]); proxy != "" {
		opts.Proxy = proxy
	}

	safe, err := boolOption(extra, OptSafeMode)
	if err != nil {
		return ytdlp.Options{}, err
	}
	if safe {
		opts.Retry.Retries = 20
		opts.Retry.FragmentRetries = 20
		opts.Fragments = 1
		opts.Throttle = ytdlp.Throttle{SleepRequests: 1, SleepInterval: 2, MaxSleepInterval: 5}
	}

	passthrough := map[string]string{}
	for key, value := range extra {
		switch key {
		case OptSubtitlesOnly, OptSubLangs, OptUserAgent, OptReferer, OptProxy, OptSafeMode:
			continue
		}
		passthrough[key] = value
	}
	if len(passthrough) > 0 {
		opts.Extra = passthrough
	}

	if err := opts.Validate(); err != nil {
		return ytdlp.Options{}, err
	}
	return opts, nil
}

func boolOption(extra map[string]string, key string) (bool, error) {
	raw, ok := extra[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("option %s: expected true or false, got %q", key, raw)
	}
	return v, nil
}
