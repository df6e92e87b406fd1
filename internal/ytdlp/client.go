package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"yt-allinone/internal/model"
)

const DefaultBinary = "yt-dlp"

type Client struct {
	Binary string
	Logger *slog.Logger
}

func NewClient(binary string, logger *slog.Logger) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{Binary: binary, Logger: logger}
}

type ListOptions struct {
	// Flat lists container children without resolving each one.
	Flat               bool
	CookiesFromBrowser string
	CookiesPath        string
	Proxy              string
}

type DependencyReport struct {
	YTDLPFound   bool   `json:"yt_dlp_found"`
	YTDLPPath    string `json:"yt_dlp_path,omitempty"`
	FFmpegFound  bool   `json:"ffmpeg_found"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	FFprobeFound bool   `json:"ffprobe_found"`
	FFprobePath  string `json:"ffprobe_path,omitempty"`
}

func DependencyStatus(ytdlpBin, ffmpegBin, ffprobeBin string) DependencyReport {
	report := DependencyReport{}
	report.YTDLPPath, report.YTDLPFound = lookPath(ytdlpBin, DefaultBinary)
	report.FFmpegPath, report.FFmpegFound = lookPath(ffmpegBin, "ffmpeg")
	report.FFprobePath, report.FFprobeFound = lookPath(ffprobeBin, "ffprobe")
	return report
}

func lookPath(bin, fallback string) (string, bool) {
	if strings.TrimSpace(bin) == "" {
		bin = fallback
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", false
	}
	return path, true
}

// ListJSON runs the engine in listing-only mode and returns its JSON document.
func (c *Client) ListJSON(ctx context.Context, sourceURL string, opts ListOptions) ([]byte, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}

	args := []string{"-J"}
	if opts.Flat {
		args = append(args, "--flat-playlist")
	} else {
		args = append(args, "--no-playlist", "--skip-download")
	}
	if strings.TrimSpace(opts.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(opts.CookiesPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	if strings.TrimSpace(opts.CookiesFromBrowser) != "" {
		args = append(args, "--cookies-from-browser", opts.CookiesFromBrowser)
	}
	if strings.TrimSpace(opts.Proxy) != "" {
		args = append(args, "--proxy", strings.TrimSpace(opts.Proxy))
	}
	args = append(args, sourceURL)

	c.Logger.Debug("yt-dlp list", "url", sourceURL, "flat", opts.Flat)
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &EngineError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

// Start launches a download and returns immediately. Progress callbacks run
// on the stdout reader goroutine, in the order the engine reports them.
func (c *Client) Start(ctx context.Context, videoURL string, opts Options, onProgress func(model.Progress)) (*Process, error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, fmt.Errorf("video URL is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args, err := opts.Args()
	if err != nil {
		return nil, err
	}
	args = append(args, videoURL)
	c.Logger.Info("yt-dlp start", "url", videoURL, "args", strings.Join(args, " "))
	return startProcess(c.Binary, args, onProgress, c.Logger)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.Binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
