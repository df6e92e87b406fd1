package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Entry is one downloadable item discovered from a source URL.
type Entry struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Title      string          `json:"title,omitempty"`
	Duration   *float64        `json:"duration,omitempty"`
	Thumbnails []Thumbnail     `json:"thumbnails,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Task is a single download request handed to the manager.
type Task struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	OutputDirectory string            `json:"output_directory"`
	Quality         Quality           `json:"quality"`
	OnlyAudio       bool              `json:"only_audio"`
	CookiesSource   Browser           `json:"cookies_source,omitempty"`
	ExtraOptions    map[string]string `json:"extra_options,omitempty"`
}

func NewTask(url, outputDir string, quality Quality) Task {
	return Task{
		ID:              uuid.NewString(),
		URL:             url,
		OutputDirectory: outputDir,
		Quality:         quality,
	}
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("task url is required")
	}
	if strings.TrimSpace(t.OutputDirectory) == "" {
		return fmt.Errorf("task output directory is required")
	}
	if t.Quality != "" {
		if _, err := FormatSelector(t.Quality); err != nil {
			return err
		}
	}
	if t.CookiesSource != "" && !t.CookiesSource.Valid() {
		return fmt.Errorf("unsupported cookies browser %q", t.CookiesSource)
	}
	return nil
}

type Quality string

const (
	QualityBest  Quality = "best"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
)

func ParseQuality(raw string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(raw)))
	if q == "" {
		return QualityBest, nil
	}
	if _, err := FormatSelector(q); err != nil {
		return "", err
	}
	return q, nil
}

// FormatSelector maps a quality to the engine's format selection expression.
func FormatSelector(q Quality) (string, error) {
	switch Quality(strings.ToLower(strings.TrimSpace(string(q)))) {
	case QualityBest:
		return "bestvideo*+bestaudio/best", nil
	case Quality1080p:
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]", nil
	case Quality720p:
		return "bestvideo[height<=720]+bestaudio/best[height<=720]", nil
	case Quality480p:
		return "bestvideo[height<=480]+bestaudio/best[height<=480]", nil
	default:
		return "", fmt.Errorf("unsupported quality %q (expected best, 1080p, 720p, or 480p)", string(q))
	}
}

type Browser string

var supportedBrowsers = []Browser{"chrome", "chromium", "edge", "firefox", "brave", "opera", "safari", "vivaldi"}

func SupportedBrowsers() []Browser {
	return append([]Browser(nil), supportedBrowsers...)
}

// BrowserList is the comma-separated form of SupportedBrowsers for help and
// error text.
func BrowserList() string {
	names := make([]string, 0, len(supportedBrowsers))
	for _, b := range SupportedBrowsers() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

func ParseBrowser(raw string) (Browser, error) {
	b := Browser(strings.ToLower(strings.TrimSpace(raw)))
	if b == "" {
		return "", nil
	}
	if !b.Valid() {
		return "", fmt.Errorf("unsupported cookies browser %q (expected one of %s)", raw, BrowserList())
	}
	return b, nil
}

func (b Browser) Valid() bool {
	for _, s := range supportedBrowsers {
		if s == b {
			return true
		}
	}
	return false
}
