package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yt-allinone/internal/model"
	"yt-allinone/internal/runstore"
)

const (
	DefaultThumbnailBase = "https://i.ytimg.com/vi"
	thumbnailTimeout     = 10 * time.Second
)

// Fetcher downloads video thumbnails. The zero value uses the public image
// host and the system temp directory.
type Fetcher struct {
	Client  *http.Client
	BaseURL string
	TempDir string
	Logger  *slog.Logger
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: thumbnailTimeout}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ThumbnailURLs lists the fixed-size renditions tried before any candidate,
// largest first.
func (f *Fetcher) ThumbnailURLs(id string) []string {
	base := strings.TrimRight(f.BaseURL, "/")
	if base == "" {
		base = DefaultThumbnailBase
	}
	base += "/" + id
	return []string{
		base + "/maxresdefault.jpg",
		base + "/sddefault.jpg",
		base + "/hqdefault.jpg",
	}
}

// DownloadBestThumbnail saves the first image that answers 200 with a
// non-empty body to a temp file and returns its path. It returns false when
// every attempt fails.
func (f *Fetcher) DownloadBestThumbnail(ctx context.Context, id string, candidates []model.Thumbnail) (string, bool) {
	var urls []string
	if fileID(id) {
		urls = f.ThumbnailURLs(id)
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.URL) != "" {
			urls = append(urls, c.URL)
		}
	}
	for _, u := range urls {
		data, err := f.fetch(ctx, u)
		if err != nil {
			f.logger().Debug("thumbnail attempt failed", "video_id", id, "url", u, "error", err)
			continue
		}
		path, err := f.writeTemp(id, data)
		if err != nil {
			f.logger().Warn("thumbnail write failed", "video_id", id, "error", err)
			return "", false
		}
		return path, true
	}
	return "", false
}

// SaveThumbnail downloads the best thumbnail for e into dir as <id>.jpg.
func (f *Fetcher) SaveThumbnail(ctx context.Context, e model.Entry, dir string) (string, error) {
	if !fileID(e.ID) {
		return "", fmt.Errorf("video id %q cannot be used as a file name", e.ID)
	}
	tmp, ok := f.DownloadBestThumbnail(ctx, e.ID, e.Thumbnails)
	if !ok {
		return "", fmt.Errorf("no thumbnail available for %s", e.ID)
	}
	defer os.Remove(tmp)
	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("read thumbnail: %w", err)
	}
	dest := filepath.Join(dir, e.ID+".jpg")
	if err := runstore.WriteBytes(dest, data); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *Fetcher) fetch(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return data, nil
}

func (f *Fetcher) writeTemp(id string, data []byte) (string, error) {
	prefix := "thumb"
	if fileID(id) {
		prefix = id
	}
	tmp, err := os.CreateTemp(f.TempDir, prefix+"_*.jpg")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// fileID reports whether id names a single file without leaving its
// directory. Non-YouTube extractors may return arbitrary ids.
func fileID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return false
	}
	return filepath.Base(id) == id
}
