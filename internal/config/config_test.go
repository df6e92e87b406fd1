package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	home := isolateHome(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("expected no config file, got %s", cfg.Path)
	}
	if cfg.Download.OutDir != filepath.Join(home, "Downloads") {
		t.Fatalf("unexpected out dir %s", cfg.Download.OutDir)
	}
	if cfg.Download.Quality != "best" || cfg.Locale != "en" || cfg.Server.Addr != DefaultAddr {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CancelGracePeriod() != 5*time.Second {
		t.Fatalf("unexpected grace %v", cfg.CancelGracePeriod())
	}
	if !cfg.Log.IncludeStderr || cfg.Engine.YTDLPPath != "yt-dlp" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	logPath := cfg.LogPath(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	if !strings.HasSuffix(logPath, filepath.Join("logs", "yt-allinone_2026-03-04.log")) {
		t.Fatalf("unexpected log path %s", logPath)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	isolateHome(t)
	path := writeConfig(t, `
download:
  out_dir: /data/videos
  quality: 720P
  cookies_from_browser: Firefox
  cancel_grace: 2s
locale: vi-VN
log:
  level: debug
  include_stderr: true
`)
	t.Setenv("YTAIO_DOWNLOAD_QUALITY", "480p")
	t.Setenv("YTAIO_LOG_INCLUDE_STDERR", "false")
	t.Setenv("YTAIO_SERVER_ADDR", "0.0.0.0:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("expected path %s, got %s", path, cfg.Path)
	}
	if cfg.Download.OutDir != "/data/videos" {
		t.Fatalf("unexpected out dir %s", cfg.Download.OutDir)
	}
	if cfg.Quality() != "480p" {
		t.Fatalf("env override not applied: %s", cfg.Download.Quality)
	}
	if cfg.Browser() != "firefox" {
		t.Fatalf("browser not normalized: %s", cfg.Browser())
	}
	if cfg.CancelGracePeriod() != 2*time.Second {
		t.Fatalf("unexpected grace %v", cfg.CancelGracePeriod())
	}
	if cfg.Locale != "vi" || cfg.Log.Level != "debug" || cfg.Log.IncludeStderr {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr)
	}
}

func TestLoad_Rejects(t *testing.T) {
	isolateHome(t)
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "quality", body: "download:\n  quality: 4k\n", want: "download.quality"},
		{name: "browser", body: "download:\n  cookies_from_browser: netscape\n", want: "cookies_from_browser"},
		{name: "grace", body: "download:\n  cancel_grace: soon\n", want: "cancel_grace"},
		{name: "level", body: "log:\n  level: loud\n", want: "log.level"},
		{name: "yaml", body: "download: [\n", want: "error reading config file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolateHome(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected missing explicit config to fail")
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Fatalf("WriteDefault force: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "cancel_grace: 5s") {
		t.Fatalf("expected readable grace in yaml:\n%s", raw)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if cfg.Download.Quality != "best" || cfg.Server.Addr != DefaultAddr {
		t.Fatalf("unexpected round trip: %+v", cfg)
	}
}
