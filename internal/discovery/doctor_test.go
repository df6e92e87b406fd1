package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fixedVersion string

func (v fixedVersion) Version(context.Context) (string, error) { return string(v), nil }

func installFakeTools(t *testing.T, names ...string) string {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatalf("mkdir fake bin: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(fakeBin, name), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}
	return fakeBin
}

func TestDoctor_AllDependenciesPresent(t *testing.T) {
	fakeBin := installFakeTools(t, "yt-dlp", "ffmpeg", "ffprobe")
	t.Setenv("PATH", fakeBin)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res, err := Doctor(context.Background(), DoctorOptions{
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Engine:    fixedVersion("2025.06.30"),
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Doctor: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected ok result: %+v", res)
	}
	var stale *DoctorCheck
	for i := range res.Checks {
		if res.Checks[i].Name == "engine:version" {
			stale = &res.Checks[i]
		}
	}
	if stale == nil || stale.OK || !strings.Contains(stale.Message, "days old") {
		t.Fatalf("expected stale engine warning, got %+v", stale)
	}
}

func TestDoctor_MissingFFprobeFails(t *testing.T) {
	fakeBin := installFakeTools(t, "yt-dlp", "ffmpeg")
	t.Setenv("PATH", fakeBin)

	res, err := Doctor(context.Background(), DoctorOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Doctor: %v", err)
	}
	if res.OK {
		t.Fatalf("expected failure without ffprobe: %+v", res)
	}
}

func TestParseEngineVersion(t *testing.T) {
	got, ok := parseEngineVersion("2025.06.30.232847")
	if !ok || got.Year() != 2025 || got.Month() != time.June || got.Day() != 30 {
		t.Fatalf("unexpected parse: %v %v", got, ok)
	}
	if _, ok := parseEngineVersion("nightly"); ok {
		t.Fatalf("expected non-date version to be rejected")
	}
}
