package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yt-allinone/internal/runstore"
	"yt-allinone/internal/ytdlp"
)

// Releases older than this commonly trip YouTube's "update your app" wall.
const staleEngineAge = 90 * 24 * time.Hour

type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

type DoctorOptions struct {
	OutputDir   string
	ConfigPath  string
	YTDLPPath   string
	FFmpegPath  string
	FFprobePath string
	Engine      VersionSource
	Now         func() time.Time
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// Optional checks are reported but do not fail the result.
	Optional bool `json:"optional,omitempty"`
}

func Doctor(ctx context.Context, opts DoctorOptions) (DoctorResult, error) {
	outputDir := strings.TrimSpace(opts.OutputDir)
	if outputDir == "" {
		outputDir = "downloads"
	}

	checks := make([]DoctorCheck, 0, 6)
	dep := ytdlp.DependencyStatus(opts.YTDLPPath, opts.FFmpegPath, opts.FFprobePath)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
	})
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffprobe",
		OK:      dep.FFprobeFound,
		Message: dependencyMessage(dep.FFprobeFound, dep.FFprobePath, "ffprobe"),
	})

	if dep.YTDLPFound && opts.Engine != nil {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		checks = append(checks, engineVersionCheck(ctx, opts.Engine, now()))
	}

	outOK, outMessage := ensureWritableDir(outputDir)
	checks = append(checks, DoctorCheck{
		Name:    "directory:output",
		OK:      outOK,
		Message: outMessage,
	})

	if strings.TrimSpace(opts.ConfigPath) != "" {
		cfgOK, cfgMessage := ensureWritableDir(filepath.Dir(opts.ConfigPath))
		checks = append(checks, DoctorCheck{
			Name:     "directory:config",
			OK:       cfgOK,
			Message:  cfgMessage,
			Optional: true,
		})
	}

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			ok = false
			break
		}
	}

	return DoctorResult{OK: ok, Checks: checks}, nil
}

func engineVersionCheck(ctx context.Context, engine VersionSource, now time.Time) DoctorCheck {
	check := DoctorCheck{Name: "engine:version", Optional: true}
	v, err := engine.Version(ctx)
	if err != nil {
		check.Message = err.Error()
		return check
	}
	released, ok := parseEngineVersion(v)
	if !ok {
		check.OK = true
		check.Message = "yt-dlp " + v
		return check
	}
	age := now.Sub(released)
	if age > staleEngineAge {
		check.Message = fmt.Sprintf("yt-dlp %s is %d days old; update it (pip install --upgrade yt-dlp)", v, int(age.Hours()/24))
		return check
	}
	check.OK = true
	check.Message = "yt-dlp " + v
	return check
}

// yt-dlp versions are release dates, e.g. 2025.06.30 or 2025.06.30.232847.
func parseEngineVersion(v string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006.01.02", strings.Join(parts[:3], "."))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "yt-allinone-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
