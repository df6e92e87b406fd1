package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"yt-allinone/internal/classify"
	"yt-allinone/internal/model"
)

var ErrInputNotFound = errors.New("input not found")

type Metadata struct {
	Title  string
	Artist string
}

// VerifyError means ffmpeg exited cleanly but the output is not what was
// asked for.
type VerifyError struct {
	Path   string
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: %s", e.Path, e.Reason)
}

type Transcoder struct {
	FFmpeg     string
	FFprobe    string
	Classifier *classify.Classifier
	Logger     *slog.Logger
}

func NewTranscoder(ffmpeg, ffprobe string, classifier *classify.Classifier, logger *slog.Logger) *Transcoder {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	if strings.TrimSpace(ffprobe) == "" {
		ffprobe = "ffprobe"
	}
	if classifier == nil {
		classifier = classify.New("en")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transcoder{FFmpeg: ffmpeg, FFprobe: ffprobe, Classifier: classifier, Logger: logger}
}

// ExtractMP3 converts input to a V0 mp3 at output with ID3v2.3 tags and,
// when cover is set, an embedded front cover. The result is checked with
// ffprobe before returning.
func (t *Transcoder) ExtractMP3(ctx context.Context, input, output string, meta Metadata, cover string) error {
	ffmpeg, err := t.tool(t.FFmpeg, "ffmpeg")
	if err != nil {
		return err
	}
	ffprobe, err := t.tool(t.FFprobe, "ffprobe")
	if err != nil {
		return err
	}

	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}
	if cover != "" {
		if _, err := os.Stat(cover); err != nil {
			return fmt.Errorf("cover not found: %s", cover)
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	log := t.Logger.With("input", input, "output", output)
	log.Info("audio extract start", "cover", cover != "")
	if _, err := t.run(ctx, ffmpeg, extractArgs(input, output, meta, cover), input, output, cover); err != nil {
		log.Error("audio extract failed", "error", err)
		return err
	}

	probe, err := t.run(ctx, ffprobe, []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", output}, output)
	if err != nil {
		log.Error("audio probe failed", "error", err)
		return err
	}
	if err := verify(output, probe, cover != ""); err != nil {
		log.Error("audio verify failed", "error", err)
		return err
	}
	log.Info("audio extract done")
	return nil
}

func extractArgs(input, output string, meta Metadata, cover string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input}
	if cover != "" {
		args = append(args,
			"-i", cover,
			"-map", "0:a", "-map", "1:v",
			"-id3v2_version", "3",
			"-metadata:s:v", "title=Album cover",
			"-metadata:s:v", "comment=Cover (front)",
		)
	} else {
		args = append(args, "-vn")
	}
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Artist != "" {
		args = append(args, "-metadata", "artist="+meta.Artist)
	}
	return append(args, "-acodec", "libmp3lame", "-q:a", "0", output)
}

func (t *Transcoder) tool(bin, name string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", t.Classifier.Classify(name + " not found in PATH")
	}
	return path, nil
}

// run executes bin. On failure only the last stderr line is classified, with
// the given file paths blanked so names like "private.mp4" cannot steer it.
func (t *Transcoder) run(ctx context.Context, bin string, args []string, paths ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := classify.StripANSI(lastLine(stderr.String()))
		if msg == "" {
			msg = fmt.Sprintf("%s failed: %v", filepath.Base(bin), err)
		}
		scrubbed := msg
		for _, p := range paths {
			if p != "" {
				scrubbed = strings.ReplaceAll(scrubbed, p, "file")
			}
		}
		derr := t.Classifier.Classify(scrubbed)
		derr.Message = msg
		return nil, derr
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

func verify(path string, probe []byte, wantCover bool) error {
	var out probeOutput
	if len(bytes.TrimSpace(probe)) > 0 {
		if err := json.Unmarshal(probe, &out); err != nil {
			return &VerifyError{Path: path, Reason: "unreadable ffprobe output"}
		}
	}
	hasAudio, hasCover := false, false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			if s.CodecName == "mp3" {
				hasAudio = true
			}
		case "video":
			hasCover = true
		}
	}
	if !hasAudio {
		return &VerifyError{Path: path, Reason: "no mp3 audio stream"}
	}
	if wantCover && !hasCover {
		return &VerifyError{Path: path, Reason: "cover was not embedded"}
	}
	return nil
}

// IsMissingTool reports whether err means ffmpeg or ffprobe is not installed.
func IsMissingTool(err error) bool {
	var derr *model.DownloadError
	return errors.As(err, &derr) && derr.Code == model.CodeFFmpegMissing
}
