package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"yt-allinone/internal/model"
)

func writeFakeYTDLP(t *testing.T, script string) string {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatalf("mkdir fake bin: %v", err)
	}
	path := filepath.Join(fakeBin, "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/usr/bin/env bash\nset -euo pipefail\n"+script), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}
	return path
}

func TestOptionsArgs_AudioOnlyWithCookies(t *testing.T) {
	opts := Options{
		Format:             "bestaudio/best",
		OutputTemplate:     "/out/%(title)s.%(ext)s",
		CookiesFromBrowser: "firefox",
		ExtractAudio:       &AudioExtraction{Codec: "mp3", Quality: "192K"},
		Continue:           true,
		NoOverwrites:       true,
		Retry:              RetryPolicy{Retries: 10, FragmentRetries: 10, RetrySleep: "http:exp=1:10"},
	}
	args, err := opts.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-f bestaudio/best",
		"-x --audio-format mp3 --audio-quality 192K",
		"--cookies-from-browser firefox",
		"--continue",
		"--no-overwrites",
		"--retries 10",
		"--fragment-retries 10",
		"--retry-sleep http:exp=1:10",
		"--progress-template download:[progress]%(progress)j",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args: %s", want, joined)
		}
	}
}

func TestOptionsArgs_SubtitlesOnlySkipsFormat(t *testing.T) {
	opts := Options{
		OutputTemplate: "/out/%(title)s.%(ext)s",
		Subtitles:      &SubtitleOptions{SkipMedia: true},
	}
	args, err := opts.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if slices.Contains(args, "-f") {
		t.Fatalf("did not expect a format selector: %v", args)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--skip-download") || !strings.Contains(joined, "--sub-langs en.*,en,-live_chat") {
		t.Fatalf("unexpected subtitle args: %s", joined)
	}
}

func TestOptionsArgs_ExtraPassthrough(t *testing.T) {
	opts := Options{
		Format:         "best",
		OutputTemplate: "%(title)s.%(ext)s",
		Extra:          map[string]string{"embed-metadata": "", "no-mtime": "true", "xattrs": "false", "--match-filter": "duration>60"},
	}
	args, err := opts.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--embed-metadata") || !strings.Contains(joined, "--no-mtime") || !strings.Contains(joined, "--match-filter duration>60") {
		t.Fatalf("missing passthrough args: %s", joined)
	}
	if strings.Contains(joined, "xattrs") {
		t.Fatalf("false-valued option should be omitted: %s", joined)
	}
}

func TestOptionsValidate_RejectsManagedAndMalformedExtra(t *testing.T) {
	base := Options{Format: "best", OutputTemplate: "%(title)s.%(ext)s"}
	for _, key := range []string{"exec", "format", "--output", "Bad Name", "cookies-from-browser", "a;b"} {
		opts := base
		opts.Extra = map[string]string{key: "x"}
		if err := opts.Validate(); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if err := (Options{OutputTemplate: "x"}).Validate(); err == nil {
		t.Fatalf("expected missing format to be rejected")
	}
	bad := base
	bad.Headers = map[string]string{"X-Test": "a\nb"}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected header with newline to be rejected")
	}
}

func TestOptionsValidate_OnlyAllowsListedPassthrough(t *testing.T) {
	base := Options{Format: "best", OutputTemplate: "%(title)s.%(ext)s"}
	rejected := []struct{ key, value string }{
		{"use-postprocessor", "Exec:exec_cmd=touch /tmp/x;when=pre_process"},
		{"netrc-cmd", "touch /tmp/x"},
		{"postprocessor-args", "ffmpeg:-f data /home/user/.bashrc"},
		{"ppa", "ffmpeg:-y"},
		{"downloader", "aria2c"},
		{"external-downloader", "/bin/sh"},
		{"ffmpeg-location", "/tmp/evil"},
		{"load-info-json", "/etc/passwd"},
		{"print-to-file", "id /home/user/.profile"},
		{"embed-metadata", "yes"},
		{"socket-timeout", "soon"},
		{"max-filesize", "50M; rm"},
		{"merge-output-format", "exe"},
		{"match-filter", "title~='a'\n--exec"},
		{"age-limit", ""},
	}
	for _, tc := range rejected {
		opts := base
		opts.Extra = map[string]string{tc.key: tc.value}
		if err := opts.Validate(); err == nil {
			t.Fatalf("expected %s=%q to be rejected", tc.key, tc.value)
		}
	}

	accepted := map[string]string{
		"embed-thumbnail":     "true",
		"socket-timeout":      "15",
		"max-filesize":        "1.5G",
		"merge-output-format": "MKV",
		"dateafter":           "20240101",
		"sponsorblock-remove": "sponsor,selfpromo",
		"format-sort":         "res:1080,+size",
	}
	opts := base
	opts.Extra = accepted
	args, err := opts.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"--embed-thumbnail", "--socket-timeout 15", "--max-filesize 1.5G", "--merge-output-format mkv", "--format-sort res:1080,+size"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line    string
		percent float64
		total   int64
	}{
		{`[progress] {"status":"downloading","downloaded_bytes":250,"total_bytes":1000,"speed":12.5,"eta":3}`, 25, 1000},
		{`[progress] {"status":"downloading","downloaded_bytes":300,"total_bytes":null,"total_bytes_estimate":600}`, 50, 600},
		{`[progress] {"status":"downloading","downloaded_bytes":300,"fragment_index":3,"fragment_count":12}`, 25, 0},
		{`[progress] {"status":"downloading","elapsed":30,"eta":90}`, 25, 0},
		{`[progress] {"status":"downloading"}`, 0, 0},
		{`[progress] {"status":"finished","downloaded_bytes":1000}`, 100, 0},
	}
	for _, tc := range cases {
		got, ok := ParseProgressLine(tc.line)
		if !ok {
			t.Fatalf("expected progress for %s", tc.line)
		}
		if got.Percent != tc.percent {
			t.Fatalf("percent for %s = %v, want %v", tc.line, got.Percent, tc.percent)
		}
		if got.TotalBytes != tc.total {
			t.Fatalf("total for %s = %d, want %d", tc.line, got.TotalBytes, tc.total)
		}
	}

	for _, line := range []string{"[download] Destination: x.mp4", "[progress] not-json", ""} {
		if _, ok := ParseProgressLine(line); ok {
			t.Fatalf("did not expect progress for %q", line)
		}
	}
}

func TestAppendTail_KeepsMostRecentOutput(t *testing.T) {
	var out, errBuf strings.Builder
	for i := 0; i < 2000; i++ {
		appendTail(&out, &errBuf, StreamStderr, "WARNING: noise line that repeats")
	}
	appendTail(&out, &errBuf, StreamStderr, "ERROR: final failure")
	if errBuf.Len() > maxTail {
		t.Fatalf("tail exceeded limit: %d", errBuf.Len())
	}
	if !strings.HasSuffix(errBuf.String(), "ERROR: final failure\n") {
		t.Fatalf("tail lost the last line")
	}
	if out.Len() != 0 {
		t.Fatalf("stdout buffer should be untouched")
	}
}

func TestEngineErrorDiagnostic_PrefersLastErrorLine(t *testing.T) {
	e := &EngineError{
		Err:    errors.New("exit status 1"),
		Stderr: "WARNING: a\nERROR: first\nWARNING: b\nERROR: [youtube] x: Video unavailable\n",
	}
	if got := e.Diagnostic(); got != "ERROR: [youtube] x: Video unavailable" {
		t.Fatalf("unexpected diagnostic: %q", got)
	}
	if !strings.Contains(e.Error(), "yt-dlp failed: exit status 1") {
		t.Fatalf("unexpected error text: %q", e.Error())
	}
}

func TestClientStart_StreamsProgressAndSucceeds(t *testing.T) {
	bin := writeFakeYTDLP(t, `
echo '[youtube] abc: Downloading webpage'
echo '[progress] {"status":"downloading","downloaded_bytes":10,"total_bytes":100}'
echo '[progress] {"status":"downloading","downloaded_bytes":100,"total_bytes":100}'
`)
	client := NewClient(bin, nil)

	var mu sync.Mutex
	var got []model.Progress
	proc, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc", Options{
		Format:         "best",
		OutputTemplate: filepath.Join(t.TempDir(), "%(title)s.%(ext)s"),
	}, func(p model.Progress) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0].Percent != 10 || got[1].Percent != 100 {
		t.Fatalf("unexpected progress: %+v", got)
	}
}

func TestClientStart_FailureCarriesDiagnostic(t *testing.T) {
	bin := writeFakeYTDLP(t, `
echo 'ERROR: [youtube] abc: Private video' >&2
exit 1
`)
	client := NewClient(bin, nil)
	proc, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc", Options{
		Format:         "best",
		OutputTemplate: "%(title)s.%(ext)s",
	}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	err = proc.Wait()
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if engineErr.Diagnostic() != "ERROR: [youtube] abc: Private video" {
		t.Fatalf("unexpected diagnostic: %q", engineErr.Diagnostic())
	}
}

func TestClientStart_TerminateStopsProcessGroup(t *testing.T) {
	bin := writeFakeYTDLP(t, `
sleep 30
`)
	client := NewClient(bin, nil)
	proc, err := client.Start(context.Background(), "https://www.youtube.com/watch?v=abc", Options{
		Format:         "best",
		OutputTemplate: "%(title)s.%(ext)s",
	}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := proc.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	select {
	case <-proc.Done():
	case <-time.After(10 * time.Second):
		_ = proc.Kill()
		t.Fatalf("process did not exit after terminate")
	}
	if proc.Wait() == nil {
		t.Fatalf("expected terminated process to report an error")
	}
}

func TestListJSON_ReturnsEngineOutput(t *testing.T) {
	bin := writeFakeYTDLP(t, `
for a in "$@"; do
  if [[ "$a" == "--flat-playlist" ]]; then
    echo '{"_type":"playlist","entries":[{"id":"a1"}]}'
    exit 0
  fi
done
echo 'ERROR: expected flat listing' >&2
exit 2
`)
	client := NewClient(bin, nil)
	out, err := client.ListJSON(context.Background(), "https://www.youtube.com/@chan/videos", ListOptions{Flat: true})
	if err != nil {
		t.Fatalf("ListJSON: %v", err)
	}
	if !strings.Contains(string(out), `"a1"`) {
		t.Fatalf("unexpected output: %s", out)
	}

	_, err = client.ListJSON(context.Background(), "https://www.youtube.com/watch?v=a1", ListOptions{})
	var engineErr *EngineError
	if !errors.As(err, &engineErr) || !strings.Contains(engineErr.Diagnostic(), "expected flat listing") {
		t.Fatalf("expected engine error with diagnostic, got %v", err)
	}
}
