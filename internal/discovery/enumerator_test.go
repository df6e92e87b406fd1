package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"yt-allinone/internal/model"
	"yt-allinone/internal/ytdlp"
)

type fakeLister struct {
	mu    sync.Mutex
	docs  map[string]string
	fails map[string]error
	calls []fakeCall
}

type fakeCall struct {
	url  string
	opts ytdlp.ListOptions
}

func (f *fakeLister) ListJSON(_ context.Context, sourceURL string, opts ytdlp.ListOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{url: sourceURL, opts: opts})
	if err, ok := f.fails[sourceURL]; ok {
		return nil, err
	}
	doc, ok := f.docs[sourceURL]
	if !ok {
		return nil, &ytdlp.EngineError{Err: errors.New("exit status 1"), Stderr: "ERROR: HTTP Error 404: Not Found"}
	}
	return []byte(doc), nil
}

func (f *fakeLister) enrichCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if !c.opts.Flat {
			out = append(out, c.url)
		}
	}
	return out
}

const channelURL = "https://www.youtube.com/@chan/videos"

// v1 is a short by URL, v3 by duration once enriched, v2 and v4 are regular.
func mixedChannel() *fakeLister {
	return &fakeLister{docs: map[string]string{
		channelURL: `{"_type":"playlist","entries":[
			{"id":"v1","url":"https://www.youtube.com/shorts/v1","title":"s1"},
			{"id":"v2","url":"https://www.youtube.com/watch?v=v2","title":"Long video"},
			{"id":"v3","url":"https://www.youtube.com/watch?v=v3"},
			{"id":"v4","url":"https://www.youtube.com/watch?v=v4","duration":300,"title":"Another long"}
		]}`,
		"https://www.youtube.com/watch?v=v2": `{"id":"v2","title":"Long video","duration":600,"webpage_url":"https://www.youtube.com/watch?v=v2","tags":["a","b"]}`,
		"https://www.youtube.com/watch?v=v3": `{"id":"v3","title":"Short by duration","duration":45,"webpage_url":"https://www.youtube.com/watch?v=v3"}`,
	}}
}

func ids(entries []model.Entry) string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return strings.Join(out, ",")
}

func TestDryRun_ShortsWithoutLimitUsesURLOnly(t *testing.T) {
	lister := mixedChannel()
	en := NewEnumerator(lister, nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterShorts})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "v1" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	if calls := lister.enrichCalls(); len(calls) != 0 {
		t.Fatalf("expected no enrichment, got %v", calls)
	}
}

func TestDryRun_ShortsWithLimitEnrichesProgressively(t *testing.T) {
	lister := mixedChannel()
	en := NewEnumerator(lister, nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterShorts, Limit: 2})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "v1,v3" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	// v4 is never reached once the limit is met
	calls := lister.enrichCalls()
	if strings.Join(calls, " ") != "https://www.youtube.com/watch?v=v2 https://www.youtube.com/watch?v=v3" {
		t.Fatalf("unexpected enrichment calls: %v", calls)
	}
}

func TestDryRun_ShortsLimitMetByURLSubset(t *testing.T) {
	lister := mixedChannel()
	en := NewEnumerator(lister, nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterShorts, Limit: 1})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "v1" || len(lister.enrichCalls()) != 0 {
		t.Fatalf("unexpected result %s with calls %v", ids(got), lister.enrichCalls())
	}
}

func TestDryRun_RegularEnrichesAndExcludesShorts(t *testing.T) {
	lister := mixedChannel()
	en := NewEnumerator(lister, nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterRegular, Limit: 10})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "v2,v4" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	if got[0].Duration == nil || *got[0].Duration != 600 {
		t.Fatalf("expected v2 to be enriched: %+v", got[0])
	}
	if strings.Join(got[0].Tags, ",") != "a,b" {
		t.Fatalf("expected tags from enrichment: %v", got[0].Tags)
	}
	// v4 already had duration and title
	for _, c := range lister.enrichCalls() {
		if strings.HasSuffix(c, "v4") || strings.Contains(c, "shorts") {
			t.Fatalf("unexpected enrichment of %s", c)
		}
	}
}

func TestDryRun_RegularStopsAtLimit(t *testing.T) {
	lister := mixedChannel()
	en := NewEnumerator(lister, nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterRegular, Limit: 1})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "v2" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	if calls := lister.enrichCalls(); len(calls) != 1 {
		t.Fatalf("expected a single enrichment, got %v", calls)
	}
}

func TestDryRun_NoFilterAppliesLimit(t *testing.T) {
	en := NewEnumerator(mixedChannel(), nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Limit: 3})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "v1,v2,v3" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	all, err := en.DryRun(context.Background(), channelURL, DryRunOptions{})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected all entries, got %d", len(all))
	}
}

func TestDryRun_EnrichFailureJudgesFlatData(t *testing.T) {
	lister := mixedChannel()
	delete(lister.docs, "https://www.youtube.com/watch?v=v3")
	en := NewEnumerator(lister, nil, nil)

	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterRegular})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	// v3 has no duration and no shorts URL, so it stays long-form
	if ids(got) != "v2,v3,v4" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
}

func TestListEntries_SingleVideo(t *testing.T) {
	lister := &fakeLister{docs: map[string]string{
		"https://www.youtube.com/watch?v=abcdefghijk": `{"_type":"video","id":"abcdefghijk","title":"One","duration":12.5,"thumbnails":[{"url":"https://i.ytimg.com/x.jpg"},{"url":""}]}`,
	}}
	en := NewEnumerator(lister, nil, nil)
	got, err := en.ListEntries(context.Background(), "https://www.youtube.com/watch?v=abcdefghijk", "", true)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != "abcdefghijk" || got[0].URL != "https://www.youtube.com/watch?v=abcdefghijk" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if len(got[0].Thumbnails) != 1 {
		t.Fatalf("expected empty thumbnail url to be dropped: %+v", got[0].Thumbnails)
	}
	if len(got[0].Raw) == 0 {
		t.Fatalf("expected raw metadata to be kept")
	}
}

func TestListEntries_FlattensNestedTabs(t *testing.T) {
	lister := &fakeLister{docs: map[string]string{
		channelURL: `{"_type":"playlist","entries":[
			{"_type":"playlist","id":"tab-videos","entries":[{"id":"a"},{"id":"b"}]},
			{"_type":"playlist","id":"tab-shorts","entries":[{"id":"c","url":"https://www.youtube.com/shorts/c"}]},
			null
		]}`,
	}}
	en := NewEnumerator(lister, nil, nil)
	got, err := en.ListEntries(context.Background(), channelURL, "", true)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if ids(got) != "a,b,c" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	if got[0].URL != "https://www.youtube.com/watch?v=a" || !IsShort(got[2]) {
		t.Fatalf("unexpected urls: %s %s", got[0].URL, got[2].URL)
	}
}

func TestListEntries_CookieFallback(t *testing.T) {
	cookieErr := &ytdlp.EngineError{Err: errors.New("exit status 1"), Stderr: "ERROR: Could not copy Chrome cookie database."}
	lister := &fakeLister{docs: map[string]string{channelURL: `{"_type":"playlist","entries":[{"id":"a"}]}`}}
	// fail only while cookies are requested
	wrapped := listerFunc(func(ctx context.Context, u string, opts ytdlp.ListOptions) ([]byte, error) {
		if opts.CookiesFromBrowser != "" {
			lister.mu.Lock()
			lister.calls = append(lister.calls, fakeCall{url: u, opts: opts})
			lister.mu.Unlock()
			return nil, cookieErr
		}
		return lister.ListJSON(ctx, u, opts)
	})
	en := NewEnumerator(wrapped, nil, nil)

	got, err := en.ListEntries(context.Background(), channelURL, "chrome", true)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if ids(got) != "a" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
	if len(lister.calls) != 2 || lister.calls[1].opts.CookiesFromBrowser != "" {
		t.Fatalf("expected retry without cookies, calls: %+v", lister.calls)
	}
}

type listerFunc func(ctx context.Context, u string, opts ytdlp.ListOptions) ([]byte, error)

func (f listerFunc) ListJSON(ctx context.Context, u string, opts ytdlp.ListOptions) ([]byte, error) {
	return f(ctx, u, opts)
}

func TestListEntries_ClassifiesFailure(t *testing.T) {
	lister := &fakeLister{fails: map[string]error{
		channelURL: &ytdlp.EngineError{Err: errors.New("exit status 1"), Stderr: "WARNING: x\nERROR: [youtube] v: \x1b[0;31mPrivate video\x1b[0m"},
	}}
	en := NewEnumerator(lister, nil, nil)
	_, err := en.ListEntries(context.Background(), channelURL, "", true)
	var dlErr *model.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Code != model.CodePrivate || strings.Contains(dlErr.Message, "\x1b") {
		t.Fatalf("unexpected classification: %+v", dlErr)
	}
}

func TestEnrichEntry_NoOpWhenComplete(t *testing.T) {
	lister := &fakeLister{}
	en := NewEnumerator(lister, nil, nil)
	d := 30.0
	e := model.Entry{ID: "x", URL: "https://www.youtube.com/watch?v=x", Title: "t", Duration: &d}
	if err := en.EnrichEntry(context.Background(), &e, ""); err != nil {
		t.Fatalf("EnrichEntry: %v", err)
	}
	if len(lister.calls) != 0 {
		t.Fatalf("expected no engine call, got %+v", lister.calls)
	}
}

func TestIsShort(t *testing.T) {
	d60, d61 := 60.0, 61.0
	cases := []struct {
		entry model.Entry
		want  bool
	}{
		{model.Entry{URL: "https://www.youtube.com/Shorts/abc"}, true},
		{model.Entry{URL: "https://www.youtube.com/watch?v=abc", Duration: &d60}, true},
		{model.Entry{URL: "https://www.youtube.com/watch?v=abc", Duration: &d61}, false},
		{model.Entry{URL: "https://www.youtube.com/watch?v=abc"}, false},
	}
	for _, tc := range cases {
		if got := IsShort(tc.entry); got != tc.want {
			t.Fatalf("IsShort(%+v) = %v, want %v", tc.entry, got, tc.want)
		}
		if IsRegular(tc.entry) == tc.want {
			t.Fatalf("IsRegular must negate IsShort for %+v", tc.entry)
		}
	}
}

func TestEnumerator_WithFakeEngineBinary(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatalf("mkdir fake bin: %v", err)
	}
	script := `#!/usr/bin/env bash
set -euo pipefail
cat "$YTDLP_FIXTURE"
`
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(script), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}
	fixture := filepath.Join(t.TempDir(), "playlist.json")
	if err := os.WriteFile(fixture, []byte(`{"_type":"playlist","entries":[{"id":"a","url":"https://www.youtube.com/shorts/a"},{"id":"b"}]}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("YTDLP_FIXTURE", fixture)

	en := NewEnumerator(ytdlp.NewClient(filepath.Join(fakeBin, "yt-dlp"), nil), nil, nil)
	got, err := en.DryRun(context.Background(), channelURL, DryRunOptions{Filter: FilterShorts})
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if ids(got) != "a" {
		t.Fatalf("unexpected entries: %s", ids(got))
	}
}
