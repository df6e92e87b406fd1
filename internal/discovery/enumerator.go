package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"yt-allinone/internal/classify"
	"yt-allinone/internal/model"
	"yt-allinone/internal/ytdlp"
)

// ShortMaxSeconds is the longest duration still counted as short-form.
const ShortMaxSeconds = 60

// Lister is the listing half of the engine.
type Lister interface {
	ListJSON(ctx context.Context, sourceURL string, opts ytdlp.ListOptions) ([]byte, error)
}

type Filter string

const (
	FilterNone    Filter = ""
	FilterShorts  Filter = "shorts"
	FilterRegular Filter = "regular"
)

type DryRunOptions struct {
	Filter Filter
	// Limit <= 0 means no limit.
	Limit   int
	Cookies model.Browser
}

type Enumerator struct {
	lister     Lister
	classifier *classify.Classifier
	logger     *slog.Logger
	// CookiesPath and Proxy apply to every listing call.
	CookiesPath string
	Proxy       string
}

func NewEnumerator(lister Lister, classifier *classify.Classifier, logger *slog.Logger) *Enumerator {
	if classifier == nil {
		classifier = classify.New("en")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enumerator{lister: lister, classifier: classifier, logger: logger}
}

func IsShort(e model.Entry) bool {
	if strings.Contains(strings.ToLower(e.URL), "/shorts/") {
		return true
	}
	return e.Duration != nil && *e.Duration <= ShortMaxSeconds
}

func IsRegular(e model.Entry) bool {
	return !IsShort(e)
}

func isURLShort(e model.Entry) bool {
	return strings.Contains(strings.ToLower(e.URL), "/shorts/")
}

// ListEntries resolves a URL into entries. Engine failures come back as
// *model.DownloadError.
func (en *Enumerator) ListEntries(ctx context.Context, sourceURL string, cookies model.Browser, flat bool) ([]model.Entry, error) {
	data, err := en.list(ctx, sourceURL, cookies, flat)
	if err != nil {
		return nil, err
	}
	entries, err := parseListing(data)
	if err != nil {
		return nil, &model.DownloadError{Code: model.CodeUnknown, Message: err.Error(), Hint: en.classifier.Hint(model.CodeUnknown)}
	}
	en.logger.Info("listed entries", "url", sourceURL, "flat", flat, "count", len(entries))
	return entries, nil
}

func (en *Enumerator) list(ctx context.Context, sourceURL string, cookies model.Browser, flat bool) ([]byte, error) {
	opts := ytdlp.ListOptions{
		Flat:               flat,
		CookiesFromBrowser: string(cookies),
		CookiesPath:        en.CookiesPath,
		Proxy:              en.Proxy,
	}
	data, err := en.lister.ListJSON(ctx, sourceURL, opts)
	if err == nil {
		return data, nil
	}
	raw := engineDiagnostic(err)
	if cookies != "" && classify.IsCookieCopyFailure(raw) {
		en.logger.Warn("cookie database unavailable, listing without cookies", "url", sourceURL, "browser", string(cookies))
		opts.CookiesFromBrowser = ""
		data, err = en.lister.ListJSON(ctx, sourceURL, opts)
		if err == nil {
			return data, nil
		}
		return nil, en.classifier.CookieFallbackFailure(engineDiagnostic(err))
	}
	return nil, en.classifier.Classify(raw)
}

// EnrichEntry fills duration, title, thumbnails and tags from a full
// single-item query. It does nothing when duration and title are known.
func (en *Enumerator) EnrichEntry(ctx context.Context, e *model.Entry, cookies model.Browser) error {
	if e.Duration != nil && e.Title != "" {
		return nil
	}
	target := e.URL
	if target == "" {
		target = model.WatchURL(e.ID)
	}
	data, err := en.list(ctx, target, cookies, false)
	if err != nil {
		return err
	}
	var info rawEntry
	if err := json.Unmarshal(data, &info); err != nil {
		return &model.DownloadError{Code: model.CodeUnknown, Message: fmt.Sprintf("parse metadata for %s: %v", target, err), Hint: en.classifier.Hint(model.CodeUnknown)}
	}
	if info.Duration != nil {
		e.Duration = info.Duration
	}
	if info.Title != "" {
		e.Title = info.Title
	}
	if len(info.Thumbnails) > 0 {
		e.Thumbnails = info.thumbnails()
	}
	if tags := info.tags(); len(tags) > 0 {
		e.Tags = tags
	}
	if info.WebpageURL != "" && !isURLShort(*e) {
		e.URL = info.WebpageURL
	}
	if e.ID == "" {
		e.ID = info.ID
	}
	e.Raw = json.RawMessage(data)
	return nil
}

// DryRun lists and filters entries without downloading. Order follows the
// listing; short-form matches by URL are kept ahead of ones found by duration.
func (en *Enumerator) DryRun(ctx context.Context, sourceURL string, opts DryRunOptions) ([]model.Entry, error) {
	entries, err := en.ListEntries(ctx, sourceURL, opts.Cookies, true)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit

	switch opts.Filter {
	case FilterShorts:
		urlShorts := make([]model.Entry, 0)
		for _, e := range entries {
			if isURLShort(e) {
				urlShorts = append(urlShorts, e)
			}
		}
		if limit <= 0 {
			return urlShorts, nil
		}
		if len(urlShorts) >= limit {
			return urlShorts[:limit], nil
		}
		found := urlShorts
		for i := range entries {
			if len(found) >= limit {
				break
			}
			if isURLShort(entries[i]) {
				continue
			}
			if err := en.enrichForFilter(ctx, &entries[i], opts.Cookies); err != nil {
				return nil, err
			}
			if IsShort(entries[i]) {
				found = append(found, entries[i])
			}
		}
		return found, nil

	case FilterRegular:
		found := make([]model.Entry, 0)
		for i := range entries {
			if limit > 0 && len(found) >= limit {
				break
			}
			if isURLShort(entries[i]) {
				continue
			}
			if err := en.enrichForFilter(ctx, &entries[i], opts.Cookies); err != nil {
				return nil, err
			}
			if IsRegular(entries[i]) {
				found = append(found, entries[i])
			}
		}
		return found, nil

	default:
		if limit > 0 && len(entries) > limit {
			return entries[:limit], nil
		}
		return entries, nil
	}
}

// enrichForFilter tolerates per-item failures; the entry is judged on what
// the flat listing already provided. Context cancellation still aborts.
func (en *Enumerator) enrichForFilter(ctx context.Context, e *model.Entry, cookies model.Browser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := en.EnrichEntry(ctx, e, cookies); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		en.logger.Warn("enrich entry failed", "id", e.ID, "url", e.URL, "err", err)
	}
	return nil
}

func engineDiagnostic(err error) string {
	var engineErr *ytdlp.EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Diagnostic()
	}
	return err.Error()
}
