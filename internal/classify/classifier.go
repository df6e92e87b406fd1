package classify

import (
	"strings"

	"yt-allinone/internal/model"
)

type rule struct {
	// every group must match; a group matches when any of its phrases occurs
	all  [][]string
	code model.ErrorCode
	hint hintKey
}

func anyOf(phrases ...string) []string { return phrases }

// Evaluated in order, first match wins. Specific service phrases come before
// the broad network and HTTP fallbacks.
var rules = []rule{
	{all: [][]string{anyOf("not available on this app"), anyOf("latest version")}, code: model.CodeContentUnavailable, hint: hintUpdateEngine},
	{all: [][]string{anyOf("video unavailable")}, code: model.CodeVideoUnavailable, hint: hintVideoUnavailable},
	{all: [][]string{anyOf("sign in to confirm"), anyOf("not a bot")}, code: model.CodeAuthRequired, hint: hintBotCheck},
	{all: [][]string{anyOf("could not copy"), anyOf("cookie database")}, code: model.CodeAuthRequired, hint: hintCookieDatabase},
	{all: [][]string{anyOf("http error 429", "too many requests")}, code: model.CodeNetwork, hint: hintRateLimited},
	{all: [][]string{anyOf("temporary failure", "timed out", "timeout", "connection", "read error", "http error 5")}, code: model.CodeNetwork, hint: hintNetwork},
	{all: [][]string{anyOf("http error 403", "http error 410", "private")}, code: model.CodePrivate, hint: hintPrivate},
	{all: [][]string{anyOf("in your country", "geo restrict", "geo-restrict", "geoblock")}, code: model.CodeGeoBlock, hint: hintGeoBlock},
	{all: [][]string{anyOf("confirm your age", "age-restricted", "age restricted", "age verification", "age gate")}, code: model.CodeAgeGate, hint: hintAgeGate},
	{all: [][]string{anyOf("no space left", "no space", "disk full")}, code: model.CodeNoSpace, hint: hintNoSpace},
	{all: [][]string{anyOf("not found in path", "ffmpeg not found", "ffprobe not found", "ffmpeg could not be found", "ffprobe could not be found")}, code: model.CodeFFmpegMissing, hint: hintFFmpegMissing},
	{all: [][]string{anyOf("http error")}, code: model.CodeUnknown, hint: hintInvalidURL},
}

func (r rule) matches(lower string) bool {
	for _, group := range r.all {
		hit := false
		for _, phrase := range group {
			if strings.Contains(lower, phrase) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Classifier maps raw engine and transcoder diagnostics to DownloadErrors
// with hints in the configured language.
type Classifier struct {
	hints map[hintKey]string
}

func New(locale string) *Classifier {
	return &Classifier{hints: catalogFor(locale)}
}

var defaultClassifier = New("en")

// Classify uses English hints.
func Classify(raw string) *model.DownloadError {
	return defaultClassifier.Classify(raw)
}

func (c *Classifier) Classify(raw string) *model.DownloadError {
	msg := StripANSI(raw)
	lower := strings.ToLower(msg)
	for _, r := range rules {
		if r.matches(lower) {
			return &model.DownloadError{Code: r.code, Message: msg, Hint: c.hints[r.hint]}
		}
	}
	return &model.DownloadError{Code: model.CodeUnknown, Message: msg, Hint: c.hints[hintRetry]}
}

// CookieFallbackFailure is reported when a download still fails after the
// automatic retry without browser cookies.
func (c *Classifier) CookieFallbackFailure(raw string) *model.DownloadError {
	return &model.DownloadError{
		Code:    model.CodeAuthRequired,
		Message: StripANSI(raw),
		Hint:    c.hints[hintCookieFallback],
	}
}

// Hint returns the localized hint for the given error code's primary rule.
func (c *Classifier) Hint(code model.ErrorCode) string {
	if code == model.CodeUnknown {
		return c.hints[hintRetry]
	}
	for _, r := range rules {
		if r.code == code {
			return c.hints[r.hint]
		}
	}
	return c.hints[hintRetry]
}

// IsCookieCopyFailure reports whether the engine could not read the browser's
// cookie store, typically because the browser is running and holds a lock.
func IsCookieCopyFailure(raw string) bool {
	lower := strings.ToLower(StripANSI(raw))
	return strings.Contains(lower, "could not copy") && strings.Contains(lower, "cookie database")
}
