package ytdlp

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Options is the typed form of every engine option the adapter knows how to
// set. Anything else goes through Extra and is validated before use.
type Options struct {
	Format             string
	OutputTemplate     string
	CookiesFromBrowser string
	CookiesPath        string
	Proxy              string
	Headers            map[string]string
	Retry              RetryPolicy
	Throttle           Throttle
	Subtitles          *SubtitleOptions
	ExtractAudio       *AudioExtraction
	Continue           bool
	NoOverwrites       bool
	WindowsFilenames   bool
	TrimFilenames      int
	GeoBypass          bool
	Fragments          int
	Extra              map[string]string
}

type RetryPolicy struct {
	Retries           int
	FragmentRetries   int
	FileAccessRetries int
	// e.g. "http:exp=1:10"
	RetrySleep string
}

type Throttle struct {
	SleepRequests    float64
	SleepInterval    float64
	MaxSleepInterval float64
	RateLimit        string
}

type SubtitleOptions struct {
	Langs string
	// SkipMedia writes subtitles only.
	SkipMedia bool
	Convert   string
}

type AudioExtraction struct {
	Codec   string
	Quality string
}

var reOptionName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

type valueKind int

const (
	kindFlag valueKind = iota
	kindInt
	kindNumber
	kindSize
	kindEnum
	kindPattern
)

// passthroughRule describes what an extra engine option may carry.
type passthroughRule struct {
	kind    valueKind
	enum    []string
	pattern *regexp.Regexp
}

var (
	reSize        = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[kKmMgGtT]?$`)
	reDate        = regexp.MustCompile(`^([0-9]{8}|(now|today|yesterday)([+-][0-9]+(day|week|month|year)s?)?)$`)
	reSponsor     = regexp.MustCompile(`^-?[a-z_]+(,-?[a-z_]+)*$`)
	reFormatSort  = regexp.MustCompile(`^[a-z0-9_+:,.~<>=-]+$`)
	reMatchFilter = regexp.MustCompile(`^[A-Za-z0-9_ .,:!?&|<>=~*'"()-]+$`)
	reSections    = regexp.MustCompile(`^\*?[0-9:.]+-[0-9:.inf]+$`)
	reExtractor   = regexp.MustCompile(`^[a-z0-9_]+:[a-z0-9_]+=[A-Za-z0-9_.,=-]+(;[a-z0-9_]+=[A-Za-z0-9_.,=-]+)*$`)
)

// Extra options the engine accepts from callers. Options owned by the typed
// fields, options that run commands or touch paths outside the output
// template, and anything not listed here are rejected.
var passthroughOptions = map[string]passthroughRule{
	"embed-metadata":                {kind: kindFlag},
	"embed-thumbnail":               {kind: kindFlag},
	"embed-subs":                    {kind: kindFlag},
	"embed-chapters":                {kind: kindFlag},
	"no-embed-metadata":             {kind: kindFlag},
	"no-embed-thumbnail":            {kind: kindFlag},
	"write-thumbnail":               {kind: kindFlag},
	"write-description":             {kind: kindFlag},
	"write-info-json":               {kind: kindFlag},
	"no-mtime":                      {kind: kindFlag},
	"xattrs":                        {kind: kindFlag},
	"restrict-filenames":            {kind: kindFlag},
	"prefer-free-formats":           {kind: kindFlag},
	"check-formats":                 {kind: kindFlag},
	"keep-video":                    {kind: kindFlag},
	"live-from-start":               {kind: kindFlag},
	"force-ipv4":                    {kind: kindFlag},
	"force-ipv6":                    {kind: kindFlag},
	"abort-on-unavailable-fragment": {kind: kindFlag},
	"skip-unavailable-fragments":    {kind: kindFlag},
	"no-part":                       {kind: kindFlag},
	"age-limit":                     {kind: kindInt},
	"socket-timeout":                {kind: kindNumber},
	"sleep-subtitles":               {kind: kindNumber},
	"max-filesize":                  {kind: kindSize},
	"min-filesize":                  {kind: kindSize},
	"throttled-rate":                {kind: kindSize},
	"buffer-size":                   {kind: kindSize},
	"http-chunk-size":               {kind: kindSize},
	"merge-output-format":           {kind: kindEnum, enum: []string{"mp4", "mkv", "webm", "mov", "avi", "flv"}},
	"remux-video":                   {kind: kindEnum, enum: []string{"mp4", "mkv", "webm", "mov", "avi", "flv", "mka", "ogg", "opus", "m4a", "mp3"}},
	"date":                          {kind: kindPattern, pattern: reDate},
	"dateafter":                     {kind: kindPattern, pattern: reDate},
	"datebefore":                    {kind: kindPattern, pattern: reDate},
	"sponsorblock-mark":             {kind: kindPattern, pattern: reSponsor},
	"sponsorblock-remove":           {kind: kindPattern, pattern: reSponsor},
	"format-sort":                   {kind: kindPattern, pattern: reFormatSort},
	"match-filter":                  {kind: kindPattern, pattern: reMatchFilter},
	"download-sections":             {kind: kindPattern, pattern: reSections},
	"extractor-args":                {kind: kindPattern, pattern: reExtractor},
}

func optionName(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, "--"), "-")
}

func checkPassthrough(key, value string) error {
	name := optionName(key)
	if !reOptionName.MatchString(name) {
		return fmt.Errorf("invalid engine option name %q", key)
	}
	rule, ok := passthroughOptions[name]
	if !ok {
		return fmt.Errorf("engine option %q is not allowed", key)
	}
	v := strings.TrimSpace(value)
	if rule.kind == kindFlag {
		switch strings.ToLower(v) {
		case "", "true", "false":
			return nil
		}
		return fmt.Errorf("engine option %q takes no value, got %q", key, value)
	}
	if v == "" {
		return fmt.Errorf("engine option %q needs a value", key)
	}
	valid := false
	switch rule.kind {
	case kindInt:
		_, err := strconv.Atoi(v)
		valid = err == nil
	case kindNumber:
		f, err := strconv.ParseFloat(v, 64)
		valid = err == nil && f >= 0
	case kindSize:
		valid = reSize.MatchString(v)
	case kindEnum:
		valid = slices.Contains(rule.enum, strings.ToLower(v))
	case kindPattern:
		valid = rule.pattern.MatchString(v)
	}
	if !valid {
		return fmt.Errorf("invalid value %q for engine option %q", value, key)
	}
	return nil
}

func (o Options) Validate() error {
	if strings.TrimSpace(o.Format) == "" && (o.Subtitles == nil || !o.Subtitles.SkipMedia) {
		return fmt.Errorf("format selector is required")
	}
	if strings.TrimSpace(o.OutputTemplate) == "" {
		return fmt.Errorf("output template is required")
	}
	if o.Fragments < 0 {
		return fmt.Errorf("concurrent fragments must not be negative")
	}
	for key, value := range o.Extra {
		if err := checkPassthrough(key, value); err != nil {
			return err
		}
	}
	for name, value := range o.Headers {
		if strings.ContainsAny(name, ":\r\n") || strings.ContainsAny(value, "\r\n") {
			return fmt.Errorf("invalid header %q", name)
		}
	}
	return nil
}

// Args renders the options as engine arguments. The URL is not included.
func (o Options) Args() ([]string, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--progress-template", "download:" + ProgressPrefix + "%(progress)j",
		"-o", o.OutputTemplate,
	}
	if o.Subtitles != nil && o.Subtitles.SkipMedia {
		args = append(args, "--skip-download")
	} else {
		args = append(args, "-f", o.Format)
	}
	if o.Continue {
		args = append(args, "--continue")
	}
	if o.NoOverwrites {
		args = append(args, "--no-overwrites")
	}
	if o.WindowsFilenames {
		args = append(args, "--windows-filenames")
	}
	if o.TrimFilenames > 0 {
		args = append(args, "--trim-filenames", strconv.Itoa(o.TrimFilenames))
	}
	if o.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	if o.Fragments > 0 {
		args = append(args, "-N", strconv.Itoa(o.Fragments))
	}

	r := o.Retry
	if r.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(r.Retries))
	}
	if r.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(r.FragmentRetries))
	}
	if r.FileAccessRetries > 0 {
		args = append(args, "--file-access-retries", strconv.Itoa(r.FileAccessRetries))
	}
	if strings.TrimSpace(r.RetrySleep) != "" {
		args = append(args, "--retry-sleep", r.RetrySleep)
	}

	th := o.Throttle
	if th.SleepRequests > 0 {
		args = append(args, "--sleep-requests", formatSeconds(th.SleepRequests))
	}
	if th.SleepInterval > 0 {
		args = append(args, "--sleep-interval", formatSeconds(th.SleepInterval))
		if th.MaxSleepInterval > th.SleepInterval {
			args = append(args, "--max-sleep-interval", formatSeconds(th.MaxSleepInterval))
		}
	}
	if strings.TrimSpace(th.RateLimit) != "" {
		args = append(args, "--limit-rate", th.RateLimit)
	}

	if o.Subtitles != nil {
		args = append(args, "--write-subs", "--write-auto-subs", "--sub-langs", normalizeSubLangs(o.Subtitles.Langs))
		if o.Subtitles.Convert != "" {
			args = append(args, "--convert-subs", o.Subtitles.Convert)
		}
	}
	if o.ExtractAudio != nil {
		args = append(args, "-x", "--audio-format", o.ExtractAudio.Codec)
		if o.ExtractAudio.Quality != "" {
			args = append(args, "--audio-quality", o.ExtractAudio.Quality)
		}
	}

	if strings.TrimSpace(o.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(o.CookiesPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	if strings.TrimSpace(o.CookiesFromBrowser) != "" {
		args = append(args, "--cookies-from-browser", o.CookiesFromBrowser)
	}
	if strings.TrimSpace(o.Proxy) != "" {
		args = append(args, "--proxy", strings.TrimSpace(o.Proxy))
	}
	for _, name := range sortedKeys(o.Headers) {
		args = append(args, "--add-header", name+":"+o.Headers[name])
	}

	for _, key := range sortedKeys(o.Extra) {
		name := optionName(key)
		value := strings.TrimSpace(o.Extra[key])
		switch passthroughOptions[name].kind {
		case kindFlag:
			if !strings.EqualFold(value, "false") {
				args = append(args, "--"+name)
			}
		case kindEnum:
			args = append(args, "--"+name, strings.ToLower(value))
		default:
			args = append(args, "--"+name, value)
		}
	}
	return args, nil
}

func normalizeSubLangs(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "english", "en":
		return "en.*,en,-live_chat"
	case "all":
		return "all,-live_chat"
	default:
		return raw
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
