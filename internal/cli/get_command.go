package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"yt-allinone/internal/discovery"
	"yt-allinone/internal/download"
	"yt-allinone/internal/export"
	"yt-allinone/internal/model"
	"yt-allinone/internal/runstore"
)

type getOptions struct {
	quality     string
	out         string
	cookies     string
	subLangs    string
	limit       int
	onlyAudio   bool
	onlyShorts  bool
	onlyRegular bool
	thumb       bool
	exportTags  bool
	dryRun      bool
	subsOnly    bool
	safeMode    bool
	jsonOut     bool
	plain       bool
}

func newGetCommand(a *app) *cobra.Command {
	var o getOptions
	cmd := &cobra.Command{
		Use:   "get <url|@handle>",
		Short: "Download a video, playlist or channel",
		Long: `Resolve a YouTube video, playlist, channel or @handle and download each
entry in turn. Shorts (60 seconds or less, or a /shorts/ URL) and regular
videos can be filtered, and thumbnails and tags exported alongside.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGet(cmd.Context(), args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.quality, "quality", "q", "", "best|1080p|720p|480p (default from config)")
	f.StringVarP(&o.out, "out", "o", "", "output directory (default from config)")
	f.StringVar(&o.cookies, "cookies-from-browser", "", "read cookies from a browser profile ("+model.BrowserList()+")")
	f.IntVar(&o.limit, "limit", 0, "maximum number of entries (0 = all)")
	f.BoolVar(&o.onlyAudio, "only-audio", false, "extract MP3 audio instead of video")
	f.BoolVar(&o.onlyShorts, "only-shorts", false, "only short-form videos")
	f.BoolVar(&o.onlyRegular, "only-regular", false, "only regular videos")
	f.BoolVar(&o.thumb, "thumb", false, "save each entry's best thumbnail as <id>.jpg")
	f.BoolVar(&o.exportTags, "export-tags", false, "append titles and tags to tags.csv and tags.json")
	f.BoolVar(&o.dryRun, "dry-run", false, "list matching entries without downloading")
	f.BoolVar(&o.subsOnly, "subs-only", false, "fetch subtitles only")
	f.StringVar(&o.subLangs, "sub-langs", "", "subtitle languages for --subs-only, e.g. en,vi")
	f.BoolVar(&o.safeMode, "safe-mode", false, "single-threaded fragments and no extra client workarounds")
	f.BoolVar(&o.jsonOut, "json", false, "machine-readable output")
	f.BoolVar(&o.plain, "plain", false, "plain line output, no interactive view")
	cmd.MarkFlagsMutuallyExclusive("only-shorts", "only-regular")
	cmd.MarkFlagsMutuallyExclusive("json", "plain")
	return cmd
}

func (a *app) runGet(ctx context.Context, raw string, o getOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	in, ok := discovery.ParseInput(raw)
	if !ok {
		// other sites the engine supports are listed as given
		u := strings.TrimSpace(raw)
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return fmt.Errorf("not a YouTube video, playlist, channel or handle: %q", raw)
		}
		in = discovery.Input{Kind: discovery.KindURL, CanonicalURL: u, Raw: raw}
	}

	quality := a.cfg.Quality()
	if strings.TrimSpace(o.quality) != "" {
		q, err := model.ParseQuality(o.quality)
		if err != nil {
			return err
		}
		quality = q
	}
	cookies := a.cfg.Browser()
	if strings.TrimSpace(o.cookies) != "" {
		b, err := model.ParseBrowser(o.cookies)
		if err != nil {
			return err
		}
		cookies = b
	}
	outDir := a.cfg.Download.OutDir
	if strings.TrimSpace(o.out) != "" {
		outDir = strings.TrimSpace(o.out)
	}
	filter := discovery.FilterNone
	switch {
	case o.onlyShorts:
		filter = discovery.FilterShorts
	case o.onlyRegular:
		filter = discovery.FilterRegular
	}

	batchID := ksuid.New().String()
	log := a.logger.With("batch_id", batchID)
	log.Info("resolving source", "input", in.Raw, "kind", string(in.Kind), "url", in.CanonicalURL, "filter", string(filter), "limit", o.limit)

	en := a.enumerator()
	entries, err := en.DryRun(ctx, in.CanonicalURL, discovery.DryRunOptions{Filter: filter, Limit: o.limit, Cookies: cookies})
	if err != nil {
		return err
	}

	if o.dryRun {
		if o.jsonOut {
			if err := printJSON(a.stdout, entries); err != nil {
				return err
			}
		} else if err := renderEntriesTable(a.stdout, entries, quality, o.onlyAudio); err != nil {
			return err
		}
		return a.exportExtras(ctx, en, entries, outDir, cookies, o)
	}
	if len(entries) == 0 {
		if o.jsonOut {
			return printJSON(a.stdout, getSummary{BatchID: batchID})
		}
		fmt.Fprintln(a.stdout, "no matching entries")
		return nil
	}

	lock, err := runstore.AcquireRunLock(outDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("release run lock", "dir", outDir, "err", err)
		}
	}()

	mgr := a.manager()
	tasks := make([]model.Task, 0, len(entries))
	for _, e := range entries {
		task := model.NewTask(e.URL, outDir, quality)
		task.OnlyAudio = o.onlyAudio
		task.CookiesSource = cookies
		task.ExtraOptions = taskExtras(o)
		if err := mgr.CheckTask(task); err != nil {
			return err
		}
		tasks = append(tasks, task)
	}

	var results []download.BatchResult
	switch {
	case o.jsonOut:
		results = runBatch(ctx, mgr, tasks, entries, newJSONView(a.stdout))
	case !o.plain && writerIsTTY(a.stdout) && isTerminal(os.Stdin):
		results, err = runBatchTUI(ctx, mgr, tasks, entries, a.stdout)
		if err != nil {
			return err
		}
	default:
		results = runBatch(ctx, mgr, tasks, entries, newLineView(a.stdout, len(tasks), !o.plain && writerIsTTY(a.stdout)))
	}

	summary := summarize(batchID, results)
	log.Info("batch finished", "total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed, "cancelled", summary.Cancelled)

	done := make([]model.Entry, 0, len(entries))
	for i, res := range results {
		if res.Err == nil {
			done = append(done, entries[i])
		}
	}
	if err := a.exportExtras(ctx, en, done, outDir, cookies, o); err != nil {
		return err
	}

	if o.jsonOut {
		if err := printJSON(a.stdout, summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(a.stdout, "downloaded %d/%d into %s", summary.Succeeded, summary.Total, outDir)
		if summary.Failed > 0 || summary.Cancelled > 0 {
			fmt.Fprintf(a.stdout, " (failed %d, cancelled %d)", summary.Failed, summary.Cancelled)
		}
		if summary.Retryable > 0 {
			fmt.Fprintf(a.stdout, "; %d failed with a temporary error and may succeed if run again", summary.Retryable)
		}
		fmt.Fprintln(a.stdout)
	}

	switch {
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d downloads failed", summary.Failed, summary.Total)
	case ctx.Err() != nil:
		return download.ErrCancelled
	}
	return nil
}

func taskExtras(o getOptions) map[string]string {
	extra := map[string]string{}
	if o.subsOnly {
		extra[download.OptSubtitlesOnly] = "true"
		if s := strings.TrimSpace(o.subLangs); s != "" {
			extra[download.OptSubLangs] = s
		}
	}
	if o.safeMode {
		extra[download.OptSafeMode] = "true"
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func runBatch(ctx context.Context, mgr *download.Manager, tasks []model.Task, entries []model.Entry, view batchView) []download.BatchResult {
	remove := mgr.OnProgress(view.event)
	defer remove()
	batch := &download.Batch{
		Manager:   mgr,
		OnOverall: view.event,
		OnStart: func(i int, _ model.Task) {
			view.itemStarted(i, entries[i])
		},
		OnFinish: view.itemFinished,
	}
	results := batch.Run(ctx, tasks)
	view.close()
	return results
}

// tuiView forwards batch callbacks into the bubbletea program.
type tuiView struct{ p *tea.Program }

func (v tuiView) itemStarted(index int, entry model.Entry) {
	v.p.Send(tuiStartMsg{index: index, entry: entry})
}
func (v tuiView) event(ev model.Event) { v.p.Send(tuiEventMsg{ev: ev}) }
func (v tuiView) itemFinished(index int, res download.BatchResult) {
	v.p.Send(tuiFinishMsg{index: index, res: res})
}
func (v tuiView) close() {}

func runBatchTUI(ctx context.Context, mgr *download.Manager, tasks []model.Task, entries []model.Entry, out io.Writer) ([]download.BatchResult, error) {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	p := tea.NewProgram(newTUIModel(mgr, stop, len(tasks)), tea.WithOutput(out))
	var results []download.BatchResult
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		results = runBatch(ctx, mgr, tasks, entries, tuiView{p: p})
		p.Send(tuiDoneMsg{})
	}()

	_, err := p.Run()
	if err != nil {
		stop()
		_ = mgr.Cancel(false)
	}
	<-finished
	return results, err
}

type getSummary struct {
	BatchID   string        `json:"batch_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Retryable int           `json:"retryable"`
	Failures  []*resultLine `json:"failures,omitempty"`
}

func summarize(batchID string, results []download.BatchResult) getSummary {
	s := getSummary{BatchID: batchID, Total: len(results)}
	for _, res := range results {
		switch {
		case res.Err == nil:
			s.Succeeded++
		case res.Cancelled():
			s.Cancelled++
		default:
			s.Failed++
			line := newResultLine(res)
			if line.Retryable {
				s.Retryable++
			}
			s.Failures = append(s.Failures, line)
		}
	}
	return s
}

func (a *app) exportExtras(ctx context.Context, en *discovery.Enumerator, entries []model.Entry, outDir string, cookies model.Browser, o getOptions) error {
	if len(entries) == 0 || (!o.thumb && !o.exportTags) {
		return nil
	}
	if o.thumb {
		f := &export.Fetcher{Logger: a.logger}
		saved := 0
		for _, e := range entries {
			if _, err := f.SaveThumbnail(ctx, e, outDir); err != nil {
				a.logger.Warn("thumbnail not saved", "id", e.ID, "err", err)
				fmt.Fprintf(a.stderr, "warning: %v\n", err)
				continue
			}
			saved++
		}
		if !o.jsonOut {
			fmt.Fprintf(a.stdout, "saved %d/%d thumbnails to %s\n", saved, len(entries), outDir)
		}
	}
	if o.exportTags {
		fillTags(ctx, en, entries, cookies, a.logger)
		if err := export.ExportTags(entries, outDir); err != nil {
			return fmt.Errorf("export tags: %w", err)
		}
		if !o.jsonOut {
			fmt.Fprintf(a.stdout, "exported tags for %d entries to %s and %s\n", len(entries), export.TagsCSV, export.TagsJSON)
		}
	}
	return nil
}

// fillTags fetches full metadata for entries the flat listing left without
// tags. A failed lookup exports the entry with what is already known.
func fillTags(ctx context.Context, en *discovery.Enumerator, entries []model.Entry, cookies model.Browser, logger *slog.Logger) {
	for i := range entries {
		if len(entries[i].Tags) > 0 {
			continue
		}
		full, err := en.ListEntries(ctx, entries[i].URL, cookies, false)
		if err != nil || len(full) == 0 {
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			logger.Warn("tags lookup failed", "id", entries[i].ID, "err", err)
			continue
		}
		entries[i].Tags = full[0].Tags
		if entries[i].Title == "" {
			entries[i].Title = full[0].Title
		}
	}
}

func asDownloadError(err error) (*model.DownloadError, bool) {
	var derr *model.DownloadError
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}
