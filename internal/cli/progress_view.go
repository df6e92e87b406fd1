package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"yt-allinone/internal/download"
	"yt-allinone/internal/model"
)

// batchView receives everything a running batch reports. Calls may come
// from the manager's reader goroutine and the batch goroutine.
type batchView interface {
	itemStarted(index int, entry model.Entry)
	event(ev model.Event)
	itemFinished(index int, res download.BatchResult)
	close()
}

// lineView prints one line per item outcome. On a terminal it also redraws
// a status line for the current item.
type lineView struct {
	out   io.Writer
	total int
	live  bool

	mu      sync.Mutex
	index   int
	entry   model.Entry
	phase   string
	pct     float64
	speed   float64
	eta     int64
	overall float64

	stop chan struct{}
	done chan struct{}
}

func newLineView(out io.Writer, total int, live bool) *lineView {
	v := &lineView{out: out, total: total, live: live, stop: make(chan struct{}), done: make(chan struct{})}
	if live {
		go v.loop()
	} else {
		close(v.done)
	}
	return v
}

func (v *lineView) loop() {
	defer close(v.done)
	t := time.NewTicker(700 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-t.C:
			v.mu.Lock()
			line := v.render()
			v.mu.Unlock()
			fmt.Fprintf(v.out, "\r\033[2K%s", line)
		}
	}
}

func (v *lineView) itemStarted(index int, entry model.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.index, v.entry = index, entry
	v.phase, v.pct, v.speed, v.eta = "starting", 0, 0, 0
	if !v.live {
		fmt.Fprintf(v.out, "[%d/%d] %s  %s\n", index+1, v.total, entry.ID, entry.Title)
	}
}

func (v *lineView) event(ev model.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch ev.Kind {
	case model.EventProgress:
		if p := ev.Progress; p != nil {
			v.phase = "downloading"
			if p.Status == "finished" {
				v.phase = "processing"
			}
			v.pct, v.speed, v.eta = p.Percent, p.SpeedBps, p.ETASeconds
		}
	case model.EventPaused:
		v.phase = "paused"
	case model.EventResumed:
		v.phase = "downloading"
	case model.EventCancelling:
		v.phase = "cancelling"
	case model.EventOverall:
		v.overall = ev.OverallPercent
	case model.EventDone:
		if ev.Note != "" {
			v.println(fmt.Sprintf("note: %s", ev.Note))
		}
	}
}

func (v *lineView) itemFinished(index int, res download.BatchResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.println(outcomeLine(index, v.total, res))
}

// println writes a whole line, clearing the live status line first.
func (v *lineView) println(s string) {
	if v.live {
		fmt.Fprintf(v.out, "\r\033[2K%s\n", s)
		return
	}
	fmt.Fprintln(v.out, s)
}

func (v *lineView) close() {
	if v.live {
		close(v.stop)
	}
	<-v.done
	if v.live {
		fmt.Fprint(v.out, "\r\033[2K")
	}
}

func (v *lineView) render() string {
	parts := []string{fmt.Sprintf("[%d/%d] %s", v.index+1, v.total, v.entry.ID), v.phase, fmt.Sprintf("%.1f%%", v.pct)}
	if s := formatRate(v.speed); s != "" {
		parts = append(parts, s)
	}
	if eta := formatETASeconds(float64(v.eta)); eta != "" {
		parts = append(parts, "ETA "+eta)
	}
	if v.total > 1 {
		parts = append(parts, fmt.Sprintf("overall %.0f%%", v.overall))
	}
	parts = append(parts, "| "+truncate(v.entry.Title, 52))
	return strings.Join(parts, "  ")
}

func outcomeLine(index, total int, res download.BatchResult) string {
	prefix := fmt.Sprintf("[%d/%d] %s", index+1, total, res.Task.URL)
	switch {
	case res.Err == nil:
		return prefix + "  done"
	case res.Cancelled():
		return prefix + "  cancelled"
	default:
		return prefix + "  failed: " + res.Err.Error()
	}
}

// jsonView writes one JSON object per line for scripts.
type jsonView struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type jsonLine struct {
	Index  int          `json:"index"`
	Type   string       `json:"type"`
	Entry  *model.Entry `json:"entry,omitempty"`
	Event  *model.Event `json:"event,omitempty"`
	Result *resultLine  `json:"result,omitempty"`
}

type resultLine struct {
	URL       string               `json:"url"`
	OK        bool                 `json:"ok"`
	Cancelled bool                 `json:"cancelled,omitempty"`
	Error     *model.DownloadError `json:"error,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
	Message   string               `json:"message,omitempty"`
}

func newJSONView(out io.Writer) *jsonView {
	return &jsonView{enc: json.NewEncoder(out)}
}

func (v *jsonView) write(l jsonLine) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.enc.Encode(l)
}

func (v *jsonView) itemStarted(index int, entry model.Entry) {
	v.write(jsonLine{Index: index, Type: "start", Entry: &entry})
}

func (v *jsonView) event(ev model.Event) {
	v.write(jsonLine{Index: -1, Type: "event", Event: &ev})
}

func (v *jsonView) itemFinished(index int, res download.BatchResult) {
	v.write(jsonLine{Index: index, Type: "result", Result: newResultLine(res)})
}

func (v *jsonView) close() {}

func newResultLine(res download.BatchResult) *resultLine {
	r := &resultLine{URL: res.Task.URL, OK: res.Err == nil, Cancelled: res.Cancelled()}
	if res.Err != nil && !r.Cancelled {
		if derr, ok := asDownloadError(res.Err); ok {
			r.Error = derr
			r.Retryable = derr.Retryable()
		} else {
			r.Message = res.Err.Error()
		}
	}
	return r
}
