package model

import "time"

type EventKind string

const (
	EventProgress   EventKind = "progress"
	EventPaused     EventKind = "paused"
	EventResumed    EventKind = "resumed"
	EventCancelling EventKind = "cancelling"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
	EventOverall    EventKind = "overall"
)

// Event is what the manager reports to observers. Exactly one of Progress or
// Error is set for progress and error events; other kinds carry no payload
// besides Note or OverallPercent.
type Event struct {
	Kind           EventKind      `json:"kind"`
	TaskID         string         `json:"task_id,omitempty"`
	At             time.Time      `json:"at"`
	Progress       *Progress      `json:"progress,omitempty"`
	Error          *DownloadError `json:"error,omitempty"`
	Note           string         `json:"note,omitempty"`
	OverallPercent float64        `json:"overall_percent,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

type Progress struct {
	Status          string  `json:"status,omitempty"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes,omitempty"`
	SpeedBps        float64 `json:"speed_bps,omitempty"`
	ETASeconds      int64   `json:"eta_seconds,omitempty"`
	Filename        string  `json:"filename,omitempty"`
	FragmentIndex   int     `json:"fragment_index,omitempty"`
	FragmentCount   int     `json:"fragment_count,omitempty"`
	Percent         float64 `json:"percent"`
}

func NewEvent(kind EventKind, taskID string) Event {
	return Event{Kind: kind, TaskID: taskID, At: time.Now()}
}

func OverallEvent(percent float64) Event {
	e := NewEvent(EventOverall, "")
	e.OverallPercent = ClampPercent(percent)
	return e
}

func ClampPercent(p float64) float64 {
	switch {
	case p != p, p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
