package ytdlp

import (
	"encoding/json"
	"strings"

	"yt-allinone/internal/model"
)

// ProgressPrefix marks machine-readable progress lines on the engine's stdout.
const ProgressPrefix = "[progress]"

type progressPayload struct {
	Status             string   `json:"status"`
	DownloadedBytes    *float64 `json:"downloaded_bytes"`
	TotalBytes         *float64 `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
	Speed              *float64 `json:"speed"`
	ETA                *float64 `json:"eta"`
	Elapsed            *float64 `json:"elapsed"`
	FragmentIndex      *float64 `json:"fragment_index"`
	FragmentCount      *float64 `json:"fragment_count"`
	Filename           string   `json:"filename"`
}

// ParseProgressLine decodes one progress-template line. Lines without the
// prefix, or with an undecodable payload, are reported as not progress.
func ParseProgressLine(line string) (model.Progress, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ProgressPrefix) {
		return model.Progress{}, false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(trimmed, ProgressPrefix))
	var p progressPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Progress{}, false
	}

	out := model.Progress{
		Status:          p.Status,
		DownloadedBytes: int64(value(p.DownloadedBytes)),
		SpeedBps:        value(p.Speed),
		ETASeconds:      int64(value(p.ETA)),
		Filename:        p.Filename,
		FragmentIndex:   int(value(p.FragmentIndex)),
		FragmentCount:   int(value(p.FragmentCount)),
	}
	total := value(p.TotalBytes)
	if total <= 0 {
		total = value(p.TotalBytesEstimate)
	}
	out.TotalBytes = int64(total)
	out.Percent = percentOf(p, total)
	return out, true
}

func percentOf(p progressPayload, total float64) float64 {
	if p.Status == "finished" {
		return 100
	}
	if total > 0 && p.DownloadedBytes != nil {
		return model.ClampPercent(*p.DownloadedBytes * 100 / total)
	}
	if count := value(p.FragmentCount); count > 0 {
		return model.ClampPercent(value(p.FragmentIndex) * 100 / count)
	}
	if p.ETA != nil && p.Elapsed != nil {
		if sum := *p.Elapsed + *p.ETA; sum > 0 {
			return model.ClampPercent(*p.Elapsed * 100 / sum)
		}
	}
	return 0
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
