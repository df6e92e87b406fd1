package discovery

import (
	"encoding/json"
	"math"

	"yt-allinone/internal/model"
)

// Rough stream bitrates used when a listing reports no file size.
const (
	audioMbps = 0.192
	mbps480p  = 1.5
	mbps720p  = 3.5
	mbps1080p = 6.0
	mbpsBest  = 8.0
)

// EstimateSize guesses the download size of e in bytes, or 0 when neither a
// reported size nor a duration is known. Reported sizes describe the default
// format, so they are only trusted for best-quality video.
func EstimateSize(e model.Entry, quality model.Quality, onlyAudio bool) int64 {
	if !onlyAudio && (quality == "" || quality == model.QualityBest) {
		if n := reportedSize(e.Raw); n > 0 {
			return n
		}
	}
	if e.Duration == nil || *e.Duration <= 0 {
		return 0
	}
	mbps := estimateMbps(quality)
	if onlyAudio {
		mbps = audioMbps
	}
	return int64(math.Round(*e.Duration * mbps * 1_000_000 / 8))
}

// EstimateTotal sums EstimateSize over entries and reports how many had no
// estimate.
func EstimateTotal(entries []model.Entry, quality model.Quality, onlyAudio bool) (total int64, unknown int) {
	for _, e := range entries {
		n := EstimateSize(e, quality, onlyAudio)
		if n <= 0 {
			unknown++
			continue
		}
		total += n
	}
	return total, unknown
}

func estimateMbps(q model.Quality) float64 {
	switch q {
	case model.Quality480p:
		return mbps480p
	case model.Quality720p:
		return mbps720p
	case model.Quality1080p:
		return mbps1080p
	default:
		return mbpsBest
	}
}

func reportedSize(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var sizes struct {
		Filesize       *float64 `json:"filesize"`
		FilesizeApprox *float64 `json:"filesize_approx"`
	}
	if err := json.Unmarshal(raw, &sizes); err != nil {
		return 0
	}
	for _, v := range []*float64{sizes.Filesize, sizes.FilesizeApprox} {
		if v != nil && *v > 0 {
			return int64(math.Round(*v))
		}
	}
	return 0
}
