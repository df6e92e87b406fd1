package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"yt-allinone/internal/model"
	"yt-allinone/internal/runstore"
)

const (
	TagsCSV  = "tags.csv"
	TagsJSON = "tags.json"
)

type TagRecord struct {
	VideoID string   `json:"videoId"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
}

// ExportTags appends one record per entry to tags.csv and tags.json in dir.
// Both files accumulate across runs; re-exporting an entry adds it again.
func ExportTags(entries []model.Entry, dir string) error {
	if err := runstore.Mkdir(dir); err != nil {
		return err
	}
	records := make([]TagRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, normalize(e))
	}
	if err := appendCSV(filepath.Join(dir, TagsCSV), records); err != nil {
		return err
	}
	return appendJSON(filepath.Join(dir, TagsJSON), records)
}

func appendCSV(path string, records []TagRecord) error {
	f, created, err := runstore.OpenAppend(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if created {
		_ = w.Write([]string{"videoId", "title", "tags"})
	}
	for _, r := range records {
		tags := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(strings.Join(r.Tags, ","))
		_ = w.Write([]string{r.VideoID, r.Title, tags})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func appendJSON(path string, records []TagRecord) error {
	var existing []TagRecord
	// missing, unreadable or not an array: start over
	if err := runstore.ReadJSON(path, &existing); err != nil {
		existing = nil
	}
	existing = append(make([]TagRecord, 0, len(existing)+len(records)), existing...)
	existing = append(existing, records...)
	return runstore.WriteJSON(path, existing)
}

type rawTags struct {
	ID      string          `json:"id"`
	VideoID string          `json:"video_id"`
	Title   string          `json:"title"`
	Tags    json.RawMessage `json:"tags"`
}

// normalize fills missing fields from the engine's raw metadata. A single
// string tag becomes a one-element list.
func normalize(e model.Entry) TagRecord {
	r := TagRecord{VideoID: e.ID, Title: e.Title, Tags: e.Tags}
	if len(e.Raw) > 0 && (r.VideoID == "" || r.Title == "" || r.Tags == nil) {
		var raw rawTags
		if err := json.Unmarshal(e.Raw, &raw); err == nil {
			if r.VideoID == "" {
				r.VideoID = raw.ID
			}
			if r.VideoID == "" {
				r.VideoID = raw.VideoID
			}
			if r.Title == "" {
				r.Title = raw.Title
			}
			if r.Tags == nil {
				r.Tags = parseTags(raw.Tags)
			}
		}
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}

func parseTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if v == nil {
				continue
			}
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
