package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"yt-allinone/internal/model"
)

type rawEntry struct {
	Type       string            `json:"_type"`
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	WebpageURL string            `json:"webpage_url"`
	Title      string            `json:"title"`
	Duration   *float64          `json:"duration"`
	Thumbnails []rawThumbnail    `json:"thumbnails"`
	Tags       json.RawMessage   `json:"tags"`
	Entries    []json.RawMessage `json:"entries"`
}

type rawThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (r rawEntry) thumbnails() []model.Thumbnail {
	out := make([]model.Thumbnail, 0, len(r.Thumbnails))
	for _, t := range r.Thumbnails {
		if strings.TrimSpace(t.URL) == "" {
			continue
		}
		out = append(out, model.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	return out
}

// tags accepts a list or a single string.
func (r rawEntry) tags() []string {
	if len(r.Tags) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(r.Tags, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(r.Tags, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func (r rawEntry) isContainer() bool {
	return r.Entries != nil || r.Type == "playlist" || r.Type == "multi_video"
}

func (r rawEntry) entryURL() string {
	if r.WebpageURL != "" {
		return r.WebpageURL
	}
	if strings.HasPrefix(r.URL, "https://") || strings.HasPrefix(r.URL, "http://") {
		return r.URL
	}
	if r.ID != "" {
		return model.WatchURL(r.ID)
	}
	return ""
}

func parseListing(data []byte) ([]model.Entry, error) {
	var root rawEntry
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	if !root.isContainer() {
		e, ok := toEntry(root, data)
		if !ok {
			return nil, fmt.Errorf("listing item has no id")
		}
		return []model.Entry{e}, nil
	}
	out := make([]model.Entry, 0, len(root.Entries))
	if err := collectEntries(root.Entries, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// collectEntries flattens nested containers such as channel tabs.
func collectEntries(items []json.RawMessage, out *[]model.Entry) error {
	for _, item := range items {
		if len(item) == 0 || string(item) == "null" {
			continue
		}
		var r rawEntry
		if err := json.Unmarshal(item, &r); err != nil {
			return fmt.Errorf("parse listing entry: %w", err)
		}
		if r.Entries != nil {
			if err := collectEntries(r.Entries, out); err != nil {
				return err
			}
			continue
		}
		if e, ok := toEntry(r, item); ok {
			*out = append(*out, e)
		}
	}
	return nil
}

func toEntry(r rawEntry, raw []byte) (model.Entry, bool) {
	if strings.TrimSpace(r.ID) == "" {
		return model.Entry{}, false
	}
	return model.Entry{
		ID:         r.ID,
		URL:        r.entryURL(),
		Title:      r.Title,
		Duration:   r.Duration,
		Thumbnails: r.thumbnails(),
		Tags:       r.tags(),
		Raw:        json.RawMessage(raw),
	}, true
}
