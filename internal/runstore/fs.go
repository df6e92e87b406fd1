package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically: the data goes to a temp file in the
// same directory first, so readers never see a partial thumbnail or tag
// export.
func WriteBytes(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := Mkdir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".yt-allinone-tmp-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	staged := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(staged)
		}
	}()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	switch {
	case werr != nil:
		return fmt.Errorf("stage %s: %w", path, werr)
	case cerr != nil:
		return fmt.Errorf("stage %s: %w", path, cerr)
	}
	// CreateTemp makes 0600 files; exports are meant to be shared.
	if err := os.Chmod(staged, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(staged, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// OpenAppend opens path for appending and reports whether it was created.
func OpenAppend(path string) (*os.File, bool, error) {
	if err := Mkdir(filepath.Dir(path)); err != nil {
		return nil, false, err
	}
	created := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created = true
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open %s for append: %w", path, err)
	}
	if !created {
		if info, err := f.Stat(); err == nil && info.Size() == 0 {
			created = true
		}
	}
	return f, created, nil
}
