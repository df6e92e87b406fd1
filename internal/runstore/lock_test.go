package runstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireRunLock_BlocksConcurrentAcquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireRunLock(dir)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	_, err = AcquireRunLock(dir)
	if err == nil {
		t.Fatalf("expected second acquire to fail")
	}
	if !strings.Contains(err.Error(), "in use") {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireRunLock(dir)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireRunLock_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	lock, err := AcquireRunLock(dir)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()
	if _, err := os.Stat(filepath.Join(dir, runLockDirName)); err != nil {
		t.Fatalf("expected lock dir: %v", err)
	}
}

func TestAcquireRunLock_ReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, runLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// pid far above any default pid_max
	stale := runLockOwner{PID: 1 << 30, CreatedAt: "2020-01-01T00:00:00Z", Hostname: hostnameOrUnknown()}
	if err := WriteJSON(filepath.Join(lockDir, runLockOwnerFile), stale); err != nil {
		t.Fatalf("write owner: %v", err)
	}

	lock, err := AcquireRunLock(dir)
	if err != nil {
		t.Fatalf("expected stale lock to be reclaimed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestOpenAppend_ReportsCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tags.csv")
	f, created, err := OpenAppend(path)
	if err != nil {
		t.Fatalf("OpenAppend: %v", err)
	}
	if !created {
		t.Fatalf("expected new file to be reported as created")
	}
	_, _ = f.WriteString("a\n")
	_ = f.Close()

	f, created, err = OpenAppend(path)
	if err != nil {
		t.Fatalf("OpenAppend: %v", err)
	}
	if created {
		t.Fatalf("expected existing file not to be reported as created")
	}
	_, _ = f.WriteString("b\n")
	_ = f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestWriteJSON_Atomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	if err := WriteJSON(path, []string{"x"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got []string
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("unexpected contents: %v", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}
