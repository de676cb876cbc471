package runlock

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
)

func TestTryAcquireInProcess(t *testing.T) {
	l := New("")

	release, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := l.TryAcquire(); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second acquire error = %v, want ErrRunInProgress", err)
	}

	release()
	release2, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestTryAcquireFileLockHeldElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	l := New(path)

	other := flock.New(path)
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("failed to take competing lock: %v", err)
	}

	if _, err := l.TryAcquire(); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("acquire error = %v, want ErrRunInProgress", err)
	}

	if err := other.Unlock(); err != nil {
		t.Fatal(err)
	}
	release, err := l.TryAcquire()
	if err != nil {
		t.Fatalf("acquire after competing unlock: %v", err)
	}
	release()
}

func TestTryAcquireFileLockReleased(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	l := New(path)

	release, err := l.TryAcquire()
	if err != nil {
		t.Fatal(err)
	}
	release()

	other := flock.New(path)
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("file lock should be free after release: locked=%v err=%v", locked, err)
	}
	_ = other.Unlock()
}
