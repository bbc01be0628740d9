package overlay

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/roster/internal/models"
	"github.com/starford/roster/internal/storage"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ExternalEditReloads(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := Open(fs, quietLogger())
	_ = store.Upsert(models.Character{ID: -1, Name: "Nova"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go Watch(ctx, store, fs, quietLogger(), func() { reloads.Add(1) })
	time.Sleep(100 * time.Millisecond)

	payload := []byte(`[{"id":-1,"name":"Nova"},{"id":-2,"name":"Edited by hand"}]`)
	_ = os.WriteFile(filepath.Join(fs.Root(), RecordsKey+".json"), payload, 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := store.Get(-2)
		return ok
	}, "external edit not reloaded")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return reloads.Load() >= 1
	}, "expected reload callback")
}

func TestWatch_OwnWritesDoNotNotify(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := Open(fs, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go Watch(ctx, store, fs, quietLogger(), func() { reloads.Add(1) })
	time.Sleep(100 * time.Millisecond)

	_ = store.Upsert(models.Character{ID: -1, Name: "Nova"})
	_ = store.Tombstone(5)

	time.Sleep(600 * time.Millisecond)
	if n := reloads.Load(); n != 0 {
		t.Errorf("reload callbacks = %d, want 0 for own writes", n)
	}
}
