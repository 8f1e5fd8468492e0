package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinical-guardrails/guardrails/pkg/protocols"
)

const configV1 = `
version: "1.0"
checkers:
  allergy_checks: {enabled: true}
rules:
  allergy_checks:
    - name: Penicillin Allergy
      pattern:
        patient_allergies: [penicillin]
        conflicts: {medications: [amoxicillin]}
      severity: CRITICAL
      message: Patient is allergic to penicillin
`

const configV2 = `
version: "1.1"
checkers:
  allergy_checks: {enabled: true}
rules:
  allergy_checks:
    - name: Penicillin Allergy
      pattern:
        patient_allergies: [penicillin]
        conflicts: {medications: [amoxicillin]}
      severity: CRITICAL
      message: Patient is allergic to penicillin
    - name: Sulfa Allergy
      pattern:
        patient_allergies: [sulfa]
        conflicts: {medications: [sulfamethoxazole]}
      severity: HIGH
      message: Patient is allergic to sulfa
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

func newTestManager(t *testing.T, watch bool) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medical_protocols.yaml")
	writeFile(t, path, configV1)

	m, err := New(Config{Path: path, Watch: watch, DebounceInterval: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return m, path
}

// TestManager_Load tests the initial load and status.
func TestManager_Load(t *testing.T) {
	m, path := newTestManager(t, false)

	if m.Current() != nil {
		t.Fatalf("Current() should be nil before Load")
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	cfg := m.Current()
	if cfg == nil || cfg.Version != "1.0" {
		t.Fatalf("Current() = %+v, want version 1.0", cfg)
	}

	st := m.Status()
	if !st.Loaded || st.Rules != 1 || st.Path != path || st.Digest == "" {
		t.Errorf("Status() = %+v", st)
	}

	snapCfg, digest := m.Snapshot()
	if snapCfg != cfg || digest != st.Digest {
		t.Errorf("Snapshot() = (%p, %q), want (%p, %q)", snapCfg, digest, cfg, st.Digest)
	}
}

// TestManager_ReloadKeepsLastGood tests that a bad file leaves the previous
// configuration active.
func TestManager_ReloadKeepsLastGood(t *testing.T) {
	m, path := newTestManager(t, false)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	before := m.Current()

	writeFile(t, path, "settings: {}\nrules: {}\n")
	err := m.Reload()
	if !errors.Is(err, protocols.ErrMissingVersion) {
		t.Fatalf("Reload() error = %v, want ErrMissingVersion", err)
	}
	if m.Current() != before {
		t.Errorf("Current() changed after failed reload")
	}
	if m.Status().LastLoadError == nil {
		t.Errorf("Status().LastLoadError should be set")
	}

	writeFile(t, path, configV2)
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if got := m.Current().Version; got != "1.1" {
		t.Errorf("Version = %s, want 1.1", got)
	}
	if before.RuleCount() != 1 {
		t.Errorf("previous snapshot was mutated: %d rules", before.RuleCount())
	}
}

// TestManager_ReloadBeforeLoad tests that Reload requires a loaded config.
func TestManager_ReloadBeforeLoad(t *testing.T) {
	m, _ := newTestManager(t, false)
	if err := m.Reload(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Reload() error = %v, want ErrNotLoaded", err)
	}
}

// TestManager_OnReload tests observer notification for success and failure.
func TestManager_OnReload(t *testing.T) {
	m, path := newTestManager(t, false)

	var mu sync.Mutex
	var events []ReloadEvent
	m.OnReload(func(e ReloadEvent) {
		// Observers may call back into the manager.
		_ = m.Status()
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	writeFile(t, path, "version: \"9.0\"\nrules: {}\n")
	_ = m.Reload()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if !events[0].Success || !events[0].Initial {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Success || !errors.Is(events[1].Err, protocols.ErrUnsupportedVersion) {
		t.Errorf("second event = %+v", events[1])
	}
}

// TestManager_Watch tests hot reload after a file write.
func TestManager_Watch(t *testing.T) {
	m, path := newTestManager(t, true)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	var reloads atomic.Int32
	m.OnReload(func(e ReloadEvent) {
		if e.Success && !e.Initial {
			reloads.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Watch(ctx); err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer m.Close()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, configV2)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reloads.Load() > 0 && m.Current().Version == "1.1" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("configuration was not reloaded; version = %s", m.Current().Version)
}

// TestManager_WatchAfterCancel tests that a cancelled watch releases its
// state so watching can start again.
func TestManager_WatchAfterCancel(t *testing.T) {
	m, _ := newTestManager(t, true)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Watch(ctx); err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := m.Watch(context.Background())
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Watch() after cancel failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestManager_SnapshotDuringReload tests that readers always see a config
// and digest from the same load while reloads swap them.
func TestManager_SnapshotDuringReload(t *testing.T) {
	m, path := newTestManager(t, false)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	_, digestV1 := m.Snapshot()

	replace := func(content string) {
		tmp := path + ".tmp"
		writeFile(t, tmp, content)
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("Rename() failed: %v", err)
		}
	}
	replace(configV2)
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	_, digestV2 := m.Snapshot()
	if digestV1 == digestV2 {
		t.Fatalf("digests should differ between versions")
	}
	want := map[string]string{"1.0": digestV1, "1.1": digestV2}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mismatches atomic.Int32
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cfg, digest := m.Snapshot()
				if cfg == nil || want[cfg.Version] != digest {
					mismatches.Add(1)
					continue
				}
				_ = cfg.RuleCount()
			}
		}()
	}

	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			replace(configV1)
		} else {
			replace(configV2)
		}
		if err := m.Reload(); err != nil {
			t.Errorf("Reload() failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	if n := mismatches.Load(); n != 0 {
		t.Errorf("%d snapshots paired a config with another load's digest", n)
	}
}

// TestManager_WatchDisabled tests that Watch refuses when disabled.
func TestManager_WatchDisabled(t *testing.T) {
	m, _ := newTestManager(t, false)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := m.Watch(context.Background()); err == nil {
		t.Errorf("Watch() succeeded with watching disabled")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

// TestDebouncer tests that rapid triggers collapse into one callback.
func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}
