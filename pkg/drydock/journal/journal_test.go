package journal

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := j.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	return j
}

func testBundle() BundleRef {
	return BundleRef{
		Name:      "lanstack",
		Version:   "1.0.0",
		Platform:  "linux/amd64",
		SHA256:    "abc123",
		SizeBytes: 1 << 30,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates journal with valid directory", func(t *testing.T) {
		t.Parallel()

		j, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New() error = %v, want nil", err)
		}
		if j == nil {
			t.Fatal("New() returned nil")
		}
	})

	t.Run("returns error for empty directory", func(t *testing.T) {
		t.Parallel()

		_, err := New("")
		if err == nil {
			t.Fatal("New() error = nil, want error for empty directory")
		}
	})
}

func TestJournal_LogInstall(t *testing.T) {
	t.Parallel()

	t.Run("logs install run with stages", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		stages := []StageRecord{
			{Name: "detect_host", Outcome: OutcomeSucceeded, DurationMS: 12},
			{Name: "compute_budget", Outcome: OutcomeSucceeded, DurationMS: 1},
			{Name: "install_system_packages", Outcome: OutcomeFailed, Error: "dpkg exited 1", DurationMS: 4310},
		}

		entry, err := j.LogInstall(testBundle(), stages, OutcomeFailed, "stage install_system_packages: dpkg exited 1", 5*time.Second)
		if err != nil {
			t.Fatalf("LogInstall() error = %v", err)
		}

		if entry.Operation != OpInstall {
			t.Errorf("Operation = %v, want %v", entry.Operation, OpInstall)
		}
		if !strings.HasPrefix(entry.ID, "install-") {
			t.Errorf("ID = %q, want install- prefix", entry.ID)
		}
		if entry.Summary.StagesRun != 3 {
			t.Errorf("StagesRun = %v, want 3", entry.Summary.StagesRun)
		}
		if entry.Summary.DurationMS != 5000 {
			t.Errorf("DurationMS = %v, want 5000", entry.Summary.DurationMS)
		}
		if entry.Outcome != OutcomeFailed {
			t.Errorf("Outcome = %v, want %v", entry.Outcome, OutcomeFailed)
		}
	})

	t.Run("persists entry to disk", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		entry, err := j.LogInstall(testBundle(), nil, OutcomeSucceeded, "", time.Second)
		if err != nil {
			t.Fatalf("LogInstall() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(j.dir, entry.ID+".json")); err != nil {
			t.Errorf("entry file not written: %v", err)
		}
	})
}

func TestJournal_LogBundle(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)

	entry, err := j.LogBundle(testBundle(), OutcomeSucceeded, "", 90*time.Second)
	if err != nil {
		t.Fatalf("LogBundle() error = %v", err)
	}

	if !strings.HasPrefix(entry.ID, "bundle-") {
		t.Errorf("ID = %q, want bundle- prefix", entry.ID)
	}
	if entry.Bundle.Name != "lanstack" {
		t.Errorf("Bundle.Name = %q, want lanstack", entry.Bundle.Name)
	}
	if entry.Summary.StagesRun != 0 {
		t.Errorf("StagesRun = %v, want 0 for bundle runs", entry.Summary.StagesRun)
	}
}

func TestJournal_List(t *testing.T) {
	t.Parallel()

	t.Run("returns entries newest first", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		for range 3 {
			if _, err := j.LogBundle(testBundle(), OutcomeSucceeded, "", time.Second); err != nil {
				t.Fatal(err)
			}
			time.Sleep(5 * time.Millisecond)
		}

		entries, err := j.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("len(entries) = %v, want 3", len(entries))
		}
		for i := 1; i < len(entries); i++ {
			if entries[i].Timestamp.After(entries[i-1].Timestamp) {
				t.Error("entries not sorted newest first")
			}
		}
	})

	t.Run("applies limit", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		for range 5 {
			if _, err := j.LogBundle(testBundle(), OutcomeSucceeded, "", time.Second); err != nil {
				t.Fatal(err)
			}
		}

		entries, err := j.List(2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("len(entries) = %v, want 2", len(entries))
		}
	})

	t.Run("returns empty slice for missing directory", func(t *testing.T) {
		t.Parallel()

		j, err := New(filepath.Join(t.TempDir(), "never-created"))
		if err != nil {
			t.Fatal(err)
		}

		entries, err := j.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if entries == nil || len(entries) != 0 {
			t.Errorf("entries = %v, want empty slice", entries)
		}
	})
}

func TestJournal_Get(t *testing.T) {
	t.Parallel()

	t.Run("retrieves entry by id", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		logged, err := j.LogInstall(testBundle(), nil, OutcomeSucceeded, "", time.Second)
		if err != nil {
			t.Fatal(err)
		}

		got, err := j.Get(logged.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ID != logged.ID {
			t.Errorf("ID = %q, want %q", got.ID, logged.ID)
		}
	})

	t.Run("returns error for unknown id", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		if _, err := j.Get("install-2020-01-01T00-00-00-ffffff"); err == nil {
			t.Error("Get() error = nil, want error for unknown id")
		}
	})

	t.Run("returns error for empty id", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		if _, err := j.Get(""); err == nil {
			t.Error("Get() error = nil, want error for empty id")
		}
	})
}

func TestJournal_Cleanup(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)

	old, err := j.LogBundle(testBundle(), OutcomeSucceeded, "", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	recent, err := j.LogInstall(testBundle(), nil, OutcomeSucceeded, "", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	// Age the first entry past the retention window.
	oldPath := filepath.Join(j.dir, old.ID+".json")
	aged := time.Now().AddDate(0, 0, -100)
	if err := os.Chtimes(oldPath, aged, aged); err != nil {
		t.Fatal(err)
	}

	if err := j.Cleanup(90); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("aged entry not removed")
	}
	if _, err := j.Get(recent.ID); err != nil {
		t.Errorf("recent entry removed: %v", err)
	}
}

func TestJournal_ConcurrentLogging(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.LogBundle(testBundle(), OutcomeSucceeded, "", time.Second); err != nil {
				t.Errorf("LogBundle() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := j.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 10 {
		t.Errorf("len(entries) = %v, want 10", len(entries))
	}
}
