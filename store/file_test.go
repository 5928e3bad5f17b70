package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/taskkit/errors"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	s, err := NewFileStore(FileConfig{
		Path:             path,
		DebounceInterval: 10 * time.Millisecond,
		RetryDelay:       5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s, path
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, _ := newTestFileStore(t)
	defer s.Close(context.Background())

	if err := s.Save(sampleRecords()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertRecordsEqual(t, sampleRecords(), got)
}

func TestFileStoreLoadMissing(t *testing.T) {
	s, _ := newTestFileStore(t)
	defer s.Close(context.Background())

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set for fresh store, got %d records", len(got))
	}
}

func TestFileStoreEnvelopeOnDisk(t *testing.T) {
	s, path := newTestFileStore(t)
	defer s.Close(context.Background())

	s.Save(sampleRecords())
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading task file: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("task file is not a valid envelope: %v", err)
	}
	if env.Version != EnvelopeVersion {
		t.Errorf("envelope version = %q, want %q", env.Version, EnvelopeVersion)
	}
	if len(env.Records) != 2 {
		t.Errorf("envelope records = %d, want 2", len(env.Records))
	}
}

func TestFileStoreDebounceCoalesces(t *testing.T) {
	s, path := newTestFileStore(t)
	defer s.Close(context.Background())

	// Burst of saves within the debounce window
	records := sampleRecords()
	for i := 0; i < 10; i++ {
		records[1].Content = "Write release notes, revision " + string(rune('a'+i))
		if err := s.Save(records); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	// Nothing should be on disk yet
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Log("file may exist if the window elapsed; only the final content matters")
	}

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.HasSuffix(got[1].Content, "revision j") {
		t.Errorf("expected last write to win, got %q", got[1].Content)
	}
}

func TestFileStoreLegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	// Pre-envelope format: a bare array of tasks
	legacy, _ := json.Marshal(sampleRecords())
	if err := os.WriteFile(path, legacy, 0644); err != nil {
		t.Fatalf("writing legacy file: %v", err)
	}

	s, err := NewFileStore(FileConfig{Path: path, DebounceInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close(context.Background())

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load of legacy file failed: %v", err)
	}
	assertRecordsEqual(t, sampleRecords(), got)

	// The next save rewrites as a v1 envelope
	s.Save(got)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("migrated file is not an envelope: %v", err)
	}
	if env.Version != EnvelopeVersion {
		t.Errorf("migrated version = %q, want %q", env.Version, EnvelopeVersion)
	}
}

func TestFileStoreUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `{"version": "v9", "records": []}`
	os.WriteFile(path, []byte(content), 0644)

	s, err := NewFileStore(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close(context.Background())

	_, err = s.Load()
	if err == nil {
		t.Fatal("Load of future-version file should fail")
	}
	if !errors.Is(err, errors.ErrCodeStorage) {
		t.Errorf("expected STORAGE error, got %v", err)
	}
	if !strings.Contains(err.Error(), "v9") {
		t.Errorf("error should name the unsupported version, got: %v", err)
	}
}

func TestFileStoreRecoversFromBackup(t *testing.T) {
	s, path := newTestFileStore(t)

	// First generation
	s.Save(sampleRecords())
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("first Flush failed: %v", err)
	}

	// Second generation rotates the first into .bak
	updated := sampleRecords()
	updated[1].Content = "Updated content"
	s.Save(updated)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
	s.Close(context.Background())

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup artifact: %v", err)
	}

	// Corrupt the primary; load should fall back to the backup
	os.WriteFile(path, []byte("{not json"), 0644)

	s2, err := NewFileStore(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s2.Close(context.Background())

	got, err := s2.Load()
	if err != nil {
		t.Fatalf("Load should have recovered from backup: %v", err)
	}
	assertRecordsEqual(t, sampleRecords(), got)
}

func TestFileStoreUnrecoverableFailsLoudly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	s, err := NewFileStore(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close(context.Background())

	_, err = s.Load()
	if err == nil {
		t.Fatal("unrecoverable corruption should fail loudly, not return an empty set")
	}
	if !errors.Is(err, errors.ErrCodeStorage) {
		t.Errorf("expected STORAGE error, got %v", err)
	}
}

func TestFileStoreSchemaValidationRejectsMalformedEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	// Valid JSON, but records is not an array
	os.WriteFile(path, []byte(`{"version": "v1", "records": "oops"}`), 0644)

	s, err := NewFileStore(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close(context.Background())

	if _, err := s.Load(); err == nil {
		t.Fatal("malformed envelope should fail validation")
	}
}

func TestFileStoreCloseFlushesPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s, err := NewFileStore(FileConfig{
		Path:             path,
		DebounceInterval: time.Hour, // never fires on its own
	})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	s.Save(sampleRecords())
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("pending write was not flushed on close: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("flushed file invalid: %v", err)
	}
	if len(env.Records) != 2 {
		t.Errorf("flushed records = %d, want 2", len(env.Records))
	}
}

func TestFileStoreClosedOperationsFail(t *testing.T) {
	s, _ := newTestFileStore(t)
	s.Close(context.Background())

	if err := s.Save(sampleRecords()); err == nil {
		t.Error("Save on closed store should fail")
	}
	if err := s.Flush(context.Background()); err == nil {
		t.Error("Flush on closed store should fail")
	}
	// Second close is a no-op
	if err := s.Close(context.Background()); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
