package credstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadMissingCredentialIsEmpty(t *testing.T) {
	s := New(nil, "", t.TempDir(), testLogger())

	key, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing credential", err)
	}
	if key != "" {
		t.Errorf("Load() = %q, want empty string", key)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := New(nil, "", t.TempDir(), testLogger())

	if err := s.Save(context.Background(), "sekrit-token"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	key, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if key != "sekrit-token" {
		t.Errorf("Load() = %q, want the saved credential", key)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := New(nil, "", t.TempDir(), testLogger())
	ctx := context.Background()

	if err := s.Save(ctx, "old"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "new"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	key, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if key != "new" {
		t.Errorf("Load() = %q, want the replacement credential", key)
	}
}

func TestSaveFiresChangeHooks(t *testing.T) {
	s := New(nil, "", t.TempDir(), testLogger())

	fired := 0
	s.OnChange(func() { fired++ })
	s.OnChange(func() { fired++ })

	if err := s.Save(context.Background(), "k"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if fired != 2 {
		t.Errorf("change hooks fired %d times, want 2", fired)
	}
}

func TestSaveWritesRestrictedPermissions(t *testing.T) {
	dir := t.TempDir()
	s := New(nil, "", dir, testLogger())

	if err := s.Save(context.Background(), "k"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, objectName))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("credential file mode = %o, want 600", perm)
	}
}

func TestSaveRecordsTimestamp(t *testing.T) {
	dir := t.TempDir()
	s := New(nil, "", dir, testLogger())

	if err := s.Save(context.Background(), "k"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, objectName))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var cred credential
	if err := json.Unmarshal(data, &cred); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cred.SavedAt.IsZero() {
		t.Error("saved credential has zero timestamp")
	}
}

func TestLoadCorruptCredentialIsError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, objectName), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := New(nil, "", dir, testLogger())

	if _, err := s.Load(context.Background()); err == nil {
		t.Error("Load() error = nil, want unmarshal error for corrupt file")
	}
}
