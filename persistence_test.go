package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func writeStatsFile(t *testing.T, dir, sessionID string, content []byte, modTime *time.Time) string {
	t.Helper()
	path := filepath.Join(dir, sessionID+".json")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if modTime != nil {
		_ = os.Chtimes(path, *modTime, *modTime)
	}
	return path
}

func TestSaveAndLoadStats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	sessionID := uuid.NewString()
	stats := &PlayerStats{GamesPlayed: 3, GamesWon: 2, CurrentStreak: 1, MaxStreak: 2, BestScore: 20, VerbsMastered: []string{"γράφω"}}

	if err := saveStatsToFile(dir, sessionID, stats); err != nil {
		t.Fatalf("saveStatsToFile: %v", err)
	}
	if stats.UpdatedAt.IsZero() {
		t.Error("saveStatsToFile did not stamp UpdatedAt")
	}
	if _, err := os.Stat(filepath.Join(dir, sessionID+".json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := loadStatsFromFile(dir, sessionID, time.Hour)
	if err != nil {
		t.Fatalf("loadStatsFromFile: %v", err)
	}
	if loaded.GamesWon != 2 || loaded.BestScore != 20 || len(loaded.VerbsMastered) != 1 {
		t.Errorf("loaded stats = %+v", loaded)
	}
}

func TestLoadStatsFromFile_RemovesBadFiles(t *testing.T) {
	dir := t.TempDir()
	valid, _ := json.Marshal(PlayerStats{GamesPlayed: 1})
	old := time.Now().Add(-3 * time.Hour)

	cases := []struct {
		name    string
		content []byte
		modTime *time.Time
	}{
		{"stale", valid, &old},
		{"corrupt", []byte("{not json"), nil},
		{"won more than played", []byte(`{"gamesPlayed":1,"gamesWon":2}`), nil},
		{"negative", []byte(`{"gamesPlayed":-1}`), nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sessionID := uuid.NewString()
			path := writeStatsFile(t, dir, sessionID, c.content, c.modTime)

			_, err := loadStatsFromFile(dir, sessionID, 2*time.Hour)
			if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("loadStatsFromFile error = %v, want ErrNotExist", err)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Errorf("bad stats file was not removed: %s", path)
			}
		})
	}
}

func TestLoadStatsFromFile_Missing(t *testing.T) {
	_, err := loadStatsFromFile(t.TempDir(), uuid.NewString(), time.Hour)
	if !os.IsNotExist(err) {
		t.Errorf("missing file error = %v, want not-exist", err)
	}
}

func TestGetSecureSessionPath(t *testing.T) {
	dir := filepath.Join("data", "sessions")
	tests := []struct {
		name      string
		sessionID string
		wantErr   bool
	}{
		{"Valid UUID", uuid.NewString(), false},
		{"Valid UUID with uppercase", "12345678-1234-5678-9ABC-123456789DEF", false},
		{"Too short", "short", true},
		{"Empty", "", true},
		{"Relative traversal", "../../../etc/passwd", true},
		{"Traversal with dots", "12345678-1234-5678-9ABC-123456789../", true},
		{"Absolute path", "/etc/passwd", true},
		{"Bad hex", "12345678-1234-5678-9ABC-123456789XYZ", true},
		{"Slashes", "12345678/1234/5678/9ABC/123456789DEF", true},
		{"Backslashes", "12345678\\1234\\5678\\9ABC\\123456789DEF", true},
		{"Null byte", "session\x00.txt", true},
		{"Braced UUID", "{" + uuid.NewString() + "}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := getSecureSessionPath(dir, tt.sessionID)
			if tt.wantErr {
				if err == nil {
					t.Errorf("getSecureSessionPath() expected error, got %s", got)
				} else if !errors.Is(err, errInvalidSessionID) {
					t.Errorf("getSecureSessionPath() error = %v, want errInvalidSessionID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("getSecureSessionPath() unexpected error = %v", err)
			}
			if want := filepath.Join(dir, tt.sessionID+".json"); got != want {
				t.Errorf("getSecureSessionPath() = %v, want %v", got, want)
			}
			absDir, _ := filepath.Abs(dir)
			absGot, _ := filepath.Abs(got)
			if !strings.HasPrefix(absGot, absDir+string(filepath.Separator)) {
				t.Errorf("path escapes sessions directory: %s", got)
			}
		})
	}
}

func TestSaveStatsToFile_RejectsInvalidSessionID(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"../../../etc/passwd", "", "short"} {
		if err := saveStatsToFile(dir, id, &PlayerStats{}); err == nil {
			t.Errorf("saveStatsToFile(%q) should fail", id)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("invalid ids wrote %d files", len(entries))
	}
}

func TestCleanupOldSessions(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-3 * time.Hour)
	fresh := writeStatsFile(t, dir, uuid.NewString(), []byte("{}"), nil)
	stale := writeStatsFile(t, dir, uuid.NewString(), []byte("{}"), &old)
	other := filepath.Join(dir, "notes.txt")
	_ = os.WriteFile(other, []byte("keep"), 0644)
	_ = os.Chtimes(other, old, old)

	removed, err := cleanupOldSessions(dir, 2*time.Hour)
	if err != nil {
		t.Fatalf("cleanupOldSessions: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d files, want 1", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh stats file was removed")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale stats file was kept")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-stats file was removed")
	}

	if n, err := cleanupOldSessions(filepath.Join(dir, "missing"), time.Hour); err != nil || n != 0 {
		t.Errorf("missing dir cleanup = %d, %v", n, err)
	}
}
