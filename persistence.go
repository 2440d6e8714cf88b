package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var errInvalidSessionID = errors.New("invalid session ID format")

// getSecureSessionPath returns the stats file for sessionID inside dir,
// rejecting anything that is not a plain UUID or would resolve outside dir.
func getSecureSessionPath(dir, sessionID string) (string, error) {
	if !isValidSessionID(sessionID) {
		return "", fmt.Errorf("%w: %q", errInvalidSessionID, sessionID)
	}
	path := filepath.Join(dir, sessionID+".json")

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, filepath.Clean(absDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes sessions directory", errInvalidSessionID)
	}
	return path, nil
}

// saveStatsToFile persists a session's statistics to disk.
var saveStatsToFile = func(dir, sessionID string, stats *PlayerStats) error {
	sessionFile, err := getSecureSessionPath(dir, sessionID)
	if err != nil {
		logWarn("Skipping save for invalid session ID: %q", sessionID)
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		logWarn("Failed to create sessions directory: %v", err)
		return err
	}

	stats.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats for session %s: %w", sessionID, err)
	}

	tmp := sessionFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		logWarn("Failed to write session file %s: %v", tmp, err)
		return err
	}
	if err := os.Rename(tmp, sessionFile); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	logInfo("Saved stats file: %s", sessionFile)
	return nil
}

// loadStatsFromFile loads a session's statistics. Files older than maxAge,
// unreadable as JSON or with impossible counters are removed and reported
// as not existing.
var loadStatsFromFile = func(dir, sessionID string, maxAge time.Duration) (*PlayerStats, error) {
	sessionFile, err := getSecureSessionPath(dir, sessionID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(sessionFile)
	if err != nil {
		return nil, err
	}

	if maxAge > 0 {
		if fileAge := time.Since(info.ModTime()); fileAge > maxAge {
			logInfo("Stats file is too old (%v, max: %v), removing: %s", fileAge, maxAge, sessionFile)
			_ = os.Remove(sessionFile)
			return nil, os.ErrNotExist
		}
	}

	data, err := os.ReadFile(sessionFile)
	if err != nil {
		return nil, err
	}

	var stats PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		logWarn("Failed to unmarshal stats file %s (corrupted), removing: %v", sessionFile, err)
		_ = os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}

	if stats.GamesPlayed < 0 || stats.GamesWon < 0 || stats.GamesWon > stats.GamesPlayed ||
		stats.CurrentStreak > stats.MaxStreak {
		logWarn("Stats file %s has invalid counters (played: %d, won: %d), removing", sessionFile, stats.GamesPlayed, stats.GamesWon)
		_ = os.Remove(sessionFile)
		return nil, os.ErrNotExist
	}

	return &stats, nil
}

// cleanupOldSessions removes stats files older than maxAge and returns how
// many were deleted.
var cleanupOldSessions = func(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removedCount := 0
	errorCount := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			errorCount++
			continue
		}

		if info.ModTime().Before(cutoff) {
			sessionFile := filepath.Join(dir, entry.Name())
			if err := os.Remove(sessionFile); err != nil {
				logWarn("Failed to remove old stats file %s: %v", sessionFile, err)
				errorCount++
			} else {
				removedCount++
			}
		}
	}

	if removedCount > 0 || errorCount > 0 {
		logInfo("Stats cleanup completed: removed %d file%s, %d error%s", removedCount, plural(removedCount), errorCount, plural(errorCount))
	}
	return removedCount, nil
}
