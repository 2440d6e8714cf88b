package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/lo"

	"verbfleet/internal/round"
	"verbfleet/internal/verbs"
)

// startRound builds a round for the chosen verb, starts its loop and installs
// it for the session, stopping any round the session was already playing.
func (app *App) startRound(ctx context.Context, sessionID string, tense verbs.Tense, index int) (round.Snapshot, error) {
	entry, err := app.Dataset.Verb(tense, index)
	if err != nil {
		return round.Snapshot{}, err
	}
	r, err := round.New(entry, app.Dataset.Pronouns, app.RoundOptions...)
	if err != nil {
		return round.Snapshot{}, err
	}

	newTicker := app.NewTicker
	if newTicker == nil {
		newTicker = round.Ticker
	}
	ticks, stopTicker := newTicker(app.SpawnInterval)

	loop := round.NewLoop(r, ticks)
	loop.OnEnded = func(ended round.RoundEnded, snap round.Snapshot) {
		app.recordResult(sessionID, ended, snap)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go loop.Run(runCtx)

	now := time.Now()
	rs := &RoundSession{
		Loop:       loop,
		Tense:      tense,
		VerbIndex:  index,
		Verb:       entry.Verb,
		StartedAt:  now,
		LastAccess: now,
		cancel:     cancel,
		stopTicker: stopTicker,
	}
	if prev := app.swapRoundSession(sessionID, rs); prev != nil {
		prev.stop()
	}

	requestLogger(ctx).Info().
		Str("session", sessionID).
		Str("tense", string(tense)).
		Str("verb", entry.Verb).
		Msg("round started")

	return loop.Snapshot(ctx)
}

// stop ends the loop goroutine and releases its ticker.
func (rs *RoundSession) stop() {
	rs.Loop.Stop()
	rs.cancel()
	if rs.stopTicker != nil {
		rs.stopTicker()
	}
}

// exitRound stops and forgets the session's round. It reports whether there
// was one.
func (app *App) exitRound(sessionID string) bool {
	rs, ok := app.takeRoundSession(sessionID)
	if !ok {
		return false
	}
	rs.stop()
	logInfo("Round exited for session %s (%s)", sessionID, rs.Verb)
	return true
}

// reapIdleRounds stops rounds nobody has touched for maxIdle.
func (app *App) reapIdleRounds(now time.Time, maxIdle time.Duration) int {
	app.SessionMutex.Lock()
	idle := lo.PickBy(app.Rounds, func(_ string, rs *RoundSession) bool {
		return now.Sub(rs.LastAccess) > maxIdle
	})
	for id := range idle {
		delete(app.Rounds, id)
	}
	app.SessionMutex.Unlock()

	for _, rs := range idle {
		rs.stop()
	}
	if len(idle) > 0 {
		logInfo("Reaped %d idle round%s", len(idle), plural(len(idle)))
	}
	return len(idle)
}

// stopAllRounds shuts down every loop, used on server shutdown.
func (app *App) stopAllRounds() {
	app.SessionMutex.Lock()
	all := app.Rounds
	app.Rounds = make(map[string]*RoundSession)
	app.SessionMutex.Unlock()

	for _, rs := range all {
		rs.stop()
	}
	for _, rs := range all {
		<-rs.Loop.Done()
	}
	logInfo("Stopped %d round%s", len(all), plural(len(all)))
}

// loadStats returns the stored statistics for a session, or zero stats when
// none are on disk.
func (app *App) loadStats(sessionID string) PlayerStats {
	stats, err := loadStatsFromFile(app.SessionsDir, sessionID, app.SessionTimeout)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, errInvalidSessionID) {
			logWarn("Failed to load stats for session %s: %v", sessionID, err)
		}
		return PlayerStats{VerbsMastered: []string{}}
	}
	if stats.VerbsMastered == nil {
		stats.VerbsMastered = []string{}
	}
	return *stats
}

// applyResult folds one finished round into stats.
func applyResult(stats *PlayerStats, ended round.RoundEnded, verb string) {
	stats.GamesPlayed++
	stats.BestScore = max(stats.BestScore, ended.FinalScore)
	if ended.Won {
		stats.GamesWon++
		stats.CurrentStreak++
		stats.MaxStreak = max(stats.MaxStreak, stats.CurrentStreak)
		if !lo.Contains(stats.VerbsMastered, verb) {
			stats.VerbsMastered = append(stats.VerbsMastered, verb)
		}
	} else {
		stats.CurrentStreak = 0
	}
}

// recordResult updates and saves the session's statistics when a round ends.
func (app *App) recordResult(sessionID string, ended round.RoundEnded, snap round.Snapshot) {
	app.StatsMutex.Lock()
	defer app.StatsMutex.Unlock()

	stats := app.loadStats(sessionID)
	applyResult(&stats, ended, snap.Verb)
	if err := saveStatsToFile(app.SessionsDir, sessionID, &stats); err != nil {
		logWarn("Failed to save stats for session %s: %v", sessionID, err)
		return
	}
	logInfo("Session %s finished %s: won=%t score=%d (played %d, won %d)",
		sessionID, snap.Verb, ended.Won, ended.FinalScore, stats.GamesPlayed, stats.GamesWon)
}

// runJanitor periodically reaps idle rounds and stale stats files until ctx ends.
func (app *App) runJanitor(ctx context.Context) {
	interval := app.JanitorInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			app.reapIdleRounds(now, app.SessionTimeout)
			if _, err := cleanupOldSessions(app.SessionsDir, app.SessionTimeout); err != nil {
				logWarn("Stats cleanup failed: %v", err)
			}
		}
	}
}
