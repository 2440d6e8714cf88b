package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// isValidSessionID reports whether id is a canonical 36-character UUID.
func isValidSessionID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// getOrCreateSession retrieves the session ID from the cookie or creates a new one.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || len(sessionID) < MinSessionIDLen || !isValidSessionID(sessionID) {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		secure := app.IsProduction
		c.SetCookie(SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", secure, true)
		requestLogger(c.Request.Context()).Info().Str("session", sessionID).Msg("created new session")
	}
	return sessionID
}

// getRoundSession returns the session's round and refreshes its last access time.
func (app *App) getRoundSession(sessionID string) (*RoundSession, bool) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	rs, ok := app.Rounds[sessionID]
	if ok {
		rs.LastAccess = time.Now()
	}
	return rs, ok
}

// swapRoundSession installs rs for the session and returns whatever it replaced.
func (app *App) swapRoundSession(sessionID string, rs *RoundSession) *RoundSession {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	prev := app.Rounds[sessionID]
	app.Rounds[sessionID] = rs
	return prev
}

// takeRoundSession removes and returns the session's round.
func (app *App) takeRoundSession(sessionID string) (*RoundSession, bool) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	rs, ok := app.Rounds[sessionID]
	if ok {
		delete(app.Rounds, sessionID)
	}
	return rs, ok
}

func (app *App) activeRounds() int {
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return len(app.Rounds)
}
