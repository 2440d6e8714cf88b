package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"verbfleet/internal/round"
	"verbfleet/internal/verbs"
)

// sseHeartbeat keeps idle event streams from being cut by proxies.
const sseHeartbeat = 15 * time.Second

type startRoundRequest struct {
	Tense string `form:"tense" json:"tense" binding:"required"`
	Verb  *int   `form:"verb" json:"verb" binding:"required"`
}

type entityRequest struct {
	ID *int `form:"id" json:"id" binding:"required"`
}

// homeHandler describes the service and its endpoints.
func (app *App) homeHandler(c *gin.Context) {
	app.getOrCreateSession(c)
	c.JSON(http.StatusOK, gin.H{
		"service": "verbfleet",
		"tenses":  verbs.AllTenses,
		"endpoints": []string{
			"GET " + RouteHealth,
			"GET " + RouteTenses,
			"GET " + RouteTenseVerbs,
			"POST " + RouteRound,
			"GET " + RouteRound,
			"POST " + RouteRoundTap,
			"POST " + RouteRoundExpire,
			"POST " + RouteRoundRetry,
			"POST " + RouteRoundExit,
			"GET " + RouteRoundEvents,
			"GET " + RouteStats,
		},
	})
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"env":           map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"verbs_loaded":  app.Dataset.Counts(),
		"verbs_total":   app.Dataset.Total(),
		"active_rounds": app.activeRounds(),
		"uptime":        formatUptime(uptime),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// tensesHandler lists the tenses with their display titles and verb counts.
func (app *App) tensesHandler(c *gin.Context) {
	counts := app.Dataset.Counts()
	c.JSON(http.StatusOK, lo.Map(verbs.AllTenses, func(t verbs.Tense, _ int) TenseInfo {
		return TenseInfo{Tense: string(t), Title: t.Title(), Verbs: counts[t]}
	}))
}

// tenseVerbsHandler lists the verbs of one tense in menu order.
func (app *App) tenseVerbsHandler(c *gin.Context) {
	tense, err := verbs.ParseTense(c.Param("tense"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrorUnknownTense})
		return
	}
	c.JSON(http.StatusOK, lo.Map(app.Dataset.Verbs(tense), func(v verbs.VerbEntry, i int) VerbInfo {
		return VerbInfo{Index: i, Verb: v.Verb, Translation: v.Translation}
	}))
}

// startRoundHandler replaces the session's round with a fresh one for the
// selected verb.
func (app *App) startRoundHandler(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)

	var req startRoundRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tense, err := verbs.ParseTense(req.Tense)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorUnknownTense})
		return
	}

	snap, err := app.startRound(ctx, sessionID, tense, *req.Verb)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, snap)
	case errors.Is(err, verbs.ErrVerbNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorInvalidVerb})
	case errors.Is(err, verbs.ErrEmptyConjugations), errors.Is(err, round.ErrNoForms), errors.Is(err, round.ErrBadPattern):
		requestLogger(ctx).Warn().Err(err).Msg("unplayable verb selected")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ErrorUnplayableVerb})
	default:
		app.respondLoopError(c, err)
	}
}

// roundHandler returns the current snapshot of the session's round.
func (app *App) roundHandler(c *gin.Context) {
	rs, ok := app.currentRound(c)
	if !ok {
		return
	}
	snap, err := rs.Loop.Snapshot(c.Request.Context())
	if err != nil {
		app.respondLoopError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// tapHandler reports a tapped ship and returns what it caused.
func (app *App) tapHandler(c *gin.Context) {
	app.entityAction(c, (*round.Loop).Tap)
}

// expireHandler reports a ship that left the screen.
func (app *App) expireHandler(c *gin.Context) {
	app.entityAction(c, (*round.Loop).Expire)
}

func (app *App) entityAction(c *gin.Context, action func(*round.Loop, context.Context, int) (round.Result, error)) {
	rs, ok := app.currentRound(c)
	if !ok {
		return
	}
	var req entityRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrorInvalidEntityID})
		return
	}
	res, err := action(rs.Loop, c.Request.Context(), *req.ID)
	if err != nil {
		app.respondLoopError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// retryHandler restarts a finished round on the same verb.
func (app *App) retryHandler(c *gin.Context) {
	rs, ok := app.currentRound(c)
	if !ok {
		return
	}
	res, err := rs.Loop.Retry(c.Request.Context())
	if errors.Is(err, round.ErrRoundActive) {
		c.JSON(http.StatusConflict, gin.H{"error": ErrorRoundActive})
		return
	}
	if err != nil {
		app.respondLoopError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// exitHandler stops the session's round and returns to verb selection.
func (app *App) exitHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	if !app.exitRound(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrorNoRound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exited"})
}

// eventsHandler streams round events as server-sent events. The first event
// is a full snapshot so a client can draw before anything happens.
func (app *App) eventsHandler(c *gin.Context) {
	rs, ok := app.currentRound(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	events, unsubscribe, err := rs.Loop.Subscribe(ctx)
	if err != nil {
		app.respondLoopError(c, err)
		return
	}
	defer unsubscribe()

	snap, err := rs.Loop.Snapshot(ctx)
	if err != nil {
		app.respondLoopError(c, err)
		return
	}

	// The server's write timeout would otherwise close the stream.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		requestLogger(ctx).Debug().Err(err).Msg("could not clear write deadline for event stream")
	}

	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", snap)
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				c.SSEvent("closed", gin.H{"reason": ErrorRoundStopped})
				return false
			}
			c.SSEvent(ev.Kind(), ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// statsHandler returns the session's win/loss statistics.
func (app *App) statsHandler(c *gin.Context) {
	sessionID := app.getOrCreateSession(c)
	app.StatsMutex.Lock()
	stats := app.loadStats(sessionID)
	app.StatsMutex.Unlock()
	c.JSON(http.StatusOK, stats)
}

// currentRound looks up the caller's round, writing a 404 when there is none.
func (app *App) currentRound(c *gin.Context) (*RoundSession, bool) {
	sessionID := app.getOrCreateSession(c)
	rs, ok := app.getRoundSession(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrorNoRound})
		return nil, false
	}
	return rs, true
}

// respondLoopError maps errors from a round loop to HTTP responses.
func (app *App) respondLoopError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, round.ErrLoopStopped):
		c.JSON(http.StatusGone, gin.H{"error": ErrorRoundStopped})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatus(http.StatusServiceUnavailable)
	default:
		requestLogger(c.Request.Context()).Error().Err(err).Msg("round request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}
