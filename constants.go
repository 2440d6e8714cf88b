package main

// Session configuration constants
const (
	SessionCookieName = "session_id"
	MinSessionIDLen   = 10
)

// Route constants
const (
	RouteHome        = "/"
	RouteHealth      = "/healthz"
	RouteTenses      = "/tenses"
	RouteTenseVerbs  = "/tenses/:tense/verbs"
	RouteRound       = "/round"
	RouteRoundTap    = "/round/tap"
	RouteRoundExpire = "/round/expire"
	RouteRoundRetry  = "/round/retry"
	RouteRoundExit   = "/round/exit"
	RouteRoundEvents = "/round/events"
	RouteStats       = "/stats"
)

// Error message constants
const (
	ErrorUnknownTense    = "Unknown tense."
	ErrorInvalidVerb     = "Verb index out of range."
	ErrorUnplayableVerb  = "Verb cannot be played."
	ErrorNoRound         = "No round in progress."
	ErrorInvalidEntityID = "Invalid ship id."
	ErrorRoundActive     = "Round is still in progress."
	ErrorRoundStopped    = "Round has stopped."
	ErrorTooManyRequests = "Too many requests. Please slow down."
)

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)
