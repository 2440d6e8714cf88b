package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"verbfleet/internal/round"
	"verbfleet/internal/types"
	"verbfleet/internal/verbs"
)

type contextKey string

type (
	PlayerStats = types.PlayerStats
	TenseInfo   = types.TenseInfo
	VerbInfo    = types.VerbInfo
)

// App holds the loaded dataset, live rounds and runtime configuration.
type App struct {
	Dataset *verbs.Dataset

	Rounds       map[string]*RoundSession // Session ID -> active round
	SessionMutex sync.RWMutex

	StatsMutex sync.Mutex // Serializes read-modify-write of stats files

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex

	IsProduction    bool
	CookieMaxAge    time.Duration
	SessionTimeout  time.Duration
	SpawnInterval   time.Duration
	JanitorInterval time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	SessionsDir     string
	StartTime       time.Time

	RoundOptions []round.Option

	// NewTicker supplies the spawn clock for each round. Tests swap it for a
	// manual channel.
	NewTicker func(time.Duration) (<-chan time.Time, func())
}

// RoundSession is one player's running round and the goroutine driving it.
type RoundSession struct {
	Loop       *round.Loop
	Tense      verbs.Tense
	VerbIndex  int
	Verb       string
	StartedAt  time.Time
	LastAccess time.Time

	cancel     func()
	stopTicker func()
}
