package types

import "time"

type TenseInfo struct {
	Tense string `json:"tense"`
	Title string `json:"title"`
	Verbs int    `json:"verbs"`
}

type VerbInfo struct {
	Index       int    `json:"index"`
	Verb        string `json:"verb"`
	Translation string `json:"translation"`
}

// PlayerStats is the per-session record written to the sessions directory.
type PlayerStats struct {
	GamesPlayed   int       `json:"gamesPlayed"`
	GamesWon      int       `json:"gamesWon"`
	CurrentStreak int       `json:"currentStreak"`
	MaxStreak     int       `json:"maxStreak"`
	BestScore     int       `json:"bestScore"`
	VerbsMastered []string  `json:"verbsMastered"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
