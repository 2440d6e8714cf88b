package round

import "github.com/samber/lo"

// Event kinds, also used as SSE event names.
const (
	KindEntitySpawned  = "entity-spawned"
	KindEntityExpired  = "entity-expired"
	KindSessionChanged = "session-changed"
	KindRoundEnded     = "round-ended"
)

// Event is something the presentation side has to react to.
type Event interface {
	Kind() string
}

// EntitySpawned announces a new ship.
type EntitySpawned struct {
	ID       int    `json:"id"`
	Form     string `json:"form"`
	Lane     int    `json:"lane"`
	TravelMs int64  `json:"travelMs"`
}

// EntityExpired removes a ship. Tapped is set when the player hit it.
type EntityExpired struct {
	ID     int  `json:"id"`
	Tapped bool `json:"tapped,omitempty"`
}

// SessionChanged carries the new prompt and counters.
type SessionChanged struct {
	TargetIndex int    `json:"targetIndex"`
	Pronoun     string `json:"pronoun"`
	TargetForm  string `json:"targetForm"`
	Score       int    `json:"score"`
	Lives       int    `json:"lives"`
}

// RoundEnded is emitted once when the round is won or lost.
type RoundEnded struct {
	Won        bool `json:"won"`
	FinalScore int  `json:"finalScore"`
}

func (EntitySpawned) Kind() string  { return KindEntitySpawned }
func (EntityExpired) Kind() string  { return KindEntityExpired }
func (SessionChanged) Kind() string { return KindSessionChanged }
func (RoundEnded) Kind() string     { return KindRoundEnded }

// Tagged pairs an event with its kind for JSON clients.
type Tagged struct {
	Kind string `json:"kind"`
	Data Event  `json:"data"`
}

// Tag wraps each event with its kind.
func Tag(events []Event) []Tagged {
	return lo.Map(events, func(ev Event, _ int) Tagged {
		return Tagged{Kind: ev.Kind(), Data: ev}
	})
}
