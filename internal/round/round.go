// Package round is the game core: who is the target, what the player has
// scored, which ships are on screen, and when the round is over.
//
// A Round is not safe for concurrent use. Loop serializes timer ticks and
// player input onto a single goroutine that owns the Round.
package round

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"verbfleet/internal/verbs"
)

const (
	WinScore      = 20
	StartingLives = 3
)

var ErrRoundActive = errors.New("round is still being played")

// Phase is the round controller state.
type Phase int

const (
	PhasePlaying Phase = iota
	PhaseWon
	PhaseLost
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseWon:
		return "won"
	case PhaseLost:
		return "lost"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Over reports whether the phase is terminal.
func (p Phase) Over() bool {
	return p != PhasePlaying
}

// State is the per-round counters.
type State struct {
	TargetIndex int `json:"targetIndex"`
	Score       int `json:"score"`
	Lives       int `json:"lives"`
}

// Outcome is what a tapped form did to the round.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeHit
	OutcomeMiss
)

// Config tunes a Round. The zero value is filled from defaults by New.
type Config struct {
	Pattern  []string
	Geometry Geometry
	Rand     Rand
}

// Option adjusts a Config.
type Option func(*Config)

// WithRand replaces the random source.
func WithRand(rng Rand) Option {
	return func(c *Config) { c.Rand = rng }
}

// WithPattern replaces the spawn pattern.
func WithPattern(rows []string) Option {
	return func(c *Config) { c.Pattern = rows }
}

// WithGeometry replaces the ship sizing used for lifetimes.
func WithGeometry(g Geometry) Option {
	return func(c *Config) { c.Geometry = g }
}

// Round is one play session for one verb.
type Round struct {
	entry    verbs.VerbEntry
	pronouns []string
	rng      Rand

	state State
	phase Phase
	sched *Scheduler
	live  map[int]Entity
}

// New starts a round in the playing phase with a random target.
func New(entry verbs.VerbEntry, pronouns []string, opts ...Option) (*Round, error) {
	cfg := Config{
		Pattern:  DefaultPattern,
		Geometry: DefaultGeometry,
		Rand:     CryptoRand{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := entry.Validate(-1); err != nil {
		return nil, err
	}
	sched, err := NewScheduler(entry.Conjugations, cfg.Pattern, cfg.Geometry)
	if err != nil {
		return nil, fmt.Errorf("verb %q: %w", entry.Verb, err)
	}

	r := &Round{
		entry:    entry,
		pronouns: pronouns,
		rng:      cfg.Rand,
		sched:    sched,
		live:     make(map[int]Entity),
	}
	r.reset()
	return r, nil
}

func (r *Round) reset() {
	r.state = State{
		TargetIndex: Draw(r.rng, len(r.entry.Conjugations)),
		Score:       0,
		Lives:       StartingLives,
	}
	r.phase = PhasePlaying
	r.sched.Reset()
}

// State returns a copy of the counters.
func (r *Round) State() State { return r.state }

// Phase returns the controller state.
func (r *Round) Phase() Phase { return r.phase }

// Entry returns the verb being played.
func (r *Round) Entry() verbs.VerbEntry { return r.entry }

// TargetForm is the conjugation the player has to hit next.
func (r *Round) TargetForm() string {
	return r.entry.Conjugations[r.state.TargetIndex]
}

// Pronoun is the prompt shown for the current target.
func (r *Round) Pronoun() string {
	if r.state.TargetIndex < len(r.pronouns) {
		return r.pronouns[r.state.TargetIndex]
	}
	return ""
}

// Evaluate applies a tapped form to the counters and then re-checks the
// win and loss thresholds. Forms tapped after the round ended are ignored.
func (r *Round) Evaluate(form string) Outcome {
	if r.phase.Over() {
		return OutcomeIgnored
	}
	outcome := r.evaluate(form)
	r.resolve()
	return outcome
}

func (r *Round) evaluate(form string) Outcome {
	if form == r.TargetForm() {
		r.state.Score++
		r.state.TargetIndex = DrawExcluding(r.rng, len(r.entry.Conjugations), r.state.TargetIndex)
		return OutcomeHit
	}
	r.state.Lives = max(r.state.Lives-1, 0)
	return OutcomeMiss
}

// resolve moves the controller after a counter change. Score is checked
// before lives so a step that crosses both thresholds is a win.
func (r *Round) resolve() {
	switch {
	case r.state.Score >= WinScore:
		r.phase = PhaseWon
	case r.state.Lives <= 0:
		r.phase = PhaseLost
	}
}

// Tick drops ships that have left the screen and, while the round is being
// played, fires the next pattern slot.
func (r *Round) Tick(now time.Time) []Event {
	events := r.reap(now)
	if r.phase.Over() {
		return events
	}
	for _, e := range r.sched.Tick(now) {
		r.live[e.ID] = e
		events = append(events, EntitySpawned{
			ID:       e.ID,
			Form:     e.Form,
			Lane:     e.Lane,
			TravelMs: e.ExpiresAt.Sub(e.SpawnedAt).Milliseconds(),
		})
	}
	return events
}

// Tap handles the player hitting ship id at time now. Ships that are
// unknown or already past their exit time are ignored.
func (r *Round) Tap(id int, now time.Time) []Event {
	events := r.reap(now)
	e, ok := r.live[id]
	if !ok || r.phase.Over() {
		return events
	}
	delete(r.live, id)
	events = append(events, EntityExpired{ID: id, Tapped: true})

	r.Evaluate(e.Form)
	events = append(events, r.sessionChanged())
	if r.phase.Over() {
		events = append(events, r.dropAll()...)
		events = append(events, RoundEnded{Won: r.phase == PhaseWon, FinalScore: r.state.Score})
	}
	return events
}

// Expire removes a ship the presentation reports as gone.
func (r *Round) Expire(id int) []Event {
	if _, ok := r.live[id]; !ok {
		return nil
	}
	delete(r.live, id)
	return []Event{EntityExpired{ID: id}}
}

// Retry restarts a finished round on the same verb.
func (r *Round) Retry() ([]Event, error) {
	if !r.phase.Over() {
		return nil, ErrRoundActive
	}
	events := r.dropAll()
	r.reset()
	return append(events, r.sessionChanged()), nil
}

func (r *Round) reap(now time.Time) []Event {
	var events []Event
	for _, id := range r.liveIDs() {
		if !r.live[id].ExpiresAt.After(now) {
			delete(r.live, id)
			events = append(events, EntityExpired{ID: id})
		}
	}
	return events
}

func (r *Round) dropAll() []Event {
	ids := r.liveIDs()
	clear(r.live)
	return lo.Map(ids, func(id int, _ int) Event { return EntityExpired{ID: id} })
}

func (r *Round) liveIDs() []int {
	ids := lo.Keys(r.live)
	slices.Sort(ids)
	return ids
}

func (r *Round) sessionChanged() SessionChanged {
	return SessionChanged{
		TargetIndex: r.state.TargetIndex,
		Pronoun:     r.Pronoun(),
		TargetForm:  r.TargetForm(),
		Score:       r.state.Score,
		Lives:       r.state.Lives,
	}
}

// Snapshot is everything needed to redraw a round from scratch.
type Snapshot struct {
	Verb        string   `json:"verb"`
	Translation string   `json:"translation"`
	Pronoun     string   `json:"pronoun"`
	TargetForm  string   `json:"targetForm"`
	State       State    `json:"state"`
	Phase       Phase    `json:"phase"`
	WinScore    int      `json:"winScore"`
	Forms       []string `json:"forms"`
	Entities    []Entity `json:"entities"`
}

// Snapshot copies the round for display.
func (r *Round) Snapshot() Snapshot {
	return Snapshot{
		Verb:        r.entry.Verb,
		Translation: r.entry.Translation,
		Pronoun:     r.Pronoun(),
		TargetForm:  r.TargetForm(),
		State:       r.state,
		Phase:       r.phase,
		WinScore:    WinScore,
		Forms:       slices.Clone(r.sched.Forms()),
		Entities: lo.Map(r.liveIDs(), func(id int, _ int) Entity {
			return r.live[id]
		}),
	}
}
