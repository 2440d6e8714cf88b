package round

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// Lanes is the number of tracks ships travel along in the default pattern.
const Lanes = 3

// DefaultInterval is the time between two pattern slots.
const DefaultInterval = 1200 * time.Millisecond

// DefaultPattern has one row per lane. A '-' launches a ship from that lane
// when the slot comes up; any other character leaves the lane idle.
var DefaultPattern = []string{
	"-   -   -   -  -   - ",
	" -  -  -  -   -  - - ",
	"  -  -   -   -  - -  ",
}

var (
	ErrNoForms    = errors.New("no conjugation forms to spawn")
	ErrBadPattern = errors.New("spawn pattern rows must be non-empty and equal length")
)

// Geometry sizes ships and the play field in abstract units so the time a
// ship stays on screen can be derived from its label.
type Geometry struct {
	ViewportWidth float64
	MinShipWidth  float64
	CharWidth     float64
	Padding       float64
	Speed         float64 // units per second
}

// DefaultGeometry reproduces the phone layout on a 100 unit wide viewport.
var DefaultGeometry = Geometry{
	ViewportWidth: 100,
	MinShipWidth:  50,
	CharWidth:     7,
	Padding:       20,
	Speed:         25,
}

// ShipWidth grows with the label so long forms stay readable.
func (g Geometry) ShipWidth(form string) float64 {
	return max(g.MinShipWidth, float64(utf8.RuneCountInString(form))*g.CharWidth+g.Padding)
}

// Travel is how long a ship carrying form takes to cross the viewport and
// leave it completely.
func (g Geometry) Travel(form string) time.Duration {
	if g.Speed <= 0 {
		return 0
	}
	distance := g.ViewportWidth + g.ShipWidth(form)
	return time.Duration(distance / g.Speed * float64(time.Second))
}

// Entity is a spawned ship.
type Entity struct {
	ID        int       `json:"id"`
	Form      string    `json:"form"`
	Lane      int       `json:"lane"`
	SpawnedAt time.Time `json:"spawnedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Scheduler walks the spawn pattern one slot per tick and hands out ship
// labels round-robin over the unique forms of a verb.
type Scheduler struct {
	forms    []string
	active   [][]bool
	width    int
	geometry Geometry

	slot      int
	formIndex int
	nextID    int
}

// NewScheduler prepares a scheduler for the given conjugations. Repeated
// forms are collapsed first, keeping first-seen order.
func NewScheduler(conjugations []string, rows []string, geometry Geometry) (*Scheduler, error) {
	forms := lo.Uniq(conjugations)
	if len(forms) == 0 {
		return nil, ErrNoForms
	}
	active, width, err := parsePattern(rows)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		forms:    forms,
		active:   active,
		width:    width,
		geometry: geometry,
	}, nil
}

func parsePattern(rows []string) ([][]bool, int, error) {
	if len(rows) == 0 {
		return nil, 0, ErrBadPattern
	}
	width := len(rows[0])
	if width == 0 {
		return nil, 0, ErrBadPattern
	}
	active := make([][]bool, len(rows))
	for lane, row := range rows {
		if len(row) != width {
			return nil, 0, fmt.Errorf("lane %d is %d slots, want %d: %w", lane, len(row), width, ErrBadPattern)
		}
		active[lane] = make([]bool, width)
		for i := 0; i < width; i++ {
			active[lane][i] = row[i] == '-'
		}
	}
	return active, width, nil
}

// Tick fires the current slot and advances to the next one. Ships are
// returned in lane order.
func (s *Scheduler) Tick(now time.Time) []Entity {
	var spawned []Entity
	for lane := range s.active {
		if !s.active[lane][s.slot] {
			continue
		}
		form := s.forms[s.formIndex]
		spawned = append(spawned, Entity{
			ID:        s.nextID,
			Form:      form,
			Lane:      lane,
			SpawnedAt: now,
			ExpiresAt: now.Add(s.geometry.Travel(form)),
		})
		s.nextID++
		s.formIndex = (s.formIndex + 1) % len(s.forms)
	}
	s.slot = (s.slot + 1) % s.width
	return spawned
}

// Reset rewinds the pattern and the form cycle. Ids keep counting up so
// they never repeat within a round.
func (s *Scheduler) Reset() {
	s.slot = 0
	s.formIndex = 0
}

// Forms returns the deduplicated labels in cycle order.
func (s *Scheduler) Forms() []string {
	return s.forms
}

// Slot is the pattern slot the next Tick will fire.
func (s *Scheduler) Slot() int {
	return s.slot
}

// Lanes is the number of pattern rows.
func (s *Scheduler) Lanes() int {
	return len(s.active)
}
