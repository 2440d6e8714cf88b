// Package verbs holds the read-only verb and pronoun tables the game draws
// its targets and ship labels from.
//
// Each tense is stored as its own JSON file next to a shared pronoun list:
//
//	data/pronouns.json   ["εγώ", "εσύ", ...]
//	data/present.json    [{"verb": "γράφω", "translation": "to write", "conjugations": [...]}, ...]
//
// conjugations[i] is the form used with pronouns[i], so every list must be
// exactly as long as the pronoun list.
package verbs

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

//go:embed data/*.json
var embedded embed.FS

// Tense selects which verb table a round is played from.
type Tense string

const (
	TensePresent   Tense = "present"
	TenseAorist    Tense = "aorist"
	TenseImperfect Tense = "imperfect"
	TenseFuture    Tense = "future"
)

// AllTenses lists the tenses in menu order.
var AllTenses = []Tense{TensePresent, TenseAorist, TenseImperfect, TenseFuture}

var (
	ErrUnknownTense      = errors.New("unknown tense")
	ErrNoPronouns        = errors.New("pronoun list is empty")
	ErrEmptyConjugations = errors.New("verb has no conjugations")
	ErrLengthMismatch    = errors.New("conjugation count does not match pronoun count")
	ErrVerbNotFound      = errors.New("verb not found")
)

// ParseTense maps a user supplied name onto a Tense.
func ParseTense(s string) (Tense, error) {
	t := Tense(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(AllTenses, t) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTense, s)
	}
	return t, nil
}

// Title returns the heading shown above the verb list for the tense.
func (t Tense) Title() string {
	switch t {
	case TensePresent:
		return "Ενεστώτας (Present)"
	case TenseAorist:
		return "Αόριστος (Simple Past)"
	case TenseImperfect:
		return "Παρατατικός (Imperfect)"
	case TenseFuture:
		return "Μέλλοντας (Future)"
	default:
		return string(t)
	}
}

// VerbEntry is one playable verb in one tense.
type VerbEntry struct {
	Verb         string   `json:"verb"`
	Translation  string   `json:"translation"`
	Conjugations []string `json:"conjugations"`
}

// UniqueForms returns the conjugations with repeats removed, in first-seen order.
func (v VerbEntry) UniqueForms() []string {
	return lo.Uniq(v.Conjugations)
}

// Validate checks the entry against a pronoun list of the given length.
// A negative length skips the length check.
func (v VerbEntry) Validate(pronouns int) error {
	if len(v.Conjugations) == 0 {
		return fmt.Errorf("%q: %w", v.Verb, ErrEmptyConjugations)
	}
	if pronouns >= 0 && len(v.Conjugations) != pronouns {
		return fmt.Errorf("%q has %d forms for %d pronouns: %w", v.Verb, len(v.Conjugations), pronouns, ErrLengthMismatch)
	}
	return nil
}

// Dataset is the full set of verb tables. It is not modified after loading.
type Dataset struct {
	Pronouns []string
	Tenses   map[Tense][]VerbEntry
}

// Load reads the dataset compiled into the binary.
func Load() (*Dataset, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadDir reads the dataset from a directory on disk.
func LoadDir(dir string) (*Dataset, error) {
	log.Info().Str("dir", dir).Msg("loading verb tables from disk")
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads pronouns.json and one <tense>.json per tense from fsys.
// A missing tense file leaves that tense empty; anything malformed rejects
// the whole dataset.
func LoadFS(fsys fs.FS) (*Dataset, error) {
	var pronouns []string
	if err := readJSON(fsys, "pronouns.json", &pronouns); err != nil {
		return nil, err
	}

	ds := &Dataset{
		Pronouns: pronouns,
		Tenses:   make(map[Tense][]VerbEntry, len(AllTenses)),
	}
	for _, t := range AllTenses {
		var entries []VerbEntry
		err := readJSON(fsys, string(t)+".json", &entries)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("tense", string(t)).Msg("no verb table for tense")
			continue
		}
		if err != nil {
			return nil, err
		}
		ds.Tenses[t] = entries
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// Validate checks every entry against the pronoun list.
func (d *Dataset) Validate() error {
	if len(d.Pronouns) == 0 {
		return ErrNoPronouns
	}
	for _, t := range AllTenses {
		for i, entry := range d.Tenses[t] {
			if err := entry.Validate(len(d.Pronouns)); err != nil {
				return fmt.Errorf("%s verb %d: %w", t, i, err)
			}
		}
	}
	return nil
}

// Verbs returns the entries for a tense in menu order.
func (d *Dataset) Verbs(t Tense) []VerbEntry {
	return d.Tenses[t]
}

// Verb looks up one entry by tense and index.
func (d *Dataset) Verb(t Tense, index int) (VerbEntry, error) {
	entries := d.Tenses[t]
	if index < 0 || index >= len(entries) {
		return VerbEntry{}, fmt.Errorf("%s verb %d: %w", t, index, ErrVerbNotFound)
	}
	return entries[index], nil
}

// Counts reports how many verbs each tense has.
func (d *Dataset) Counts() map[Tense]int {
	return lo.SliceToMap(AllTenses, func(t Tense) (Tense, int) {
		return t, len(d.Tenses[t])
	})
}

// Total is the number of playable entries across all tenses.
func (d *Dataset) Total() int {
	return lo.Sum(lo.Values(d.Counts()))
}
