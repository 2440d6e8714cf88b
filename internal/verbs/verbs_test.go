package verbs

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPronouns = `["a", "b", "c"]`

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestLoad_Embedded(t *testing.T) {
	ds, err := Load()
	require.NoError(t, err)

	assert.Len(t, ds.Pronouns, 6)
	for _, tense := range AllTenses {
		assert.NotEmpty(t, ds.Verbs(tense), "tense %s should have verbs", tense)
		for _, entry := range ds.Verbs(tense) {
			assert.Len(t, entry.Conjugations, len(ds.Pronouns), "%s %s", tense, entry.Verb)
		}
	}
	assert.Equal(t, len(ds.Verbs(TensePresent))+len(ds.Verbs(TenseAorist))+
		len(ds.Verbs(TenseImperfect))+len(ds.Verbs(TenseFuture)), ds.Total())
}

func TestLoadFS_MissingTenseIsEmpty(t *testing.T) {
	ds, err := LoadFS(mapFS(map[string]string{
		"pronouns.json": testPronouns,
		"present.json":  `[{"verb":"x","translation":"to x","conjugations":["x1","x2","x3"]}]`,
	}))
	require.NoError(t, err)

	assert.Len(t, ds.Verbs(TensePresent), 1)
	assert.Empty(t, ds.Verbs(TenseFuture))
	assert.Equal(t, map[Tense]int{TensePresent: 1, TenseAorist: 0, TenseImperfect: 0, TenseFuture: 0}, ds.Counts())
}

func TestLoadFS_RejectsEmptyConjugations(t *testing.T) {
	_, err := LoadFS(mapFS(map[string]string{
		"pronouns.json": testPronouns,
		"aorist.json":   `[{"verb":"x","translation":"to x","conjugations":[]}]`,
	}))
	assert.ErrorIs(t, err, ErrEmptyConjugations)
}

func TestLoadFS_RejectsLengthMismatch(t *testing.T) {
	_, err := LoadFS(mapFS(map[string]string{
		"pronouns.json": testPronouns,
		"present.json":  `[{"verb":"x","translation":"to x","conjugations":["x1","x2"]}]`,
	}))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestLoadFS_RequiresPronouns(t *testing.T) {
	_, err := LoadFS(mapFS(map[string]string{
		"present.json": `[]`,
	}))
	assert.Error(t, err)

	_, err = LoadFS(mapFS(map[string]string{
		"pronouns.json": `[]`,
	}))
	assert.ErrorIs(t, err, ErrNoPronouns)
}

func TestLoadFS_MalformedJSON(t *testing.T) {
	_, err := LoadFS(mapFS(map[string]string{
		"pronouns.json": testPronouns,
		"future.json":   `{not json`,
	}))
	assert.Error(t, err)
}

func TestParseTense(t *testing.T) {
	cases := []struct {
		in   string
		want Tense
	}{
		{"present", TensePresent},
		{" Aorist ", TenseAorist},
		{"IMPERFECT", TenseImperfect},
		{"future", TenseFuture},
	}
	for _, c := range cases {
		got, err := ParseTense(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got)
	}

	_, err := ParseTense("pluperfect")
	assert.ErrorIs(t, err, ErrUnknownTense)
}

func TestTenseTitle(t *testing.T) {
	assert.Equal(t, "Ενεστώτας (Present)", TensePresent.Title())
	assert.Equal(t, "Μέλλοντας (Future)", TenseFuture.Title())
}

func TestVerb_OutOfRange(t *testing.T) {
	ds, err := Load()
	require.NoError(t, err)

	_, err = ds.Verb(TensePresent, -1)
	assert.ErrorIs(t, err, ErrVerbNotFound)
	_, err = ds.Verb(TensePresent, len(ds.Verbs(TensePresent)))
	assert.ErrorIs(t, err, ErrVerbNotFound)

	entry, err := ds.Verb(TensePresent, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.Verb)
}

func TestUniqueForms_KeepsFirstSeenOrder(t *testing.T) {
	entry := VerbEntry{Conjugations: []string{"είμαι", "είσαι", "είναι", "είμαστε", "είστε", "είναι"}}
	assert.Equal(t, []string{"είμαι", "είσαι", "είναι", "είμαστε", "είστε"}, entry.UniqueForms())
}

func TestVerbEntryValidate(t *testing.T) {
	assert.NoError(t, VerbEntry{Conjugations: []string{"a"}}.Validate(-1))
	assert.ErrorIs(t, VerbEntry{}.Validate(-1), ErrEmptyConjugations)
	assert.ErrorIs(t, VerbEntry{Conjugations: []string{"a"}}.Validate(2), ErrLengthMismatch)
}
