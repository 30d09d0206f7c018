package room

import (
	"math/rand/v2"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// fixedGenerator always returns the same code.
type fixedGenerator string

func (g fixedGenerator) Generate() string { return string(g) }

// sequenceGenerator returns its codes in order, then repeats the last one.
type sequenceGenerator struct {
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate() string {
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i]
}

func TestRandomGeneratorShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		g := NewRandomGenerator(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		code := g.Generate()
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match %s", code, codePattern)
		}
	})
}

func TestRandomGeneratorDefaultSource(t *testing.T) {
	g := NewRandomGenerator(nil)
	for range 50 {
		assert.Regexp(t, codePattern, g.Generate())
	}
}

func TestRandomGeneratorCustomLength(t *testing.T) {
	g := NewRandomGenerator(nil)
	g.Length = 10
	assert.Len(t, g.Generate(), 10)
}

func TestUniqueCodeSkipsTaken(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA", "BBBBBB", "CCCCCC"}}
	taken := map[string]bool{"AAAAAA": true, "BBBBBB": true}

	code, err := UniqueCode(gen, func(c string) bool { return taken[c] })
	require.NoError(t, err)
	assert.Equal(t, "CCCCCC", code)
	assert.Equal(t, 3, gen.calls)
}

func TestUniqueCodeExhausted(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA"}}

	_, err := UniqueCode(gen, func(string) bool { return true })
	require.ErrorIs(t, err, ErrCapacityExhausted)
	assert.Equal(t, MaxCodeAttempts, gen.calls)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeCode("  ab12cd "))
	assert.Equal(t, "", NormalizeCode(""))
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("AB12CD"))
	assert.False(t, ValidCode("ab12cd"))
	assert.False(t, ValidCode("AB12C"))
	assert.False(t, ValidCode("AB-2CD"))
}
