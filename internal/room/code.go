package room

import (
	"math/rand/v2"
	"strings"
)

const (
	// CodeAlphabet is the set of characters a room code is drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the default room code length.
	CodeLength = 6
	// MaxCodeAttempts bounds the search for an unused code.
	MaxCodeAttempts = 100
)

// Generator produces candidate room codes.
type Generator interface {
	Generate() string
}

// RandomGenerator draws codes uniformly from CodeAlphabet. It is not
// cryptographically secure; codes only need to avoid accidental collision.
type RandomGenerator struct {
	Length int
	rnd    *rand.Rand
}

// NewRandomGenerator returns a generator of CodeLength-character codes. A nil
// src uses the process-wide source.
func NewRandomGenerator(src rand.Source) *RandomGenerator {
	g := &RandomGenerator{Length: CodeLength}
	if src != nil {
		g.rnd = rand.New(src)
	}
	return g
}

func (g *RandomGenerator) Generate() string {
	n := g.Length
	if n <= 0 {
		n = CodeLength
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = CodeAlphabet[g.intN(len(CodeAlphabet))]
	}
	return string(b)
}

func (g *RandomGenerator) intN(n int) int {
	if g.rnd == nil {
		return rand.IntN(n)
	}
	return g.rnd.IntN(n)
}

// UniqueCode draws codes from gen until one is not taken, giving up with
// ErrCapacityExhausted after MaxCodeAttempts draws.
func UniqueCode(gen Generator, taken func(code string) bool) (string, error) {
	for range MaxCodeAttempts {
		code := gen.Generate()
		if !taken(code) {
			return code, nil
		}
	}
	return "", ErrCapacityExhausted
}

// NormalizeCode trims and uppercases a client-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the shape of a generated room code.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
