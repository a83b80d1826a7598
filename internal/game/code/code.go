// Package code generates short human-typable session codes.
package code

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet is the set of characters used in session codes. Uppercase letters
// and digits only, so codes survive case-insensitive entry and read aloud well.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the code length used when none is configured.
const DefaultLength = 4

// Generator produces fixed-length session codes from Alphabet.
// Generation makes no uniqueness guarantee; callers that need unique codes
// must check against their own registry and regenerate on collision.
type Generator struct {
	length int
}

// NewGenerator creates a Generator producing codes of the given length.
//
// Precondition: length must be >= 1; values < 1 fall back to DefaultLength.
func NewGenerator(length int) *Generator {
	if length < 1 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a fresh uppercase code.
//
// Postcondition: Returns a string of exactly Length() characters from Alphabet,
// or an error if the system randomness source fails.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	var b strings.Builder
	b.Grow(g.length)
	for _, c := range buf {
		b.WriteByte(Alphabet[int(c)%len(Alphabet)])
	}
	return b.String(), nil
}

// Normalize maps a user-entered code to canonical form.
//
// Postcondition: Returns the code uppercased with surrounding whitespace removed.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
