package code

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	g := NewGenerator(4)
	for i := 0; i < 100; i++ {
		c, err := g.Generate()
		require.NoError(t, err)
		assert.Len(t, c, 4)
		for _, r := range c {
			assert.Contains(t, Alphabet, string(r))
		}
	}
}

func TestGenerate_Uppercase(t *testing.T) {
	g := NewGenerator(8)
	c, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(c), c)
}

func TestNewGenerator_LengthFallback(t *testing.T) {
	assert.Equal(t, DefaultLength, NewGenerator(0).Length())
	assert.Equal(t, DefaultLength, NewGenerator(-3).Length())
	assert.Equal(t, 6, NewGenerator(6).Length())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AB12", Normalize("ab12"))
	assert.Equal(t, "AB12", Normalize("  Ab12 "))
	assert.Equal(t, "", Normalize("   "))
}

func TestPropertyGeneratedCodesAreCanonical(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(1, 12).Draw(t, "length")
		g := NewGenerator(length)
		c, err := g.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(c) != length {
			t.Fatalf("code %q has length %d, want %d", c, len(c), length)
		}
		if Normalize(c) != c {
			t.Fatalf("code %q is not canonical", c)
		}
	})
}
