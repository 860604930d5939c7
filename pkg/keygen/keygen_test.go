package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShapeAndAlphabet(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	assert.Len(t, key, 26)
	for _, r := range key {
		assert.Contains(t, alphabet, string(r), "key %q contains out-of-alphabet rune", key)
	}
}

func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		key, err := Generate()
		require.NoError(t, err)
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = struct{}{}
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(""))
	assert.Equal(t, "ABCD", Format("ABCD"))
	assert.Equal(t, "ABCD-EF", Format("ABCDEF"))

	key, err := Generate()
	require.NoError(t, err)
	formatted := Format(key)
	assert.Equal(t, 6, strings.Count(formatted, "-"), "26 chars should yield 7 groups")
	assert.Equal(t, key, Normalize(formatted))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABCD2345", Normalize("abcd-2345"))
	assert.Equal(t, "ABCD2345", Normalize("  ABCD2345  "))
	assert.Equal(t, "ABCD2345", Normalize("a-b-c-d-2-3-4-5"))
	assert.Equal(t, "", Normalize("   "))
}

func TestBase32EncodeKnownVector(t *testing.T) {
	// 0x00 repeated maps to the first symbol of the alphabet.
	assert.Equal(t, strings.Repeat("A", 8), base32Encode(make([]byte, 5)))
	// 0xFF repeated maps to index 31, which is '7'; the trailing digits 8 and 9
	// in the alphabet are unreachable under the 5-bit mask.
	assert.Equal(t, strings.Repeat("7", 8), base32Encode([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
}
