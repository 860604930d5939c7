package keycrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "unit-test-secret-material"
	testIV     = "0123456789abcdef"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(testSecret, testIV, 256, "CBC")
	require.NoError(t, err)
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	for _, plaintext := range []string{
		"ABCD2345EFGH6789IJKL2345MN",
		"x",
		"exactly-16-bytes",
		"a longer value that spans several aes blocks without trouble",
	} {
		ct := c.Encrypt(plaintext)
		got, err := c.Decrypt(ct)
		require.NoError(t, err, "plaintext %q", plaintext)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptIsDeterministic(t *testing.T) {
	c := newTestCodec(t)

	first := c.Encrypt("STABLELOOKUPKEY")
	second := c.Encrypt("STABLELOOKUPKEY")
	assert.Equal(t, first, second, "same plaintext must produce identical ciphertext")

	other := c.Encrypt("DIFFERENTKEY")
	assert.NotEqual(t, first, other)
}

func TestEncryptDiffersAcrossCodecs(t *testing.T) {
	a := newTestCodec(t)
	b, err := New("another-secret", testIV, 256, "CBC")
	require.NoError(t, err)

	assert.NotEqual(t, a.Encrypt("SAMEKEY"), b.Encrypt("SAMEKEY"))
}

func TestDecryptPassthrough(t *testing.T) {
	c := newTestCodec(t)

	for _, raw := range []string{
		`{"status":"active"}`,
		"already { partially structured",
		"<xml/>",
	} {
		got, err := c.Decrypt(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, got, "structured input must pass through unchanged")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	// Valid base64, wrong block alignment.
	_, err = c.Decrypt("YWJj")
	assert.Error(t, err)
}

func TestNewRejectsAuthenticatedModes(t *testing.T) {
	for _, mode := range []string{"CBC-HMAC-SHA1", "CBC-HMAC-SHA256", "XTS", "cbc-hmac-sha256"} {
		_, err := New(testSecret, testIV, 256, mode)
		require.Error(t, err, "mode %s", mode)
		assert.True(t, strings.Contains(err.Error(), "invalid block size and mode combination"), "got: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New("", testIV, 256, "CBC")
	assert.Error(t, err, "empty secret")

	_, err = New(testSecret, "short", 256, "CBC")
	assert.Error(t, err, "short iv")

	_, err = New(testSecret, testIV, 512, "CBC")
	assert.Error(t, err, "unsupported block size")

	_, err = New(testSecret, testIV, 256, "CTR")
	assert.Error(t, err, "unsupported mode")
}

func TestAllKeyLengths(t *testing.T) {
	for _, size := range []int{128, 192, 256} {
		c, err := New(testSecret, testIV, size, "CBC")
		require.NoError(t, err, "block size %d", size)

		ct := c.Encrypt("payload")
		got, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, "payload", got)
	}
}
