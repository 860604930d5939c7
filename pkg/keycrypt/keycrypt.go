package keycrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Codec performs deterministic AES-CBC encryption for key material that must
// support equality lookup on ciphertext. The IV is fixed per codec instance,
// so a given plaintext always maps to the same ciphertext. That trade-off is
// deliberate: the store indexes ciphertext and never holds plaintext, at the
// cost of repeated plaintexts being distinguishable.
type Codec struct {
	block cipher.Block
	iv    []byte
}

const (
	cipherName = "AES"
	kdfIters   = 4096
)

// Combinations that pair the codec with authenticated or XTS modes defeat the
// deterministic-lookup purpose and are rejected at construction.
var unsupportedModes = map[string]struct{}{
	"CBC-HMAC-SHA1":   {},
	"CBC-HMAC-SHA256": {},
	"XTS":             {},
}

// New builds a codec for the given secret/IV pair. blockSize selects the AES
// key length (128, 192 or 256); mode must be CBC.
func New(secret, iv string, blockSize int, mode string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("keycrypt: secret is required")
	}

	normalizedMode := strings.ToUpper(strings.TrimSpace(mode))
	if _, bad := unsupportedModes[normalizedMode]; bad {
		return nil, fmt.Errorf("keycrypt: invalid block size and mode combination %s-%d-%s", cipherName, blockSize, normalizedMode)
	}
	if normalizedMode != "CBC" {
		return nil, fmt.Errorf("keycrypt: unsupported cipher mode %q", mode)
	}

	var keyLen int
	switch blockSize {
	case 128:
		keyLen = 16
	case 192:
		keyLen = 24
	case 256:
		keyLen = 32
	default:
		return nil, fmt.Errorf("keycrypt: unsupported block size %d", blockSize)
	}

	if len(iv) < aes.BlockSize {
		return nil, fmt.Errorf("keycrypt: iv must be at least %d bytes", aes.BlockSize)
	}

	key := pbkdf2.Key([]byte(secret), []byte(iv), kdfIters, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keycrypt: init cipher: %w", err)
	}

	return &Codec{
		block: block,
		iv:    []byte(iv)[:aes.BlockSize],
	}, nil
}

// Encrypt returns the base64-encoded ciphertext of plaintext. Deterministic
// for a fixed codec: Encrypt(x) == Encrypt(x) always.
func (c *Codec) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. Input that already looks like structured data is
// returned unchanged; legacy rows written before encryption was introduced
// pass through untouched during migration windows.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if strings.ContainsAny(ciphertext, "{}<") {
		return ciphertext, nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("keycrypt: decode ciphertext: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("keycrypt: ciphertext length %d not block aligned", len(raw))
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("keycrypt: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("keycrypt: invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("keycrypt: invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
