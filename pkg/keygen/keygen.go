package keygen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// alphabet is the symbol set keys are drawn from; digits 0 and 1 are excluded
// to keep keys unambiguous when read aloud or typed. Encoding masks to 5 bits,
// so only the first 32 symbols are reachable.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ23456789"

const (
	entropyBytes = 16
	groupSize    = 4
)

// Generate draws 16 bytes from the system CSPRNG and base32-encodes them,
// yielding a 26-character uppercase key. No collision check is performed;
// 128 bits of entropy makes collisions a non-concern at any realistic scale.
func Generate() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("keygen: read entropy: %w", err)
	}
	return base32Encode(buf), nil
}

// Format groups a key into hyphen-separated 4-character segments for display
// (XXXX-XXXX-...). Storage and lookup always use the unformatted form.
func Format(key string) string {
	if key == "" {
		return ""
	}
	var groups []string
	for i := 0; i < len(key); i += groupSize {
		end := i + groupSize
		if end > len(key) {
			end = len(key)
		}
		groups = append(groups, key[i:end])
	}
	return strings.Join(groups, "-")
}

// Normalize strips display formatting from raw key input before lookup.
func Normalize(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
}

func base32Encode(data []byte) string {
	var out strings.Builder
	v := 0
	vBits := 0

	for _, b := range data {
		v = v<<8 | int(b)
		vBits += 8
		for vBits >= 5 {
			vBits -= 5
			out.WriteByte(alphabet[(v>>vBits)&0x1F])
		}
	}
	if vBits > 0 {
		out.WriteByte(alphabet[(v<<(5-vBits))&0x1F])
	}
	return out.String()
}
