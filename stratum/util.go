package stratum

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
)

// decodeFixedHex decodes s as hex, requiring exactly n decoded bytes.
func decodeFixedHex(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("stratum: invalid hex %q: %w", s, err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("stratum: %q decodes to %d bytes, want %d", s, len(b), n)
	}
	return b, nil
}

// bytesReader wraps b in an io.Reader for wire's Deserialize* helpers.
func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
