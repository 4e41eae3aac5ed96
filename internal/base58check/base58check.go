// Package base58check implements Base58Check encoding: a version byte, a
// payload, and a 4-byte double-SHA256 checksum, all base58-encoded.
package base58check

import (
	"bytes"
	"fmt"

	"github.com/decred/base58"

	"github.com/aurum-project/aurumd/internal/chainhash"
)

// ErrChecksum is returned by Decode when the checksum does not match.
var ErrChecksum = fmt.Errorf("base58check: checksum mismatch")

// ErrInvalidFormat is returned by Decode when the decoded data is too
// short to contain a version byte and checksum.
var ErrInvalidFormat = fmt.Errorf("base58check: invalid format")

// Encode returns the Base58Check encoding of version‖payload.
func Encode(version byte, payload []byte) string {
	buf := make([]byte, 0, 1+len(payload)+4)
	buf = append(buf, version)
	buf = append(buf, payload...)
	cksum := checksum(buf)
	buf = append(buf, cksum[:]...)
	return base58.Encode(buf)
}

// Decode decodes a Base58Check string, verifying the checksum, and
// returns the version byte and payload.
func Decode(s string) (version byte, payload []byte, err error) {
	decoded := base58.Decode(s)
	if len(decoded) < 5 {
		return 0, nil, ErrInvalidFormat
	}
	body := decoded[:len(decoded)-4]
	want := decoded[len(decoded)-4:]
	got := checksum(body)
	if !bytes.Equal(got[:], want) {
		return 0, nil, ErrChecksum
	}
	return body[0], body[1:], nil
}

func checksum(b []byte) (cksum [4]byte) {
	h := chainhash.HashB(b)
	copy(cksum[:], h[:4])
	return cksum
}
