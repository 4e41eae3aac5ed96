// Package wire implements the canonical binary serialization of
// transactions and blocks described in spec.md §6.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Varint encoding prefixes, matching Bitcoin's CompactSize convention.
const (
	varint16Prefix = 0xfd
	varint32Prefix = 0xfe
	varint64Prefix = 0xff
)

// WriteVarInt writes n to w using the minimal CompactSize encoding.
func WriteVarInt(w io.Writer, n uint64) error {
	switch {
	case n < varint16Prefix:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = varint16Prefix
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf)
		return err
	case n <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = varint32Prefix
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = varint64Prefix
		binary.LittleEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf)
		return err
	}
}

// ReadVarInt reads a CompactSize-encoded integer from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	switch prefix[0] {
	case varint16Prefix:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[:])), nil
	case varint32Prefix:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), nil
	case varint64Prefix:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	default:
		return uint64(prefix[0]), nil
	}
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would emit
// for n.
func VarIntSerializeSize(n uint64) int {
	switch {
	case n < varint16Prefix:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// WriteVarBytes writes a varint length prefix followed by b.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxVarBytesLen bounds a single varbytes read to guard against a
// maliciously large length prefix exhausting memory.
const maxVarBytesLen = 32 * 1024 * 1024

// ReadVarBytes reads a varint length prefix followed by that many bytes.
func ReadVarBytes(r io.Reader) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxVarBytesLen {
		return nil, fmt.Errorf("wire: varbytes length %d exceeds maximum %d", n, maxVarBytesLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
