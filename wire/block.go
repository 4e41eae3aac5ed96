package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aurum-project/aurumd/internal/chainhash"
)

// HeaderSize is the fixed size, in bytes, of a serialized block header
// (spec.md §3): version(4) || prev_hash(32) || merkle_root(32) ||
// timestamp(4) || bits(4) || nonce(4).
const HeaderSize = 4 + chainhash.HashSize + chainhash.HashSize + 4 + 4 + 4

// BlockHeader is the 80-byte block header.
type BlockHeader struct {
	Version    uint32
	PrevHash   chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Serialize writes the 80-byte header to w.
func (h *BlockHeader) Serialize(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], h.Version)
	off += 4
	copy(buf[off:], h.PrevHash[:])
	off += chainhash.HashSize
	copy(buf[off:], h.MerkleRoot[:])
	off += chainhash.HashSize
	binary.LittleEndian.PutUint32(buf[off:], h.Timestamp)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Bits)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Nonce)
	_, err := w.Write(buf)
	return err
}

// Bytes returns the 80-byte serialized header.
func (h *BlockHeader) Bytes() []byte {
	var buf bytes.Buffer
	_ = h.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeBlockHeader parses an 80-byte header from r.
func DeserializeBlockHeader(r io.Reader) (*BlockHeader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	h := &BlockHeader{}
	off := 0
	h.Version = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	copy(h.PrevHash[:], buf[off:off+chainhash.HashSize])
	off += chainhash.HashSize
	copy(h.MerkleRoot[:], buf[off:off+chainhash.HashSize])
	off += chainhash.HashSize
	h.Timestamp = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Bits = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Nonce = binary.LittleEndian.Uint32(buf[off:])
	return h, nil
}

// BlockHash computes SHA-256d over the 80-byte header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	return chainhash.HashH(h.Bytes())
}

// Block is a full block: header metadata plus its transactions.
// Height is consensus-relevant (spec.md §4.2 check 1) but is not part of
// the 80-byte header; it is tracked alongside the header in the chain
// store and in the wire envelope used between peers.
type Block struct {
	Header BlockHeader
	Height uint32
	Txs    []*Transaction
}

// Serialize writes height || header || varint(|txs|) || txs to w. Height
// is carried in the wire envelope (not the 80-byte header) purely as a
// transport convenience; it is never used as a substitute for verifying
// the header chain.
func (b *Block) Serialize(w io.Writer) error {
	var heightBuf [4]byte
	binary.LittleEndian.PutUint32(heightBuf[:], b.Height)
	if _, err := w.Write(heightBuf[:]); err != nil {
		return err
	}
	if err := b.Header.Serialize(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(b.Txs))); err != nil {
		return err
	}
	for _, tx := range b.Txs {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized block.
func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	_ = b.Serialize(&buf)
	return buf.Bytes()
}

// SerializeSize returns the exact byte length Serialize would produce,
// without allocating the full buffer (spec.md §4.2 check 10).
func (b *Block) SerializeSize() int {
	size := 4 + HeaderSize + VarIntSerializeSize(uint64(len(b.Txs)))
	for _, tx := range b.Txs {
		size += tx.SerializeSize()
	}
	return size
}

// DeserializeBlock parses a block written by Serialize.
func DeserializeBlock(r io.Reader) (*Block, error) {
	var heightBuf [4]byte
	if _, err := io.ReadFull(r, heightBuf[:]); err != nil {
		return nil, err
	}
	b := &Block{Height: binary.LittleEndian.Uint32(heightBuf[:])}
	header, err := DeserializeBlockHeader(r)
	if err != nil {
		return nil, err
	}
	b.Header = *header

	numTx, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	b.Txs = make([]*Transaction, numTx)
	for i := range b.Txs {
		tx, err := DeserializeTransaction(r)
		if err != nil {
			return nil, fmt.Errorf("wire: deserialize tx %d: %w", i, err)
		}
		b.Txs[i] = tx
	}
	return b, nil
}

// MerkleRoot computes the merkle root over txids, duplicating the final
// node at each level when the level has an odd number of nodes.
func MerkleRoot(txids []chainhash.Hash) chainhash.Hash {
	if len(txids) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(txids))
	copy(level, txids)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			var concat [2 * chainhash.HashSize]byte
			copy(concat[:chainhash.HashSize], level[i][:])
			copy(concat[chainhash.HashSize:], level[i+1][:])
			next[i/2] = chainhash.HashH(concat[:])
		}
		level = next
	}
	return level[0]
}
