// Package persist durably mirrors in-memory state to disk: the chain's
// blocks to a leveldb append log, and the Stratum pool's payout
// bookkeeping to a bbolt file.
package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/aurum-project/aurumd/wire"
)

// BlockStore appends every committed block to a leveldb instance keyed
// by big-endian height, so a restart can replay the chain back into a
// fresh in-memory chainstore.Store without re-downloading it from peers.
type BlockStore struct {
	db *leveldb.DB
}

// OpenBlockStore opens (creating if absent) the leveldb block log at
// path.
func OpenBlockStore(path string) (*BlockStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("persist: open block store: %w", err)
	}
	return &BlockStore{db: db}, nil
}

// Close releases the underlying leveldb handle.
func (bs *BlockStore) Close() error {
	return bs.db.Close()
}

// Append persists b at its height. Callers append in height order; the
// store does not reorder or validate.
func (bs *BlockStore) Append(b *wire.Block) error {
	key := heightKey(b.Height)
	if err := bs.db.Put(key, b.Bytes(), nil); err != nil {
		return fmt.Errorf("persist: put block %d: %w", b.Height, err)
	}
	return nil
}

// Truncate deletes every persisted block from height onward, used after a
// reorg discards blocks the in-memory store also discarded.
func (bs *BlockStore) Truncate(fromHeight uint32) error {
	batch := new(leveldb.Batch)
	iter := bs.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Seek(heightKey(fromHeight)); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("persist: truncate iterate: %w", err)
	}
	if err := bs.db.Write(batch, nil); err != nil {
		return fmt.Errorf("persist: truncate write: %w", err)
	}
	return nil
}

// LoadAll returns every persisted block in ascending height order, for
// replay at startup.
func (bs *BlockStore) LoadAll() ([]*wire.Block, error) {
	var blocks []*wire.Block
	iter := bs.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		b, err := wire.DeserializeBlock(bytesReader(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("persist: deserialize block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("persist: iterate blocks: %w", err)
	}
	return blocks, nil
}

func heightKey(height uint32) []byte {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], height)
	return key[:]
}
