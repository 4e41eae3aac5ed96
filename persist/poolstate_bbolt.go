package persist

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/aurum-project/aurumd/stratum"
)

var poolStateBucket = []byte("pool_state")

const poolStateKey = "state"

// PoolStateStore persists a stratum.State to a bbolt file, matching the
// pool state file's field shape: total_paid, total_fees, blocks_paid,
// a bounded completed-payout history, and the pending-payout map.
type PoolStateStore struct {
	db *bolt.DB
}

// OpenPoolStateStore opens (creating if absent) the bbolt file at path.
func OpenPoolStateStore(path string) (*PoolStateStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("persist: open pool state store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(poolStateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: create pool state bucket: %w", err)
	}
	return &PoolStateStore{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (ps *PoolStateStore) Close() error {
	return ps.db.Close()
}

// Save writes state, overwriting whatever was previously persisted.
func (ps *PoolStateStore) Save(state stratum.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("persist: marshal pool state: %w", err)
	}
	return ps.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(poolStateBucket).Put([]byte(poolStateKey), data)
	})
}

// Load reads the persisted state, returning ok=false if nothing has been
// saved yet (a fresh pool).
func (ps *PoolStateStore) Load() (state stratum.State, ok bool, err error) {
	err = ps.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(poolStateBucket).Get([]byte(poolStateKey))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return stratum.State{}, false, fmt.Errorf("persist: load pool state: %w", err)
	}
	return state, ok, nil
}
