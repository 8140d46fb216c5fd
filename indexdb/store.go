// Package indexdb is the reference PersistenceBinder: an ethdb.Database-backed
// transactional cursor store, following the same RLP-accessor shape
// go-ethereum's core/rawdb uses for headers (ReadHeader/WriteHeader), applied
// to indexer.IndexState instead.
package indexdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/ethereum-mive/mive/mive/indexer"
)

var (
	headIndexStateKey       = []byte("mive-index-state-head")
	indexStateByNumberPrefix = []byte("mive-index-state-n-")
)

func indexStateKey(number indexer.BlockNumber) []byte {
	key := make([]byte, len(indexStateByNumberPrefix)+8)
	copy(key, indexStateByNumberPrefix)
	binary.BigEndian.PutUint64(key[len(indexStateByNumberPrefix):], uint64(number))
	return key
}

// rlpIndexState is the on-disk encoding of indexer.IndexState; kept distinct
// from the core type so the core package carries no rlp struct tags.
type rlpIndexState struct {
	BlockNumber        uint64
	BlockHash          common.Hash
	HandlerVersionName string
}

// Store is the reference PersistenceBinder. It owns exactly one piece of
// application state: the IndexState cursor, written both under a head key
// and under a per-block-number key so RollbackTo can look up the cursor that
// was active as of any previously-applied block. Applications with their own
// state tables embed Store inside a wrapping PersistenceBinder and call
// through to it only for the cursor bookkeeping; Store's own RollbackTo has
// nothing else to undo.
type Store struct {
	db ethdb.Database
}

// Open wraps db as a Store. db is expected to already be opened (e.g. via
// node.Node.OpenDatabase) and is not closed by Store.
func Open(db ethdb.Database) *Store {
	return &Store{db: db}
}

// LoadIndexState implements indexer.PersistenceBinder.
func (s *Store) LoadIndexState(ctx context.Context) (indexer.IndexState, error) {
	has, err := s.db.Has(headIndexStateKey)
	if err != nil {
		return indexer.IndexState{}, fmt.Errorf("indexdb: checking index state: %w", err)
	}
	if !has {
		return indexer.IndexState{}, nil
	}
	return s.readIndexState(headIndexStateKey)
}

func (s *Store) readIndexState(key []byte) (indexer.IndexState, error) {
	data, err := s.db.Get(key)
	if err != nil {
		return indexer.IndexState{}, fmt.Errorf("indexdb: reading index state: %w", err)
	}
	var rs rlpIndexState
	if err := rlp.DecodeBytes(data, &rs); err != nil {
		return indexer.IndexState{}, fmt.Errorf("indexdb: decoding index state: %w", err)
	}
	return indexer.IndexState{
		BlockNumber:        indexer.BlockNumber(rs.BlockNumber),
		BlockHash:          indexer.BlockHash(rs.BlockHash),
		HandlerVersionName: rs.HandlerVersionName,
	}, nil
}

// UpdateIndexState implements indexer.PersistenceBinder. state must be the
// ethdb.Batch handed to the HandleWithState closure. The cursor write is
// flushed immediately rather than deferred to the enclosing batch.Write, so
// a mid-block handler-version switch (see indexer's apply_updaters) is
// durable the instant it happens, per spec.md §9's "deliberate partial
// commit" note; any application writes accumulated in the same batch since
// the last flush are committed as part of this call too.
func (s *Store) UpdateIndexState(ctx context.Context, state any, block *indexer.Block, isReplay bool, handlerVersionName string, pctx any) error {
	batch, ok := state.(ethdb.Batch)
	if !ok {
		return errors.New("indexdb: UpdateIndexState requires the ethdb.Batch passed by HandleWithState")
	}

	rs := rlpIndexState{
		BlockNumber:        uint64(block.Info.BlockNumber),
		BlockHash:          common.Hash(block.Info.BlockHash),
		HandlerVersionName: handlerVersionName,
	}
	data, err := rlp.EncodeToBytes(&rs)
	if err != nil {
		log.Crit("Failed to RLP encode index state", "err", err)
	}
	if err := batch.Put(headIndexStateKey, data); err != nil {
		return fmt.Errorf("indexdb: writing head index state: %w", err)
	}
	if err := batch.Put(indexStateKey(block.Info.BlockNumber), data); err != nil {
		return fmt.Errorf("indexdb: writing index state history: %w", err)
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("indexdb: flushing index state: %w", err)
	}
	batch.Reset()
	return nil
}

// RollbackTo implements indexer.PersistenceBinder. It rewrites the head
// cursor to whatever IndexState was recorded as of blockNumber, so that the
// next LoadIndexState call (which Handler issues right after RollbackTo
// returns) observes the store as it stood immediately after blockNumber was
// applied.
func (s *Store) RollbackTo(ctx context.Context, blockNumber indexer.BlockNumber) error {
	if blockNumber == 0 {
		if err := s.db.Delete(headIndexStateKey); err != nil {
			return fmt.Errorf("indexdb: clearing index state on rollback to genesis: %w", err)
		}
		return nil
	}

	data, err := s.db.Get(indexStateKey(blockNumber))
	if err != nil {
		return fmt.Errorf("indexdb: rollback target block %d has no recorded index state: %w", blockNumber, err)
	}
	if err := s.db.Put(headIndexStateKey, data); err != nil {
		return fmt.Errorf("indexdb: restoring index state on rollback: %w", err)
	}
	return nil
}

// HandleWithState implements indexer.PersistenceBinder: it opens a batch,
// invokes f exactly once, and commits whatever is left unflushed in the
// batch on success. UpdateIndexState flushes eagerly, so by the time f
// returns this Write is usually a no-op; it still exists to commit any
// trailing application writes made after the last UpdateIndexState call.
func (s *Store) HandleWithState(ctx context.Context, f func(state any, pctx any) error) error {
	batch := s.db.NewBatch()
	if err := f(batch, nil); err != nil {
		return err
	}
	if batch.ValueSize() == 0 {
		return nil
	}
	return batch.Write()
}

var _ indexer.PersistenceBinder = (*Store)(nil)
