package chainsrc

import (
	"context"
	"fmt"

	"github.com/ethereum-mive/mive/mive/indexer"
)

// Fake is an in-memory indexer.ChainSource backed by a map of block number to
// block, plus a mutable "canonical" head. Tests construct a Fake, seed it
// with one or more chains, and call SetBlock (and SetHead) to simulate a
// reorg: the next GetBlock for an already-delivered number returns the new
// version.
//
// Concurrent GetBlock/GetHeadBlockNumber calls, such as the reader's
// prefetch fan-out, are safe only while no SetBlock, SetHead or
// SetHistoryExhaustedHook call runs at the same time.
type Fake struct {
	head   indexer.BlockNumber
	blocks map[indexer.BlockNumber]*indexer.Block

	historyExhausted func(ctx context.Context) error
}

// NewFake constructs an empty Fake chain source.
func NewFake() *Fake {
	return &Fake{blocks: make(map[indexer.BlockNumber]*indexer.Block)}
}

// SetBlock installs or replaces the block at its own number, and advances the
// head if this block is now the highest known number.
func (f *Fake) SetBlock(b *indexer.Block) {
	f.blocks[b.Info.BlockNumber] = b
	if b.Info.BlockNumber > f.head {
		f.head = b.Info.BlockNumber
	}
}

// SetHead forces the head block number, independent of which blocks are
// installed (used to simulate a shorter post-reorg canonical chain).
func (f *Fake) SetHead(n indexer.BlockNumber) {
	f.head = n
}

// SetHistoryExhaustedHook installs an override for HistoryExhausted.
func (f *Fake) SetHistoryExhaustedHook(hook func(ctx context.Context) error) {
	f.historyExhausted = hook
}

func (f *Fake) GetHeadBlockNumber(ctx context.Context) (indexer.BlockNumber, error) {
	return f.head, nil
}

func (f *Fake) GetBlock(ctx context.Context, number indexer.BlockNumber) (*indexer.Block, error) {
	blk, ok := f.blocks[number]
	if !ok {
		return nil, fmt.Errorf("fake chain source: no block %d installed", number)
	}
	return blk, nil
}

func (f *Fake) HistoryExhausted(ctx context.Context) error {
	if f.historyExhausted != nil {
		return f.historyExhausted(ctx)
	}
	return indexer.ErrHistoryExhausted
}
