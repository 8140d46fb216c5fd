package indexer_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-mive/mive/chainsrc"
	"github.com/ethereum-mive/mive/mive/indexer"
)

func hash(s string) indexer.BlockHash {
	return indexer.BlockHash(common.BytesToHash([]byte(s)))
}

func block(number uint64, h, prev string, actions ...indexer.Action) *indexer.Block {
	return &indexer.Block{
		Info: indexer.BlockInfo{
			BlockNumber:       indexer.BlockNumber(number),
			BlockHash:         hash(h),
			PreviousBlockHash: hash(prev),
		},
		Actions: actions,
	}
}

func TestNextBlockReturnsOneBlockPerCall(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	src.SetBlock(block(1, "a", ""))
	src.SetBlock(block(2, "b", "a"))
	src.SetBlock(block(3, "c", "b"))
	src.SetHead(3)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})

	for _, want := range []uint64{1, 2, 3} {
		blk, isRollback, isNew, err := r.NextBlock(ctx)
		require.NoError(t, err)
		require.False(t, isRollback)
		require.True(t, isNew)
		require.Equal(t, want, uint64(blk.Info.BlockNumber))
	}
	require.False(t, r.IsFirstBlock()) // last call (block 3) is not the first block

	// Polling again with no new block is idempotent: same block, isNew=false.
	blk, isRollback, isNew, err := r.NextBlock(ctx)
	require.NoError(t, err)
	require.False(t, isRollback)
	require.False(t, isNew)
	require.Equal(t, uint64(3), uint64(blk.Info.BlockNumber))
}

func TestNextBlockFirstBlockFlag(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	src.SetBlock(block(1, "a", ""))
	src.SetBlock(block(2, "b", "a"))
	src.SetHead(2)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})

	_, _, _, err := r.NextBlock(ctx)
	require.NoError(t, err)
	require.True(t, r.IsFirstBlock())

	_, _, _, err = r.NextBlock(ctx)
	require.NoError(t, err)
	require.False(t, r.IsFirstBlock())
}

// TestNextBlockAdvancesLinearly regression-tests the loop over the prefetch
// range (current+1..head): it must fetch every block in the gap, not skip
// any (the typo flagged in spec §9 would manifest as an infinite loop or a
// gap here).
func TestNextBlockAdvancesLinearly(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	prev := ""
	for i := uint64(1); i <= 20; i++ {
		h := string(rune('a' + i))
		src.SetBlock(block(i, h, prev))
		prev = h
	}
	src.SetHead(20)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 5})
	for i := uint64(1); i <= 20; i++ {
		blk, _, isNew, err := r.NextBlock(ctx)
		require.NoError(t, err)
		require.True(t, isNew)
		require.Equal(t, i, uint64(blk.Info.BlockNumber))
	}
}

// TestHistoryBound checks invariant 6: |block_history| <= max_history_length
// at all observable points.
func TestHistoryBound(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	prev := ""
	for i := uint64(1); i <= 10; i++ {
		h := string(rune('a' + i))
		src.SetBlock(block(i, h, prev))
		prev = h
	}
	src.SetHead(10)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 3})
	for i := 0; i < 10; i++ {
		_, _, _, err := r.NextBlock(ctx)
		require.NoError(t, err)
		require.LessOrEqual(t, len(r.History()), 3)
	}
}

// TestForkReorgAtDepth2 is scenario S2: fork at depth 2, resolved by
// walk-back, driver observes the rollback and then the new branch one block
// at a time.
func TestForkReorgAtDepth2(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	src.SetBlock(block(1, "a", ""))
	src.SetBlock(block(2, "b", "a"))
	src.SetBlock(block(3, "c", "b"))
	src.SetHead(3)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})

	for i := 0; i < 3; i++ {
		_, _, _, err := r.NextBlock(ctx)
		require.NoError(t, err)
	}

	// Reorg: blocks 2 and 3 are replaced, block 4 extends the new branch.
	src.SetBlock(block(2, "b2", "a"))
	src.SetBlock(block(3, "c2", "b2"))
	src.SetBlock(block(4, "d2", "c2"))
	src.SetHead(4)

	blk, isRollback, isNew, err := r.NextBlock(ctx)
	require.NoError(t, err)
	require.True(t, isRollback)
	require.True(t, isNew)
	require.Equal(t, uint64(2), uint64(blk.Info.BlockNumber))
	require.Equal(t, hash("b2"), blk.Info.BlockHash)

	blk, isRollback, isNew, err = r.NextBlock(ctx)
	require.NoError(t, err)
	require.False(t, isRollback)
	require.True(t, isNew)
	require.Equal(t, uint64(3), uint64(blk.Info.BlockNumber))
	require.Equal(t, hash("c2"), blk.Info.BlockHash)

	blk, isRollback, isNew, err = r.NextBlock(ctx)
	require.NoError(t, err)
	require.False(t, isRollback)
	require.True(t, isNew)
	require.Equal(t, uint64(4), uint64(blk.Info.BlockNumber))
}

// TestSeekToYieldsTarget is scenario S4: after SeekTo(target), the next
// NextBlock call must yield exactly target.
func TestSeekToYieldsTarget(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	prev := ""
	for i := uint64(1); i <= 15; i++ {
		h := string(rune('a' + i))
		src.SetBlock(block(i, h, prev))
		prev = h
	}
	src.SetHead(15)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})
	for i := 0; i < 5; i++ {
		_, _, _, err := r.NextBlock(ctx)
		require.NoError(t, err)
	}

	err := r.SeekTo(ctx, 11)
	require.NoError(t, err)

	blk, _, _, err := r.NextBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(11), uint64(blk.Info.BlockNumber))
}

// TestSeekToFoundInHistory covers the branch where the seek target's
// preceding block is still present in block_history, rather than needing a
// fresh fetch.
func TestSeekToFoundInHistory(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	prev := ""
	for i := uint64(1); i <= 15; i++ {
		h := string(rune('a' + i))
		src.SetBlock(block(i, h, prev))
		prev = h
	}
	src.SetHead(15)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})
	for i := 0; i < 8; i++ {
		_, _, _, err := r.NextBlock(ctx)
		require.NoError(t, err)
	}

	// block_history now holds blocks 1..7 (current is block 8); seeking back
	// to block 5 should find block 4 in history rather than refetching it.
	err := r.SeekTo(ctx, 5)
	require.NoError(t, err)

	blk, _, _, err := r.NextBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), uint64(blk.Info.BlockNumber))
	require.LessOrEqual(t, len(r.History()), 10)
}

// TestSeekBeforeStartRejected checks SeekTo(n < start_at_block) is rejected.
func TestSeekBeforeStartRejected(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	src.SetBlock(block(5, "e", "d"))
	src.SetHead(5)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 5, MaxHistoryLength: 10})
	err := r.SeekTo(ctx, 3)
	require.ErrorIs(t, err, indexer.ErrSeekBeforeStart)
}

// TestHistoryExhaustedIsFatalByDefault is scenario S6.
func TestHistoryExhaustedIsFatalByDefault(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	src.SetBlock(block(1, "a", ""))
	src.SetBlock(block(2, "b", "a"))
	src.SetBlock(block(3, "c", "b"))
	src.SetHead(3)

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 1})
	for i := 0; i < 3; i++ {
		_, _, _, err := r.NextBlock(ctx)
		require.NoError(t, err)
	}

	// Fork deeper than max_history_length=1: block 3's entire ancestry up to
	// genesis is replaced, so the single retained history entry never links.
	src.SetBlock(block(2, "b2", "zz"))
	src.SetBlock(block(3, "c2", "b2"))
	src.SetBlock(block(4, "d2", "c2"))
	src.SetHead(4)

	_, _, _, err := r.NextBlock(ctx)
	require.ErrorIs(t, err, indexer.ErrHistoryExhausted)
}

func TestTailingStartAtBlock(t *testing.T) {
	ctx := context.Background()
	src := chainsrc.NewFake()
	prev := ""
	for i := uint64(1); i <= 10; i++ {
		h := string(rune('a' + i))
		src.SetBlock(block(i, h, prev))
		prev = h
	}
	src.SetHead(10)

	// start_at_block = -2 means "start two blocks behind head", i.e. block 8.
	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: -2, MaxHistoryLength: 10})
	blk, _, _, err := r.NextBlock(ctx)
	require.NoError(t, err)
	require.True(t, r.IsFirstBlock())
	require.Equal(t, uint64(8), uint64(blk.Info.BlockNumber))
}
