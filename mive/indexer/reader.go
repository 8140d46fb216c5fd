package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// defaultPrefetchFanout bounds how many blocks the reader fetches
// concurrently during NextBlock's advance step, so a long gap between the
// cursor and head doesn't hammer the chain source with an unbounded burst of
// requests.
const defaultPrefetchFanout = 8

// ReaderConfig configures a Reader's behavior; it is immutable once the
// Reader is constructed.
type ReaderConfig struct {
	// StartAtBlock is the first block number the reader should ever return.
	// A negative value means "head + StartAtBlock" (tailing): e.g. -1 means
	// "start one block behind head".
	StartAtBlock int64

	// OnlyIrreversible restricts GetHeadBlockNumber to irreversible blocks.
	// Chain sources honoring this may leave HistoryExhaustedHook
	// unimplemented, since irreversible blocks cannot fork.
	OnlyIrreversible bool

	// MaxHistoryLength bounds the in-memory rolling history used to resolve
	// forks by walk-back comparison.
	MaxHistoryLength int

	// PrefetchFanout bounds concurrent fetches during the advance step. Zero
	// means defaultPrefetchFanout.
	PrefetchFanout int
}

// Reader is a forward cursor over a chain that detects forks by
// hash-chaining, maintains a bounded rolling history, and resolves forks by
// walk-back comparison against freshly refetched blocks. See spec §4.1.
type Reader struct {
	source ChainSource
	cfg    ReaderConfig

	startAtBlock     int64
	onlyIrreversible bool
	maxHistoryLength int

	headBlockNumber    BlockNumber
	currentBlockNumber int64
	isFirstBlock       bool
	currentBlockData   *Block
	blockHistory       []Block

	prefetchBuffer []*Block
}

// NewReader constructs a Reader over source with the given configuration.
func NewReader(source ChainSource, cfg ReaderConfig) *Reader {
	fanout := cfg.PrefetchFanout
	if fanout <= 0 {
		fanout = defaultPrefetchFanout
	}
	cfg.PrefetchFanout = fanout

	return &Reader{
		source:             source,
		cfg:                cfg,
		startAtBlock:       cfg.StartAtBlock,
		onlyIrreversible:   cfg.OnlyIrreversible,
		maxHistoryLength:   cfg.MaxHistoryLength,
		currentBlockNumber: cfg.StartAtBlock - 1,
	}
}

// IsFirstBlock reports whether the block returned by the most recent
// NextBlock call is the reader's configured starting block.
func (r *Reader) IsFirstBlock() bool {
	return r.isFirstBlock
}

// LastHeadBlockNumber reports the chain head as of the most recent refresh,
// for diagnostics (e.g. mive/indexer/metricsrv); it is not refetched by this
// call.
func (r *Reader) LastHeadBlockNumber() BlockNumber {
	return r.headBlockNumber
}

// NextBlock advances (or refreshes) the cursor and returns the block now
// considered current, along with whether this call triggered a fork rollback
// and whether the returned block is new since the previous call.
func (r *Reader) NextBlock(ctx context.Context) (block *Block, isRollback bool, isNew bool, err error) {
	// 1. Head refresh.
	if r.currentBlockNumber == int64(r.headBlockNumber) || r.headBlockNumber == 0 {
		if err := r.refreshHead(ctx); err != nil {
			return nil, false, false, err
		}
	}

	// 2. Tail resolution. current_block_number is kept one behind the next
	// block to be fetched, so start_at_block is rewritten to the same
	// convention: the absolute number of the first block this reader will
	// ever emit, not that number minus one.
	if r.currentBlockNumber < 0 && len(r.blockHistory) == 0 {
		absolute := int64(r.headBlockNumber) + r.startAtBlock
		r.startAtBlock = absolute
		r.currentBlockNumber = absolute - 1
	}

	// 3. Advance, at most one block per call: a single call either links the
	// next buffered block onto the current tip, or resolves a fork back to a
	// valid ancestor. Either outcome is returned immediately rather than
	// draining the gap to head in one call, so that the caller (Handler) sees
	// every block, including every intermediate one of a reorg, exactly once.
	if r.currentBlockNumber < int64(r.headBlockNumber) {
		if len(r.prefetchBuffer) == 0 {
			if err := r.fillPrefetchBuffer(ctx); err != nil {
				return nil, false, false, err
			}
		}

		next := r.prefetchBuffer[0]
		r.prefetchBuffer = r.prefetchBuffer[1:]

		var expected BlockHash
		haveExpected := false
		if r.currentBlockData != nil {
			expected = r.currentBlockData.Info.BlockHash
			haveExpected = true
		}
		actual := next.Info.PreviousBlockHash

		linked := len(r.blockHistory) == 0 || (haveExpected && expected == actual)
		if linked {
			if r.currentBlockData != nil {
				r.blockHistory = append(r.blockHistory, *r.currentBlockData)
				if overflow := len(r.blockHistory) - r.maxHistoryLength; overflow > 0 {
					r.blockHistory = append([]Block(nil), r.blockHistory[overflow:]...)
				}
			}
			r.currentBlockData = next
			r.currentBlockNumber = int64(next.Info.BlockNumber)
			isNew = true
		} else {
			if err := r.resolveFork(ctx, next); err != nil {
				return nil, false, false, err
			}
			isNew = true
			isRollback = true
			if err := r.refreshHead(ctx); err != nil {
				return nil, false, false, err
			}
		}
	}

	// 4. First-block flag.
	r.isFirstBlock = r.currentBlockNumber == r.startAtBlock

	if r.currentBlockData == nil {
		return nil, false, false, ErrReaderInvariant
	}
	return r.currentBlockData, isRollback, isNew, nil
}

// refreshHead refetches the head block number and clears any in-flight
// prefetch, since the previously prefetched range may no longer be valid
// (e.g. after a fork, the new branch may be shorter).
func (r *Reader) refreshHead(ctx context.Context) error {
	head, err := r.source.GetHeadBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamFault, err)
	}
	r.headBlockNumber = head
	r.prefetchBuffer = nil
	return nil
}

// fillPrefetchBuffer fetches every block in (current, head] concurrently,
// bounded by cfg.PrefetchFanout, and reassembles them in strict block-number
// order before returning.
func (r *Reader) fillPrefetchBuffer(ctx context.Context) error {
	from := r.currentBlockNumber + 1
	to := int64(r.headBlockNumber)
	if from > to {
		return nil
	}

	count := int(to - from + 1)
	results := make([]*Block, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.PrefetchFanout)

	for i := 0; i < count; i++ {
		i := i
		number := BlockNumber(from + int64(i))
		g.Go(func() error {
			blk, err := r.source.GetBlock(gctx, number)
			if err != nil {
				return fmt.Errorf("%w: block %d: %w", ErrUpstreamFault, number, err)
			}
			if blk.Info.BlockNumber != number {
				return fmt.Errorf("%w: requested block %d, got %d", ErrUpstreamInconsistent, number, blk.Info.BlockNumber)
			}
			results[i] = blk
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	r.prefetchBuffer = results
	return nil
}

// resolveFork walks block_history from newest to oldest, refetching the
// current block's number at each step, until the refetched block links to
// the next history entry down, or history is exhausted. See spec §4.1.
//
// rejected is the block the advance loop popped off the prefetch buffer that
// triggered fork detection; it is discarded here since resolveFork derives
// the new chain tip purely from refetches, and the caller refreshes head
// afterward to re-fetch whatever now follows.
func (r *Reader) resolveFork(ctx context.Context, rejected *Block) error {
	_ = rejected
	if r.currentBlockData == nil {
		return ErrReaderInvariant
	}

	log.Warn("Fork detected, resolving by walk-back", "block", r.currentBlockData.Info.BlockNumber)

	for len(r.blockHistory) > 0 {
		prev := r.blockHistory[len(r.blockHistory)-1]

		refetched, err := r.source.GetBlock(ctx, r.currentBlockData.Info.BlockNumber)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUpstreamFault, err)
		}
		r.currentBlockData = refetched

		if refetched.Info.PreviousBlockHash == prev.Info.BlockHash {
			r.currentBlockNumber = int64(prev.Info.BlockNumber) + 1
			return nil
		}

		prevCopy := prev
		r.currentBlockData = &prevCopy
		r.blockHistory = r.blockHistory[:len(r.blockHistory)-1]
	}

	return r.historyExhausted(ctx)
}

// historyExhausted is called when resolveFork's walk-back empties
// block_history without finding a linked ancestor. The default behavior is a
// fatal error; a ChainSource implementing HistoryExhaustedHook may override
// it (safe only when OnlyIrreversible is true).
func (r *Reader) historyExhausted(ctx context.Context) error {
	if hook, ok := r.source.(HistoryExhaustedHook); ok {
		return hook.HistoryExhausted(ctx)
	}
	return ErrHistoryExhausted
}

// SeekTo repositions the reader so that the subsequent NextBlock call yields
// block target. See DESIGN.md for the resolution of the ambiguity spec §9
// flags around this method.
func (r *Reader) SeekTo(ctx context.Context, target BlockNumber) error {
	if int64(target) < r.startAtBlock {
		return ErrSeekBeforeStart
	}

	r.currentBlockData = nil
	r.headBlockNumber = 0
	r.prefetchBuffer = nil

	if target == 1 {
		r.blockHistory = r.blockHistory[:0]
		r.currentBlockNumber = 0
		return nil
	}

	preceding := target - 1
	for i := len(r.blockHistory) - 1; i >= 0; i-- {
		if r.blockHistory[i].Info.BlockNumber == preceding {
			found := r.blockHistory[i]
			r.blockHistory = append([]Block(nil), r.blockHistory[:i]...)
			r.currentBlockData = &found
			r.currentBlockNumber = int64(preceding)
			return nil
		}
	}

	blk, err := r.source.GetBlock(ctx, preceding)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamFault, err)
	}
	r.currentBlockData = blk
	r.currentBlockNumber = int64(preceding)
	return nil
}

// History returns a defensive copy of the reader's current rolling history,
// oldest first. Intended for diagnostics (see mive/indexer/diag).
func (r *Reader) History() []Block {
	out := make([]Block, len(r.blockHistory))
	copy(out, r.blockHistory)
	return out
}
