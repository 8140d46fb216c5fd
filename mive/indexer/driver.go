package indexer

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// ChainSource is the seam Reader is abstract over: how a block stream is
// actually fetched. Implementations live outside the core, e.g. chainsrc.
type ChainSource interface {
	// GetHeadBlockNumber returns the current head, honoring OnlyIrreversible
	// if the reader was configured with it.
	GetHeadBlockNumber(ctx context.Context) (BlockNumber, error)

	// GetBlock fetches the block at the given number. Implementations must
	// return ErrUpstreamInconsistent-wrapped errors if they cannot honor the
	// requested number exactly.
	GetBlock(ctx context.Context, number BlockNumber) (*Block, error)
}

// HistoryExhaustedHook lets a ChainSource override the reader's default fatal
// behavior when a fork walk-back runs out of cached history. Safe to leave
// unimplemented only when the reader is configured with OnlyIrreversible,
// since irreversible blocks cannot fork.
type HistoryExhaustedHook interface {
	HistoryExhausted(ctx context.Context) error
}

// PersistenceBinder is the seam Handler is abstract over: how application
// state and the durable IndexState cursor are stored. Implementations live
// outside the core, e.g. indexdb.
type PersistenceBinder interface {
	// LoadIndexState returns the durably persisted cursor.
	LoadIndexState(ctx context.Context) (IndexState, error)

	// UpdateIndexState persists the cursor reflecting that block has been
	// (fully or partially, mid-block version switch) applied under
	// handlerVersionName. isReplay is passed through for binders that skip
	// non-essential bookkeeping during replay.
	UpdateIndexState(ctx context.Context, state any, block *Block, isReplay bool, handlerVersionName string, pctx any) error

	// RollbackTo reverses all applied effects down to and including
	// blockNumber, such that after it returns the store reflects the state
	// immediately after blockNumber was applied.
	RollbackTo(ctx context.Context, blockNumber BlockNumber) error

	// HandleWithState scopes a transactional state acquisition. f is invoked
	// exactly once with (state, context); on f's success the binder commits,
	// on error it aborts. f must complete before HandleWithState returns, and
	// the handler must not retain state/context after that.
	HandleWithState(ctx context.Context, f func(state any, pctx any) error) error
}

// Driver repeatedly advances a Reader and feeds the result to a Handler,
// honoring seek requests. It is a reference implementation of the
// pseudocontract in spec §6; it is not part of the core protocol and callers
// may drive Reader/Handler with their own loop instead.
type Driver struct {
	Reader  *Reader
	Handler *Handler

	// Replay, when true, is passed through to Handler.HandleBlock as
	// is_replay on every cycle (effects are skipped, see spec §4.2).
	Replay bool

	// PollInterval is how long Run waits before calling NextBlock again once
	// the reader reports no new block (i.e. the cursor has caught up to
	// head). Zero means retry immediately, which is only appropriate for
	// tests or chain sources that themselves block until a new block exists.
	PollInterval time.Duration
}

// NewDriver wires a Reader and Handler into a single driving loop.
func NewDriver(r *Reader, h *Handler) *Driver {
	return &Driver{Reader: r, Handler: h}
}

// Run advances the driver loop until ctx is canceled or a non-retryable error
// occurs. Upstream faults propagate to the caller, which may construct a new
// Driver and resume (Reader/Handler retain their in-memory state across a
// failed Run only if the caller keeps the same instances).
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, isRollback, isNew, err := d.Reader.NextBlock(ctx)
		if err != nil {
			return err
		}

		needsSeek, seekTarget, err := d.Handler.HandleBlock(ctx, block, isRollback, d.Reader.IsFirstBlock(), d.Replay)
		if err != nil {
			return err
		}

		if needsSeek {
			log.Info("Driver seeking reader to handler-requested target", "target", seekTarget)
			if err := d.Reader.SeekTo(ctx, seekTarget); err != nil {
				return err
			}
			continue
		}

		if !isNew && d.PollInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.PollInterval):
			}
		}
	}
}
