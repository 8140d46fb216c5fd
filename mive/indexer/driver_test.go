package indexer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-mive/mive/chainsrc"
	"github.com/ethereum-mive/mive/mive/indexer"
)

// stoppingSource wraps chainsrc.Fake and fails GetHeadBlockNumber once it has
// been called more than stopAfter times, so a Driver.Run loop (which never
// returns on its own once the reader is caught up to head) terminates
// deterministically instead of spinning forever in a test.
type stoppingSource struct {
	*chainsrc.Fake
	headCalls int
	stopAfter int
	stopErr   error
}

func (s *stoppingSource) GetHeadBlockNumber(ctx context.Context) (indexer.BlockNumber, error) {
	s.headCalls++
	if s.headCalls > s.stopAfter {
		return 0, s.stopErr
	}
	return s.Fake.GetHeadBlockNumber(ctx)
}

var errStopTest = errors.New("driver_test: stop")

// TestDriverLinearRunProcessesEachBlockOnce is property 1 end-to-end: a
// linear N-block chain drives N updater applications and a final IndexState
// at the tip, with no double-counting once the reader catches up to head and
// starts returning the same block repeatedly.
func TestDriverLinearRunProcessesEachBlockOnce(t *testing.T) {
	ctx := context.Background()
	fake := chainsrc.NewFake()
	fake.SetBlock(block(1, "a", "", indexer.Action{Type: "inc"}))
	fake.SetBlock(block(2, "b", "a", indexer.Action{Type: "inc"}))
	fake.SetBlock(block(3, "c", "b", indexer.Action{Type: "inc"}))
	fake.SetHead(3)
	src := &stoppingSource{Fake: fake, stopAfter: 2, stopErr: errStopTest}

	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})
	binder := newFakeBinder()
	v1 := &indexer.HandlerVersion{VersionName: "v1", Updaters: []indexer.Updater{incUpdater()}}
	h, err := indexer.NewHandler(binder, []*indexer.HandlerVersion{v1})
	require.NoError(t, err)

	d := indexer.NewDriver(r, h)
	err = d.Run(ctx)
	require.ErrorIs(t, err, errStopTest)

	require.Equal(t, 3, binder.state.counter)
	require.Equal(t, indexer.BlockNumber(3), binder.idx.BlockNumber)
	require.Equal(t, hash("c"), binder.idx.BlockHash)
}

// TestDriverForkTriggersRollback is property 2: a fork causes exactly one
// RollbackTo call to the common ancestor, after which the new branch is
// applied from there, one block per cycle.
func TestDriverForkTriggersRollback(t *testing.T) {
	ctx := context.Background()
	fake := chainsrc.NewFake()
	fake.SetBlock(block(1, "a", "", indexer.Action{Type: "inc"}))
	fake.SetBlock(block(2, "b", "a", indexer.Action{Type: "inc"}))
	fake.SetBlock(block(3, "c", "b", indexer.Action{Type: "inc"}))
	fake.SetHead(3)

	src := &stoppingSource{Fake: fake, stopAfter: 1, stopErr: errStopTest}
	r := indexer.NewReader(src, indexer.ReaderConfig{StartAtBlock: 1, MaxHistoryLength: 10})
	binder := newFakeBinder()
	v1 := &indexer.HandlerVersion{VersionName: "v1", Updaters: []indexer.Updater{incUpdater()}}
	h, err := indexer.NewHandler(binder, []*indexer.HandlerVersion{v1})
	require.NoError(t, err)

	d := indexer.NewDriver(r, h)

	err = d.Run(ctx)
	require.ErrorIs(t, err, errStopTest)
	require.Equal(t, 3, binder.state.counter)

	// Reorg: blocks 2 and 3 are replaced, block 4 extends the new branch.
	fake.SetBlock(block(2, "b2", "a", indexer.Action{Type: "inc"}))
	fake.SetBlock(block(3, "c2", "b2", indexer.Action{Type: "inc"}))
	fake.SetBlock(block(4, "d2", "c2", indexer.Action{Type: "inc"}))
	fake.SetHead(4)

	// Same Reader instance (r), so its in-memory cursor/history carries over
	// and resuming Run continues from block 3 into the reorg. Reset the
	// wrapper's call budget for this second run.
	src.headCalls = 0
	src.stopAfter = 2
	err = d.Run(ctx)
	require.ErrorIs(t, err, errStopTest)

	require.Len(t, binder.rollbacks, 1)
	require.Equal(t, indexer.BlockNumber(1), binder.rollbacks[0])
	require.Equal(t, indexer.BlockNumber(4), binder.idx.BlockNumber)
	require.Equal(t, hash("d2"), binder.idx.BlockHash)
}
