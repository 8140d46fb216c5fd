package indexer

import "errors"

// Error taxonomy. See spec §7 for the meaning and recovery semantics of each
// kind; callers should use errors.Is against these sentinels rather than
// string-matching.
var (
	// ErrUpstreamFault wraps a failure returned by ChainSource.GetBlock or
	// ChainSource.GetHeadBlockNumber. The reader's in-memory state is left
	// untouched; the caller may retry.
	ErrUpstreamFault = errors.New("indexer: upstream chain source fault")

	// ErrUpstreamInconsistent means a ChainSource call returned a block whose
	// number or hash violates what the reader asked for or already knows.
	ErrUpstreamInconsistent = errors.New("indexer: upstream returned inconsistent block")

	// ErrHistoryExhausted means the fork walk-back ran out of cached history
	// before finding a hash-linked ancestor.
	ErrHistoryExhausted = errors.New("indexer: fork walk-back exhausted block history")

	// ErrSeekBeforeStart means SeekTo was called with a target before
	// StartAtBlock.
	ErrSeekBeforeStart = errors.New("indexer: seek target precedes start-at-block")

	// ErrNoHandlerVersions means a handler was constructed with zero
	// registered HandlerVersions.
	ErrNoHandlerVersions = errors.New("indexer: no handler versions registered")

	// ErrDuplicateVersion means two HandlerVersions were registered under the
	// same version name.
	ErrDuplicateVersion = errors.New("indexer: duplicate handler version name")

	// ErrChainMismatch means a non-first block's PreviousBlockHash did not
	// match the in-memory cursor at the handler's sequence check; this
	// indicates the reader failed to roll back before resubmitting.
	ErrChainMismatch = errors.New("indexer: block does not chain from last processed block")

	// ErrReaderInvariant means the reader's current block went missing at a
	// post-condition checkpoint; this is an internal bug, not a transport
	// fault.
	ErrReaderInvariant = errors.New("indexer: reader invariant violated, current block is nil")
)
