// Package indexer implements the chain-consistency protocol shared by every
// Mive indexing pipeline: a fork-aware reading cursor (Reader) and a
// versioned state-mutation processor (Handler). Neither component knows how
// blocks are fetched or how application state is stored; both are driven
// through the ChainSource and PersistenceBinder seams defined in driver.go.
package indexer

import "github.com/ethereum/go-ethereum/common"

// BlockNumber is a 1-based block height. Block number 0 is the sentinel
// meaning "no block has been processed yet".
type BlockNumber uint64

// BlockHash is a chain-specific block hash. Distinct from common.Hash so that
// callers cannot accidentally pass a state root or tx hash where a block hash
// is expected.
type BlockHash common.Hash

// IsZero reports whether h is the zero hash.
func (h BlockHash) IsZero() bool {
	return h == BlockHash{}
}

// BlockInfo carries the hash-chain linkage fields of a Block without its
// action payload, mirroring what ChainSource and PersistenceBinder need to
// reason about ordering without decoding the full action list.
type BlockInfo struct {
	BlockNumber       BlockNumber
	BlockHash         BlockHash
	PreviousBlockHash BlockHash
}

// Action is a single, opaquely-payloaded event carried by a Block. Type is
// matched against Updater.ActionType and Effect.ActionType; Payload is never
// interpreted by the indexer core.
type Action struct {
	Type    string
	Payload any
}

// Block is an immutable, hash-linked unit of chain data.
type Block struct {
	Info    BlockInfo
	Actions []Action
}

// IndexState is the durable cursor identifying the last fully-applied block
// and the handler version active at that point.
type IndexState struct {
	BlockNumber        BlockNumber
	BlockHash          BlockHash
	HandlerVersionName string
}
