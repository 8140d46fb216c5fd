package chainsrc

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/ethereum-mive/mive/mive/indexer"
)

// actionTypeTransaction is the Action.Type assigned to every on-chain
// transaction. Richer action typing (e.g. by 4-byte selector or log topic)
// belongs in a HandlerVersion's own updaters, not in the chain source.
const actionTypeTransaction = "tx"

// EthClient adapts an *ethclient.Client into an indexer.ChainSource and
// indexer.HistoryExhaustedHook, translating go-ethereum's types.Header and
// types.Block into the indexer's nominal Block/BlockInfo shapes.
type EthClient struct {
	client *ethclient.Client

	// onlyIrreversible, when set, makes GetHeadBlockNumber report the latest
	// finalized block instead of the chain tip, and makes HistoryExhausted a
	// no-op success (finalized blocks cannot fork, see spec's own guidance).
	onlyIrreversible bool
}

// Dial connects to rawURL (http(s)://, ws(s)://, or a local IPC path).
func Dial(rawURL string, onlyIrreversible bool) (*EthClient, error) {
	client, err := ethclient.Dial(rawURL)
	if err != nil {
		return nil, fmt.Errorf("chainsrc: dial %s: %w", rawURL, err)
	}
	return &EthClient{client: client, onlyIrreversible: onlyIrreversible}, nil
}

// DialAuthenticated connects over the Engine API's authenticated transport,
// used when EthRpcAuthSecret is configured (see mive/miveconfig.Config).
func DialAuthenticated(ctx context.Context, rawURL string, jwtSecret [32]byte, onlyIrreversible bool) (*EthClient, error) {
	client, err := rpc.DialOptions(ctx, rawURL, rpc.WithHTTPAuth(jwtAuth(jwtSecret)))
	if err != nil {
		return nil, fmt.Errorf("chainsrc: authenticated dial %s: %w", rawURL, err)
	}
	return &EthClient{client: ethclient.NewClient(client), onlyIrreversible: onlyIrreversible}, nil
}

// jwtAuth signs a fresh HS256 "iat"-claim token on every request, matching
// the Engine API's JWT transport: the secret is shared out-of-band, tokens
// are single-use and short-lived rather than bearer credentials.
func jwtAuth(secret [32]byte) rpc.HTTPAuth {
	return func(header http.Header) error {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iat": jwt.NewNumericDate(time.Now()),
		})
		signed, err := token.SignedString(secret[:])
		if err != nil {
			return fmt.Errorf("chainsrc: sign jwt: %w", err)
		}
		header.Set("Authorization", "Bearer "+signed)
		return nil
	}
}

// LoadJWTSecret reads a 32-byte hex-encoded JWT secret from path, as produced
// by `openssl rand -hex 32` or go-ethereum's own --authrpc.jwtsecret flag.
func LoadJWTSecret(path string) ([32]byte, error) {
	var secret [32]byte

	data, err := os.ReadFile(path)
	if err != nil {
		return secret, fmt.Errorf("chainsrc: reading jwt secret %s: %w", path, err)
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(string(data), "0x")))
	if err != nil {
		return secret, fmt.Errorf("chainsrc: jwt secret %s is not valid hex: %w", path, err)
	}
	if len(decoded) != 32 {
		return secret, fmt.Errorf("chainsrc: jwt secret %s must decode to 32 bytes, got %d", path, len(decoded))
	}

	copy(secret[:], decoded)
	return secret, nil
}

func (c *EthClient) Close() {
	c.client.Close()
}

func (c *EthClient) GetHeadBlockNumber(ctx context.Context) (indexer.BlockNumber, error) {
	if c.onlyIrreversible {
		header, err := c.client.HeaderByNumber(ctx, big.NewInt(rpc.FinalizedBlockNumber.Int64()))
		if err != nil {
			return 0, err
		}
		return indexer.BlockNumber(header.Number.Uint64()), nil
	}

	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return indexer.BlockNumber(n), nil
}

func (c *EthClient) GetBlock(ctx context.Context, number indexer.BlockNumber) (*indexer.Block, error) {
	blk, err := c.client.BlockByNumber(ctx, new(big.Int).SetUint64(uint64(number)))
	if err != nil {
		return nil, err
	}
	if blk.NumberU64() != uint64(number) {
		return nil, fmt.Errorf("%w: requested block %d, got %d", indexer.ErrUpstreamInconsistent, number, blk.NumberU64())
	}
	return toIndexerBlock(blk), nil
}

// HistoryExhausted implements indexer.HistoryExhaustedHook. When restricted
// to irreversible blocks there is nothing to roll back to, so walk-back
// exhaustion is not an error condition; otherwise it falls through to the
// reader's fatal default.
func (c *EthClient) HistoryExhausted(ctx context.Context) error {
	if c.onlyIrreversible {
		return nil
	}
	return indexer.ErrHistoryExhausted
}

func toIndexerBlock(blk *types.Block) *indexer.Block {
	txs := blk.Transactions()
	actions := make([]indexer.Action, len(txs))
	for i, tx := range txs {
		actions[i] = indexer.Action{Type: actionTypeTransaction, Payload: tx}
	}

	return &indexer.Block{
		Info: indexer.BlockInfo{
			BlockNumber:       indexer.BlockNumber(blk.NumberU64()),
			BlockHash:         indexer.BlockHash(blk.Hash()),
			PreviousBlockHash: indexer.BlockHash(blk.ParentHash()),
		},
		Actions: actions,
	}
}
