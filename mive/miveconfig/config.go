package miveconfig

import "time"

// Config contains configuration options for the Mive indexer service.
type Config struct {
	// EthRpcUrl is the chain source's RPC endpoint (http(s)://, ws(s)://, or
	// a local IPC path), dialed by chainsrc.Dial.
	EthRpcUrl string

	// EthRpcAuthSecret, when non-empty, is a path to a 32-byte hex JWT secret
	// used to dial EthRpcUrl over the Engine API's authenticated transport
	// (chainsrc.DialAuthenticated) instead of a plain dial.
	EthRpcAuthSecret string `toml:",omitempty"`

	// StartAtBlock, OnlyIrreversible, and MaxHistoryLength are passed through
	// to indexer.ReaderConfig verbatim.
	StartAtBlock     int64
	OnlyIrreversible bool
	MaxHistoryLength int

	// ChainPollInterval bounds how often indexer.Driver retries NextBlock
	// once it has caught up to head.
	ChainPollInterval time.Duration

	// ActionFilter, if non-empty, is a go-bexpr boolean expression (see
	// mive/indexer/filter) restricting which actions the `mive index`
	// command's built-in logging updater reports. Actions are still
	// dispatched to every matching updater and effect; mive.New does not read
	// this field.
	ActionFilter string `toml:",omitempty"`

	// MetricsAddr, if non-empty, serves the indexer's status endpoint (see
	// mive/indexer/metricsrv) at this listen address.
	MetricsAddr        string   `toml:",omitempty"`
	MetricsCorsOrigins []string `toml:",omitempty"`

	// Database options
	DatabaseHandles int `toml:"-"`
	DatabaseCache   int
}
