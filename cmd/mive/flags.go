package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-mive/mive/internal/flags"
	"github.com/ethereum-mive/mive/mive/miveconfig"
	"github.com/ethereum/go-ethereum/node"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Directory for the indexer's databases",
		Category: flags.MiscCategory,
	}

	ethRpcUrlFlag = &cli.StringFlag{
		Name:     "eth.rpc",
		Usage:    "RPC endpoint of the chain to index (http(s)://, ws(s)://, or an IPC path)",
		Value:    "http://127.0.0.1:8545",
		Category: flags.ChainCategory,
	}
	ethRpcAuthSecretFlag = &cli.StringFlag{
		Name:     "eth.rpc.jwtsecret",
		Usage:    "Path to a 32-byte hex JWT secret, for Engine-API-style authenticated RPC",
		Category: flags.ChainCategory,
	}
	onlyIrreversibleFlag = &cli.BoolFlag{
		Name:     "eth.only-irreversible",
		Usage:    "Only index finalized (irreversible) blocks; disables fork handling",
		Category: flags.ChainCategory,
	}

	startAtBlockFlag = &cli.Int64Flag{
		Name:     "start-at-block",
		Usage:    "First block number to index; negative values count back from head (e.g. -1 starts one block behind head)",
		Value:    1,
		Category: flags.IndexerCategory,
	}
	maxHistoryLengthFlag = &cli.IntFlag{
		Name:     "max-history-length",
		Usage:    "Number of recent blocks kept in memory for fork resolution",
		Value:    2000,
		Category: flags.IndexerCategory,
	}
	chainPollIntervalFlag = &cli.DurationFlag{
		Name:     "poll-interval",
		Usage:    "How often to poll the chain source once caught up to head",
		Value:    2 * time.Second,
		Category: flags.IndexerCategory,
	}
	actionFilterFlag = &cli.StringFlag{
		Name:     "action-filter",
		Usage:    "go-bexpr boolean expression restricting which actions the built-in logging updater reports",
		Category: flags.IndexerCategory,
	}

	metricsAddrFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Listen address for the indexer status HTTP endpoint (empty disables it)",
		Category: flags.MetricsCategory,
	}
	metricsCorsOriginsFlag = &cli.StringSliceFlag{
		Name:     "metrics.corsdomain",
		Usage:    "Comma separated list of domains from which to accept cross-origin requests to the status endpoint",
		Category: flags.MetricsCategory,
	}

	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write log records to a rotating file instead of stderr",
		Category: flags.LoggingCategory,
	}
)

// indexerFlags are the flags accepted by the `index` subcommand.
var indexerFlags = append([]cli.Flag{
	dataDirFlag,
	configFileFlag,
	ethRpcUrlFlag,
	ethRpcAuthSecretFlag,
	onlyIrreversibleFlag,
	startAtBlockFlag,
	maxHistoryLengthFlag,
	chainPollIntervalFlag,
	actionFilterFlag,
	metricsAddrFlag,
	metricsCorsOriginsFlag,
}, loggingFlags...)

var loggingFlags = []cli.Flag{
	verbosityFlag,
	logFileFlag,
}

// setNodeFlags applies command line flags to a go-ethereum node.Config.
func setNodeFlags(ctx *cli.Context, cfg *node.Config) {
	if dir := ctx.String(dataDirFlag.Name); dir != "" {
		cfg.DataDir = dir
	}
}

// setMiveFlags applies command line flags to the indexer's own configuration.
func setMiveFlags(ctx *cli.Context, cfg *miveconfig.Config) {
	if ctx.IsSet(ethRpcUrlFlag.Name) {
		cfg.EthRpcUrl = ctx.String(ethRpcUrlFlag.Name)
	}
	if v := ctx.String(ethRpcAuthSecretFlag.Name); v != "" {
		cfg.EthRpcAuthSecret = v
	}
	if ctx.IsSet(onlyIrreversibleFlag.Name) {
		cfg.OnlyIrreversible = ctx.Bool(onlyIrreversibleFlag.Name)
	}
	if ctx.IsSet(startAtBlockFlag.Name) {
		cfg.StartAtBlock = ctx.Int64(startAtBlockFlag.Name)
	}
	if ctx.IsSet(maxHistoryLengthFlag.Name) {
		cfg.MaxHistoryLength = ctx.Int(maxHistoryLengthFlag.Name)
	}
	if ctx.IsSet(chainPollIntervalFlag.Name) {
		cfg.ChainPollInterval = ctx.Duration(chainPollIntervalFlag.Name)
	}
	if v := ctx.String(actionFilterFlag.Name); v != "" {
		cfg.ActionFilter = v
	}
	if v := ctx.String(metricsAddrFlag.Name); v != "" {
		cfg.MetricsAddr = v
	}
	if origins := ctx.StringSlice(metricsCorsOriginsFlag.Name); len(origins) > 0 {
		cfg.MetricsCorsOrigins = origins
	}
}
