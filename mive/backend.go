package mive

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"

	"github.com/ethereum-mive/mive/chainsrc"
	"github.com/ethereum-mive/mive/indexdb"
	"github.com/ethereum-mive/mive/internal/shutdowncheck"
	"github.com/ethereum-mive/mive/mive/indexer"
	"github.com/ethereum-mive/mive/mive/indexer/metricsrv"
	"github.com/ethereum-mive/mive/mive/miveconfig"
)

// Mive implements the Mive indexer service: it wires a go-ethereum-backed
// ChainSource (chainsrc.EthClient) and an ethdb-backed PersistenceBinder
// (indexdb.Store) to the indexer core's Reader/Handler/Driver, and runs the
// driver loop as a node.Lifecycle.
type Mive struct {
	config *miveconfig.Config

	ethClient *chainsrc.EthClient
	chainDb   ethdb.Database // Indexer cursor + application state database
	store     *indexdb.Store

	driver *indexer.Driver

	metricsSrv *metricsrv.Server

	shutdownTracker *shutdowncheck.ShutdownTracker // Tracks if and when the node has shutdown ungracefully

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Mive service, dialing the configured chain RPC endpoint
// and opening (or creating) the on-disk index database under stack's data
// directory. versions defines the handler-version registry the driver will
// apply; binder overrides the default indexdb.Store-backed PersistenceBinder
// when the caller has its own application state to transact alongside the
// index cursor (pass nil to use indexdb.Store directly).
func New(stack *node.Node, config *miveconfig.Config, versions []*indexer.HandlerVersion, binder indexer.PersistenceBinder) (*Mive, error) {
	ethClient, err := dialChainSource(config)
	if err != nil {
		return nil, err
	}

	chainDb, err := stack.OpenDatabase("miveindex", config.DatabaseCache, config.DatabaseHandles, "mive/db/index/", false)
	if err != nil {
		return nil, err
	}
	store := indexdb.Open(chainDb)

	var actualBinder indexer.PersistenceBinder = store
	if binder != nil {
		actualBinder = binder
	}

	reader := indexer.NewReader(ethClient, indexer.ReaderConfig{
		StartAtBlock:     config.StartAtBlock,
		OnlyIrreversible: config.OnlyIrreversible,
		MaxHistoryLength: config.MaxHistoryLength,
	})

	handler, err := indexer.NewHandler(actualBinder, versions)
	if err != nil {
		return nil, err
	}

	driver := indexer.NewDriver(reader, handler)
	driver.PollInterval = config.ChainPollInterval

	mive := &Mive{
		config:          config,
		ethClient:       ethClient,
		chainDb:         chainDb,
		store:           store,
		driver:          driver,
		shutdownTracker: shutdowncheck.NewShutdownTracker(chainDb),
	}

	if config.MetricsAddr != "" {
		mive.metricsSrv = metricsrv.New(config.MetricsCorsOrigins, mive.status, reader.History)
	}

	stack.RegisterLifecycle(mive)

	// Successful startup; push a marker and check previous unclean shutdowns.
	mive.shutdownTracker.MarkStartup()

	return mive, nil
}

func dialChainSource(config *miveconfig.Config) (*chainsrc.EthClient, error) {
	if config.EthRpcAuthSecret == "" {
		return chainsrc.Dial(config.EthRpcUrl, config.OnlyIrreversible)
	}

	secret, err := chainsrc.LoadJWTSecret(config.EthRpcAuthSecret)
	if err != nil {
		return nil, fmt.Errorf("mive: loading JWT secret: %w", err)
	}
	return chainsrc.DialAuthenticated(context.Background(), config.EthRpcUrl, secret, config.OnlyIrreversible)
}

// status reports the driver's current IndexState and the reader's last
// known head, for metricsrv's status endpoint.
func (s *Mive) status() metricsrv.Status {
	return metricsrv.Status{
		IndexState:      s.driver.Handler.IndexState(),
		HeadBlockNumber: s.driver.Reader.LastHeadBlockNumber(),
	}
}

// Start implements node.Lifecycle, starting all internal goroutines needed by
// the Mive indexer: the shutdown marker refresher and the driver loop.
func (s *Mive) Start() error {
	// Regularly update shutdown marker
	s.shutdownTracker.Start()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.driver.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Indexer driver loop exited", "err", err)
		}
	}()

	if s.metricsSrv != nil {
		go func() {
			log.Info("Serving indexer status endpoint", "addr", s.config.MetricsAddr)
			if err := http.ListenAndServe(s.config.MetricsAddr, s.metricsSrv); err != nil {
				log.Error("Metrics server exited", "err", err)
			}
		}()
	}

	return nil
}

// Stop implements node.Lifecycle, terminating all internal goroutines used by
// the Mive indexer.
func (s *Mive) Stop() error {
	s.shutdownTracker.Stop()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.ethClient.Close()
	return s.chainDb.Close()
}
