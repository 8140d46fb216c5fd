package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-mive/mive/indexdb"
	"github.com/ethereum-mive/mive/mive"
	"github.com/ethereum-mive/mive/mive/indexer"
	"github.com/ethereum-mive/mive/mive/indexer/filter"
)

var indexCommand = &cli.Command{
	Action:      runIndexer,
	Name:        "index",
	Usage:       "Run the mive indexer against a configured chain source",
	Flags:       indexerFlags,
	Description: `Dials the configured chain RPC endpoint and drives the Reader/Handler loop against the on-disk index database, until interrupted.`,
}

func runIndexer(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	stack, cfg := makeConfigNode(ctx)

	// Guard the data directory against a second indexer process racing this
	// one for the same on-disk store; released on process exit.
	if dir := cfg.Node.DataDir; dir != "" {
		dirLock, err := indexdb.LockDir(dir)
		if err != nil {
			return fmt.Errorf("mive: %w", err)
		}
		defer dirLock.Release()
	}

	versions, err := demoHandlerVersions(cfg.Mive.ActionFilter)
	if err != nil {
		return err
	}

	if _, err := mive.New(stack, &cfg.Mive, versions, nil); err != nil {
		return fmt.Errorf("mive: %w", err)
	}

	if err := stack.Start(); err != nil {
		return fmt.Errorf("mive: starting node: %w", err)
	}
	defer stack.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("Shutting down mive", "signal", sig)
	return nil
}

// demoHandlerVersions builds the minimal single-version handler registry this
// reference CLI ships with: one logging updater (no effects) that, when
// actionFilter is set, only logs actions matching it. A real deployment supplies its
// own application-specific HandlerVersions via mive.New instead of this CLI.
func demoHandlerVersions(actionFilter string) ([]*indexer.HandlerVersion, error) {
	var actionFilterFn func(indexer.Action) (bool, error)
	if actionFilter != "" {
		f, err := filter.New(actionFilter)
		if err != nil {
			return nil, fmt.Errorf("mive: invalid action filter: %w", err)
		}
		actionFilterFn = f.Match
	}

	return []*indexer.HandlerVersion{
		{
			VersionName: "v1",
			Updaters: []indexer.Updater{
				logOnlyUpdater{actionType: "tx", filter: actionFilterFn},
			},
		},
	}, nil
}

// logOnlyUpdater is the reference CLI's only built-in updater: it logs every
// action it sees (optionally restricted by an ActionFilter) and never
// mutates persisted state or switches handler versions. It exists so
// `mive index` is runnable out-of-the-box; real deployments register their
// own updaters instead.
type logOnlyUpdater struct {
	actionType string
	filter     func(indexer.Action) (bool, error)
}

func (u logOnlyUpdater) ActionType() string { return u.actionType }

func (u logOnlyUpdater) Apply(state any, payload any, block indexer.BlockInfo, pctx any) (newHandlerVersionName string, err error) {
	if u.filter != nil {
		matched, err := u.filter(indexer.Action{Type: u.actionType, Payload: payload})
		if err != nil {
			return "", err
		}
		if !matched {
			return "", nil
		}
	}
	log.Debug("Indexed action", "type", u.actionType, "block", block.BlockNumber)
	return "", nil
}
