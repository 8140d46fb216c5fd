package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
)

// Handler is a block-at-a-time processor that applies versioned updaters and
// runs side-effects, supports mid-stream handler-version switching driven by
// updater return values, and coordinates rollback with the reader. See spec
// §4.2.
type Handler struct {
	binder PersistenceBinder

	registry *versionRegistry

	loaded                 bool
	lastProcessedBlockNum  BlockNumber
	lastProcessedBlockHash BlockHash
	handlerVersionName     string
}

// NewHandler constructs a Handler over binder with the given ordered list of
// handler versions. Returns ErrNoHandlerVersions or ErrDuplicateVersion per
// the registry init rules in spec §4.2.
func NewHandler(binder PersistenceBinder, versions []*HandlerVersion) (*Handler, error) {
	registry, err := newVersionRegistry(versions)
	if err != nil {
		return nil, err
	}
	return &Handler{
		binder:             binder,
		registry:           registry,
		handlerVersionName: registry.startVersion,
	}, nil
}

// HandlerVersionName returns the currently active handler version.
func (h *Handler) HandlerVersionName() string {
	return h.handlerVersionName
}

// IndexState reports the handler's in-memory view of the durable cursor, for
// diagnostics (e.g. mive/indexer/metricsrv). It reflects the last block this
// handler instance applied, not necessarily the binder's persisted value if
// IndexState was never (re)loaded.
func (h *Handler) IndexState() IndexState {
	return IndexState{
		BlockNumber:        h.lastProcessedBlockNum,
		BlockHash:          h.lastProcessedBlockHash,
		HandlerVersionName: h.handlerVersionName,
	}
}

// HandleBlock processes a single block, returning whether the caller (the
// driver) must seek the reader to a different block before the next cycle.
func (h *Handler) HandleBlock(ctx context.Context, block *Block, isRollback bool, isFirstBlock bool, isReplay bool) (needsSeek bool, seekTarget BlockNumber, err error) {
	// 1. Rollback / cold start.
	switch {
	case isRollback || (isReplay && isFirstBlock):
		rollbackTo := BlockNumber(0)
		if block.Info.BlockNumber > 0 {
			rollbackTo = block.Info.BlockNumber - 1
		}
		if err := h.binder.RollbackTo(ctx, rollbackTo); err != nil {
			return false, 0, err
		}
		if err := h.refreshIndexState(ctx); err != nil {
			return false, 0, err
		}
	case !h.loaded:
		if err := h.refreshIndexState(ctx); err != nil {
			return false, 0, err
		}
	}

	// 2. Idempotence.
	if block.Info.BlockNumber == h.lastProcessedBlockNum && block.Info.BlockHash == h.lastProcessedBlockHash {
		return false, 0, nil
	}

	// 3. Seek on first-block mismatch.
	if isFirstBlock && !h.lastProcessedBlockHash.IsZero() {
		return true, h.lastProcessedBlockNum + 1, nil
	}

	// 4. Sequence check.
	if !isFirstBlock {
		if block.Info.BlockNumber != h.lastProcessedBlockNum+1 {
			return true, h.lastProcessedBlockNum + 1, nil
		}
		if block.Info.PreviousBlockHash != h.lastProcessedBlockHash {
			return false, 0, fmt.Errorf("%w: block %d previous hash mismatch", ErrChainMismatch, block.Info.BlockNumber)
		}
	}

	// 5. Apply.
	err = h.binder.HandleWithState(ctx, func(state any, pctx any) error {
		return h.handleActions(ctx, state, block, pctx, isReplay)
	})
	if err != nil {
		return false, 0, err
	}
	return false, 0, nil
}

// refreshIndexState reloads IndexState from the binder into memory.
func (h *Handler) refreshIndexState(ctx context.Context) error {
	state, err := h.binder.LoadIndexState(ctx)
	if err != nil {
		return err
	}
	h.lastProcessedBlockNum = state.BlockNumber
	h.lastProcessedBlockHash = state.BlockHash
	if state.HandlerVersionName != "" {
		h.handlerVersionName = state.HandlerVersionName
	}
	h.loaded = true
	return nil
}

// handleActions runs apply_updaters, then (unless replaying) run_effects,
// then persists the new cursor. It must run inside a single
// HandleWithState-scoped transaction.
func (h *Handler) handleActions(ctx context.Context, state any, block *Block, pctx any, isReplay bool) error {
	versioned, err := h.applyUpdaters(ctx, state, block, pctx)
	if err != nil {
		return err
	}

	if !isReplay {
		if err := h.runEffects(versioned, block, pctx); err != nil {
			return err
		}
	}

	if err := h.binder.UpdateIndexState(ctx, state, block, isReplay, h.handlerVersionName, pctx); err != nil {
		return err
	}

	h.lastProcessedBlockNum = block.Info.BlockNumber
	h.lastProcessedBlockHash = block.Info.BlockHash
	return nil
}

// actionVersion pairs an action with the handler version that was active
// while its updaters ran (before any switch that action triggered), for
// consumption by run_effects.
type actionVersion struct {
	action      Action
	versionName string
}

// applyUpdaters walks, for each action in block order, the updaters of the
// currently active handler version, switching versions mid-block when an
// updater requests it. See spec §4.2.
func (h *Handler) applyUpdaters(ctx context.Context, state any, block *Block, pctx any) ([]actionVersion, error) {
	out := make([]actionVersion, 0, len(block.Actions))

	for _, action := range block.Actions {
		// activeVersionName is the version in force while this action's
		// updater runs. An updater may switch h.handlerVersionName before we
		// reach the bottom of this loop, but the action that triggered the
		// switch is still paired with the version that processed it, not the
		// one it switched to, so its effects run under the version that was
		// active for it.
		activeVersionName := h.handlerVersionName
		version, ok := h.registry.get(activeVersionName)
		if !ok {
			return nil, fmt.Errorf("indexer: active handler version %q not registered", activeVersionName)
		}

		for i, updater := range version.Updaters {
			if updater.ActionType() != action.Type {
				continue
			}

			newVersionName, err := updater.Apply(state, action.Payload, block.Info, pctx)
			if err != nil {
				return nil, err
			}

			if newVersionName == "" {
				continue
			}

			if _, known := h.registry.get(newVersionName); known {
				if remaining := version.Updaters[i+1:]; len(remaining) > 0 {
					log.Warn("Handler version switch mid-action, skipping remaining updaters for this action",
						"action", action.Type, "from", h.handlerVersionName, "to", newVersionName, "skipped", len(remaining))
				}
				log.Info("Switching handler version", "from", h.handlerVersionName, "to", newVersionName, "block", block.Info.BlockNumber)

				if err := h.binder.UpdateIndexState(ctx, state, block, false, newVersionName, pctx); err != nil {
					return nil, err
				}
				h.handlerVersionName = newVersionName
				break
			}

			log.Warn("Updater requested unknown handler version, ignoring", "version", newVersionName)
		}

		out = append(out, actionVersion{action: action, versionName: activeVersionName})
	}

	return out, nil
}

// runEffects runs, for each (action, version) pair in order, every effect of
// that version whose action type matches, in declaration order.
func (h *Handler) runEffects(versioned []actionVersion, block *Block, pctx any) error {
	for _, av := range versioned {
		version, ok := h.registry.get(av.versionName)
		if !ok {
			continue
		}
		for _, effect := range version.Effects {
			if effect.ActionType() != av.action.Type {
				continue
			}
			if err := effect.Run(av.action.Payload, block, pctx); err != nil {
				log.Error("Effect run failed", "action", av.action.Type, "version", av.versionName, "err", err)
			}
		}
	}
	return nil
}
