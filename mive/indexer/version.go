package indexer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
)

// Updater is a deterministic state mutation bound to an action type. It must
// be replay-safe: any I/O it performs must be routed through state so replay
// without effects reproduces the same state.
//
// Apply may return a non-empty version name to request a mid-stream switch
// to a different HandlerVersion; an empty string means "stay on the current
// version".
type Updater interface {
	ActionType() string
	Apply(state any, payload any, info BlockInfo, ctx any) (newVersionName string, err error)
}

// Effect is a non-deterministic side effect bound to an action type. Effects
// are skipped entirely during replay.
type Effect interface {
	ActionType() string
	Run(payload any, block *Block, ctx any) error
}

// HandlerVersion is a named, ordered bundle of updaters and effects defining
// the active processing rules at a point in the chain.
type HandlerVersion struct {
	VersionName string
	Updaters    []Updater
	Effects     []Effect
}

// versionRegistry holds the version_name -> HandlerVersion mapping and
// remembers the name of the version that should be active at a cold start.
type versionRegistry struct {
	byName       map[string]*HandlerVersion
	startVersion string
}

const defaultVersionName = "v1"

// newVersionRegistry builds the registry from an ordered list of versions,
// applying the init rules from spec §4.2: empty list and duplicate names are
// fatal; a missing "v1" falls back to the first entry with a warning; a "v1"
// that exists but isn't first is kept as the start version, with a warning.
func newVersionRegistry(versions []*HandlerVersion) (*versionRegistry, error) {
	if len(versions) == 0 {
		return nil, ErrNoHandlerVersions
	}

	byName := make(map[string]*HandlerVersion, len(versions))
	for _, v := range versions {
		if _, exists := byName[v.VersionName]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVersion, v.VersionName)
		}
		byName[v.VersionName] = v
	}

	start := defaultVersionName
	if _, ok := byName[defaultVersionName]; !ok {
		start = versions[0].VersionName
		log.Warn("No handler version named v1 registered, adopting first version as start",
			"version", start)
	} else if versions[0].VersionName != defaultVersionName {
		log.Warn("Handler version v1 exists but is not first in the registered list, keeping v1 as start",
			"first", versions[0].VersionName)
	}

	return &versionRegistry{byName: byName, startVersion: start}, nil
}

func (r *versionRegistry) get(name string) (*HandlerVersion, bool) {
	v, ok := r.byName[name]
	return v, ok
}
