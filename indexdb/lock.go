package indexdb

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DirLock guards a data directory against two indexer processes racing the
// same on-disk store, the same role go-ethereum's node package plays over
// its own instance directory.
type DirLock struct {
	flock *flock.Flock
}

// LockDir acquires an exclusive, non-blocking lock over a LOCK file inside
// dir. It returns an error immediately if another process already holds it.
func LockDir(dir string) (*DirLock, error) {
	l := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("indexdb: acquiring lock on %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("indexdb: data directory %s is already in use by another mive process", dir)
	}
	return &DirLock{flock: l}, nil
}

// Release unlocks the directory.
func (d *DirLock) Release() error {
	return d.flock.Unlock()
}
