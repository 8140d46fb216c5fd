// Package shutdowncheck tracks whether the previous run of mive exited
// cleanly, generalized from go-ethereum's internal shutdown-marker tracker
// (core/rawdb's "LastShutdownNotClean" key) to the indexer's own database.
package shutdowncheck

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

// shutdownMarkerKey stores a single 8-byte big-endian Unix timestamp, written
// at startup and refreshed while running, and deleted on a clean Stop; a run
// that starts while the marker is still present reports an unclean prior
// shutdown.
var shutdownMarkerKey = []byte("mive-shutdown-marker")

// updateInterval is how often the marker is refreshed while running, so a
// crash mid-run still leaves a recent timestamp behind for the next startup
// to notice.
const updateInterval = 5 * time.Minute

// ShutdownTracker is a service that reports previous unclean shutdowns to the
// log on startup, and keeps a marker updated while the indexer is running so
// an unclean shutdown can be detected next time.
type ShutdownTracker struct {
	db ethdb.KeyValueStore

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewShutdownTracker creates a new ShutdownTracker, bound to db.
func NewShutdownTracker(db ethdb.KeyValueStore) *ShutdownTracker {
	return &ShutdownTracker{db: db, stopCh: make(chan struct{})}
}

// MarkStartup logs any unclean prior shutdown it finds, then records this
// startup's timestamp as the new marker.
func (t *ShutdownTracker) MarkStartup() {
	if prior, ok := t.readMarker(); ok {
		log.Warn("Previous mive run did not exit cleanly", "timestamp", time.Unix(prior, 0))
	}
	t.writeMarker(time.Now().Unix())
}

// Start launches a goroutine that periodically refreshes the marker so a
// crash leaves a recent timestamp, and clears the marker on a clean Stop.
func (t *ShutdownTracker) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(updateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.writeMarker(time.Now().Unix())
			case <-t.stopCh:
				return
			}
		}
	}()
}

// Stop clears the marker, signaling this run exited cleanly.
func (t *ShutdownTracker) Stop() {
	close(t.stopCh)
	t.wg.Wait()
	if err := t.db.Delete(shutdownMarkerKey); err != nil {
		log.Warn("Failed to clear shutdown marker", "err", err)
	}
}

func (t *ShutdownTracker) readMarker() (int64, bool) {
	data, err := t.db.Get(shutdownMarkerKey)
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(data)), true
}

func (t *ShutdownTracker) writeMarker(unix int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(unix))
	if err := t.db.Put(shutdownMarkerKey, buf[:]); err != nil {
		log.Warn("Failed to write shutdown marker", "err", err)
	}
}
