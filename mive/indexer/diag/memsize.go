// Package diag reports the in-memory footprint of a Reader's bounded rolling
// history, for operators watching the cost of a given max_history_length
// instead of guessing at it.
package diag

import (
	"fmt"

	"github.com/fjl/memsize"

	"github.com/ethereum-mive/mive/mive/indexer"
)

// HistoryReport is a snapshot of the size of a Reader's rolling block
// history (the prefetch buffer is not included).
type HistoryReport struct {
	HistoryLen int
	Sizes      memsize.Sizes
}

// String renders the report the way memsize.Sizes.Report already does,
// annotated with the block count.
func (r HistoryReport) String() string {
	return fmt.Sprintf("History blocks: %d\n%s", r.HistoryLen, r.Sizes.Report())
}

// ScanHistory measures the retained size of a reader's block history slice,
// as returned by (*indexer.Reader).History.
func ScanHistory(history []indexer.Block) HistoryReport {
	return HistoryReport{
		HistoryLen: len(history),
		Sizes:      memsize.Scan(&history),
	}
}
