// Package diskbudget provides the global byte ceiling for capture files.
//
// # Overview
//
// Every captured session reserves its serialized size before the file is
// written. The budget is one atomically updated counter:
//
//   - TryReserve: compare-and-swap the consumed total if the request fits
//   - Release: give back a reservation whose write was aborted
//
// Consumption is never negative and never exceeds the limit at any
// observable point, regardless of how many goroutines reserve at once.
//
// # Usage
//
//	budget := diskbudget.New(diskbudget.Config{Limit: 1 << 30})
//
//	if !budget.TryReserve(int64(len(doc))) {
//	    // drop the capture, proxy traffic is unaffected
//	    return
//	}
//	if err := write(doc); err != nil {
//	    budget.Release(int64(len(doc)))
//	}
package diskbudget
