// Package chainntfs defines the ChainWatcher contract: the external
// collaborator that turns chainwatch requests into chainwatch events (§6).
// Concrete backends (btcd websockets, neutrino, an Electrum server, a ZMQ
// feed) are explicitly out of scope (§1) — this is the seam, not an
// implementation.
package chainntfs

import "github.com/lightningnetwork/lnchannel/chainwatch"

// ChainWatcher is the trusted source of on-chain observations the core's
// actions.SendWatch requests are handed to. It is not called by the core
// directly — the core only ever emits a SendWatch action; some external
// dispatcher routes that action to a ChainWatcher implementation and later
// feeds the resulting event back in as a WatchReceived event (§4.5, §6).
type ChainWatcher interface {
	// WatchConfirmed registers req and eventually yields an
	// EventConfirmed once satisfied.
	WatchConfirmed(req chainwatch.Confirmed) error

	// WatchSpent registers req and eventually yields an EventSpent once
	// the target outpoint is spent.
	WatchSpent(req chainwatch.Spent) error

	// WatchLost registers req and eventually yields notification that
	// the watched transaction will never confirm.
	WatchLost(req chainwatch.Lost) error

	// CurrentHeight returns the watcher's current view of the chain tip.
	// Nothing in this module calls it.
	CurrentHeight() (uint32, error)
}
