package channeld

import "github.com/lightningnetwork/lnchannel/channeldb"

// encodeState produces the StoreState action payload for s. It reuses
// encodeSnapshot's compact encoding (§4.1 Post-processing) rather than a
// second, richer format: every durable fact a restart needs to resynchronize
// with the peer is already in those 48 bytes, and everything else
// (Commitments, Closing) is reconstructible from the wire exchange that
// follows a Restore plus the chain watches restoreActions re-installs.
func encodeState(s State) channeldb.PersistedState {
	return channeldb.PersistedState{Opaque: encodeSnapshot(s)}
}
