package channeldb

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// HtlcInfo is the durable record §3 requires exist, before a commit_sig
// signing a non-dust HTLC leaves the process, for every HTLC output on any
// remote commitment this node has ever signed:
//
//	(channel_id, commit_number, payment_hash, cltv_expiry)
type HtlcInfo struct {
	ChannelID    lnwire.ChannelID
	CommitHeight uint64
	PaymentHash  lnwire.PaymentHash
	CltvExpiry   uint32
}

// HtlcInfoStore is the collaborator that durably persists HtlcInfo records.
// The actual database is out of scope (§1); the core only emits
// actions.StoreHtlcInfos and relies on the ordering guarantee in §5 (it
// always precedes the SendMessage(commit_sig) that embodies the signatures
// on those outputs).
type HtlcInfoStore interface {
	StoreHtlcInfos(infos []HtlcInfo) error

	// HtlcInfosForCommit returns every record for a commit height, used
	// by the storage collaborator itself to garbage-collect once a
	// commitment becomes irrevocably obsolete — never called by the core.
	HtlcInfosForCommit(chanID lnwire.ChannelID, commitHeight uint64) ([]HtlcInfo, error)
}

// StateStore is the collaborator that durably and atomically persists a
// channel's full state (§6 "Persisted state layout"). StoreState MUST
// persist atomically before acknowledging; Restore re-installs watches and,
// in Closing, republishes every publishable tx (§6).
type StateStore interface {
	// StoreState persists data, replacing whatever was stored for the
	// same channel id before. Must be atomic: a crash partway through
	// must leave either the old or the new value, never a mix.
	StoreState(chanID lnwire.ChannelID, data PersistedState) error

	// Restore loads the last persisted state for chanID, or
	// ErrChannelNoExist if none exists.
	Restore(chanID lnwire.ChannelID) (PersistedState, error)
}

// PersistedState is the serializable snapshot StoreState/Restore exchange.
// It intentionally carries only data (§9 "persisted form contains only
// data") — no logger, no channels, no goroutine handles.
type PersistedState struct {
	// Opaque holds the encoded ChannelStateWithCommitments; this package
	// does not itself pick a wire format for the persisted blob (that is
	// the storage collaborator's concern, see package channeld for the
	// in-memory shape being encoded).
	Opaque []byte
}

// FundingOutpointKey derives the lookup key a StateStore implementation
// would typically index by once the permanent channel id is known.
func FundingOutpointKey(op wire.OutPoint) lnwire.ChannelID {
	return lnwire.NewChanIDFromOutPoint(op.Hash, uint16(op.Index))
}
