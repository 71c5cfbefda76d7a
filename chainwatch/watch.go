// Package chainwatch defines the chain-observation requests the core emits
// and the chain events it consumes (§6 "Chain watches"). The watcher,
// broadcaster, and fee estimator themselves are external collaborators out
// of scope (§1) — this package only fixes the shapes that cross that
// boundary, modeled on chainntfs.ChainNotifier's RegisterConfirmationsNtfn/
// RegisterSpendNtfn but recast as one-shot request values instead of a
// callback-channel API, since the core never blocks on a channel (§5).
package chainwatch

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Tag identifies why a watch was registered, so the event that eventually
// fires can be routed back to the right FSM transition (§6).
type Tag uint8

const (
	TagFundingDepthOK Tag = iota
	TagFundingDeeplyBuried
	TagFundingSpent
	TagFundingLost
	TagTxConfirmed
	TagOutputSpent
)

// Confirmed requests notification once txOrTxid reaches minDepth
// confirmations (§6 "WatchConfirmed(channelId, txOrTxid, minDepth, tag)").
type Confirmed struct {
	ChannelID lnwireChannelID
	TxID      chainhash.Hash
	Tx        *wire.MsgTx // nil if only the txid is known
	MinDepth  uint32
	Tag       Tag
}

// Spent requests notification once the given outpoint is spent (§6
// "WatchSpent(channelId, txid, outputIndex, scriptPubKey, tag)").
type Spent struct {
	ChannelID    lnwireChannelID
	TxID         chainhash.Hash
	OutputIndex  uint32
	ScriptPubKey []byte
	Tag          Tag
}

// Lost requests notification if txid becomes permanently unconfirmable
// (e.g. a competing spend of one of its inputs confirms instead).
type Lost struct {
	ChannelID lnwireChannelID
	TxID      chainhash.Hash
	Tag       Tag
}

// EventConfirmed is delivered once a watched transaction reaches its
// requested depth (§6 "WatchEventConfirmed(tx, blockHeight, txIndex, tag)").
type EventConfirmed struct {
	Tx          *wire.MsgTx
	BlockHeight uint32
	TxIndex     uint32
	Tag         Tag
}

// EventSpent is delivered once a watched outpoint is spent (§6
// "WatchEventSpent(tx, tag)").
type EventSpent struct {
	SpendingTx *wire.MsgTx
	Tag        Tag
}

// lnwireChannelID avoids an import cycle between chainwatch and lnwire
// while keeping the field self-documenting; channeld re-exports the real
// lnwire.ChannelID type at its call sites.
type lnwireChannelID = [32]byte
