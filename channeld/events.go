// Package channeld implements the per-channel finite state machine (§4.1):
// the states, the events that drive transitions between them, the actions
// a transition requests of external collaborators, and the pure dispatch
// function tying them together. Modeled on the teacher's lnwire.Message
// interface/type-switch pattern (a closed sum type expressed as an
// interface with an unexported marker method, dispatched with a type
// switch) rather than on any single teacher file, since no teacher package
// implements a state machine of this shape.
package channeld

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Event is the closed sum of inputs the FSM accepts (§4.5).
type Event interface {
	isEvent()
}

// InitFunder starts a channel as funder (§4.1 "WaitForInit —InitFunder→").
type InitFunder struct {
	TempChannelID  lnwire.ChannelID
	FundingSatoshis int64
	PushMsat        lnwire.MilliSatoshi
	FeePerKw        int64
	StaticParams    channeldb.StaticParams
	NodeParams      channeldb.NodeParams
	LocalParams     channeldb.LocalParams
	ChannelVersion  channeldb.ChannelVersion
	ChannelFlags    uint8
}

func (InitFunder) isEvent() {}

// InitFundee starts a channel as fundee, awaiting the peer's open_channel.
type InitFundee struct {
	TempChannelID  lnwire.ChannelID
	StaticParams   channeldb.StaticParams
	NodeParams     channeldb.NodeParams
	LocalParams    channeldb.LocalParams
}

func (InitFundee) isEvent() {}

// Restore reinstates a persisted state after a crash (§6 "Recovery invokes
// Restore(state) at startup").
type Restore struct {
	State State
}

func (Restore) isEvent() {}

// MessageReceived delivers a decoded wire message from the peer.
type MessageReceived struct {
	Message lnwire.Message
}

func (MessageReceived) isEvent() {}

// WatchReceived delivers a chain-watch result the core previously
// requested via a SendWatch action (§6).
type WatchReceived struct {
	Confirmed *chainwatch.EventConfirmed
	Spent     *chainwatch.EventSpent
}

func (WatchReceived) isEvent() {}

// ExecuteCommand runs a locally-initiated command (§4.5).
type ExecuteCommand struct {
	Command Command
}

func (ExecuteCommand) isEvent() {}

// MakeFundingTxResponse delivers the funding transaction the external
// wallet collaborator constructed in response to a MakeFundingTx action
// (funder path, WaitForFundingInternal).
type MakeFundingTxResponse struct {
	FundingTx       *wire.MsgTx
	FundingOutpoint wire.OutPoint
}

func (MakeFundingTxResponse) isEvent() {}

// NewBlock drives the coarse timeout loop (§5): a channel stuck in
// WaitForFundingConfirmed past FUNDING_TIMEOUT_FUNDEE as fundee aborts.
type NewBlock struct {
	Height uint32
}

func (NewBlock) isEvent() {}

// Disconnected signals the transport dropped; the FSM wraps the current
// state in Offline (§4.1).
type Disconnected struct{}

func (Disconnected) isEvent() {}

// Connected signals the transport reconnected; the FSM moves Offline to
// Syncing and emits our channel_reestablish (§4.1).
type Connected struct {
	LocalInitFeatures  []uint16
	RemoteInitFeatures []uint16
}

func (Connected) isEvent() {}
