package channeld

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Action is the closed sum of side-effect requests a transition can return
// (§4.5). The core never executes these; an external dispatcher does, in
// the order returned (§5 ordering guarantees).
type Action interface {
	isAction()
}

// SendMessage asks the peer transport to deliver Message.
type SendMessage struct {
	Message lnwire.Message
}

func (SendMessage) isAction() {}

// SendWatch registers one of the chainwatch request types.
type SendWatch struct {
	Confirmed *chainwatch.Confirmed
	Spent     *chainwatch.Spent
	Lost      *chainwatch.Lost
}

func (SendWatch) isAction() {}

// SendToSelf re-enters the FSM with ExecuteCommand(Command) on the next
// scheduling opportunity — used by CMD_ADD_HTLC{commit:true} and by
// handleSync to request an immediate re-sign (§4.2, §4.5).
type SendToSelf struct {
	Command Command
}

func (SendToSelf) isAction() {}

// ProcessAdd notifies the upstream relay layer that an incoming HTLC has
// reached the acked commitment (outside this core's scope to act on).
type ProcessAdd struct {
	ChannelID lnwire.ChannelID
	HtlcID    uint64
}

func (ProcessAdd) isAction() {}

// ProcessFulfill notifies the upstream relay layer that an outgoing HTLC we
// originated has been irrevocably settled.
type ProcessFulfill struct {
	PaymentID uint64
	Preimage  lnwire.PaymentPreimage
}

func (ProcessFulfill) isAction() {}

// ProcessFail notifies the upstream relay layer that an outgoing HTLC we
// originated has been irrevocably failed.
type ProcessFail struct {
	PaymentID  uint64
	FailReason []byte
}

func (ProcessFail) isAction() {}

// ProcessFailMalformed is ProcessFail's malformed-onion counterpart.
type ProcessFailMalformed struct {
	PaymentID   uint64
	ShaOnionBlob [32]byte
	FailureCode  uint16
}

func (ProcessFailMalformed) isAction() {}

// ProcessLocalFailure surfaces a caught local error for logging/metrics by
// the host process; it never itself changes routing state.
type ProcessLocalFailure struct {
	Err error
}

func (ProcessLocalFailure) isAction() {}

// StoreState persists the full channel state atomically (§5, §6).
type StoreState struct {
	ChannelID lnwire.ChannelID
	Data      channeldb.PersistedState
}

func (StoreState) isAction() {}

// StoreHtlcInfos persists HTLC-info records before the commit_sig signing
// them leaves the process (§5 ordering guarantee #2).
type StoreHtlcInfos struct {
	Infos []channeldb.HtlcInfo
}

func (StoreHtlcInfos) isAction() {}

// HandleCommandFailed reports a closing-flow error back to the command's
// caller without changing channel state (§7).
type HandleCommandFailed struct {
	Command Command
	Err     error
}

func (HandleCommandFailed) isAction() {}

// MakeFundingTx asks the wallet collaborator to construct the funding
// transaction (funder path, WaitForFundingInternal).
type MakeFundingTx struct {
	FundingSatoshis int64
	LocalFundingKey []byte
	RemoteFundingKey []byte
}

func (MakeFundingTx) isAction() {}

// PublishTx asks the broadcaster collaborator to publish tx.
type PublishTx struct {
	Tx *wire.MsgTx
}

func (PublishTx) isAction() {}

// ChannelIdAssigned announces the permanent channel id derived from the
// funding outpoint, replacing the temporary id used until now.
type ChannelIdAssigned struct {
	TempChannelID lnwire.ChannelID
	ChannelID     lnwire.ChannelID
}

func (ChannelIdAssigned) isAction() {}

// ChannelIdSwitch must precede, in the same action list, any action that
// refers to the new channel id (§5).
type ChannelIdSwitch struct {
	ChannelID lnwire.ChannelID
}

func (ChannelIdSwitch) isAction() {}
