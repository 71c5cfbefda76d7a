package channeld

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Tag names one of the states in §4.1's table. Following the redesign note
// in §9 ("model as a tagged variant over state plus a single pure dispatch
// function"), Tag plus the fields below it together replace what the
// source expressed as a sealed class hierarchy.
type Tag uint8

const (
	WaitForInit Tag = iota
	WaitForOpenChannel
	WaitForAcceptChannel
	WaitForFundingInternal
	WaitForFundingCreated
	WaitForFundingSigned
	WaitForFundingConfirmed
	WaitForFundingLocked
	Normal
	ShuttingDown
	Negotiating
	ClosingTag
	Closed
	Aborted
	WaitForRemotePublishFutureCommitment
	ErrorInformationLeak
)

func (t Tag) String() string {
	switch t {
	case WaitForInit:
		return "WaitForInit"
	case WaitForOpenChannel:
		return "WaitForOpenChannel"
	case WaitForAcceptChannel:
		return "WaitForAcceptChannel"
	case WaitForFundingInternal:
		return "WaitForFundingInternal"
	case WaitForFundingCreated:
		return "WaitForFundingCreated"
	case WaitForFundingSigned:
		return "WaitForFundingSigned"
	case WaitForFundingConfirmed:
		return "WaitForFundingConfirmed"
	case WaitForFundingLocked:
		return "WaitForFundingLocked"
	case Normal:
		return "Normal"
	case ShuttingDown:
		return "ShuttingDown"
	case Negotiating:
		return "Negotiating"
	case ClosingTag:
		return "Closing"
	case Closed:
		return "Closed"
	case Aborted:
		return "Aborted"
	case WaitForRemotePublishFutureCommitment:
		return "WaitForRemotePublishFutureCommitment"
	case ErrorInformationLeak:
		return "ErrorInformationLeak"
	default:
		return "Unknown"
	}
}

// committedTags is the set of states from which commitments exist (§3
// "Commitments exist from WaitForFundingSigned/WaitForFundingCreated until
// Closed").
var committedTags = map[Tag]bool{
	WaitForFundingSigned:                 true,
	WaitForFundingCreated:                true,
	WaitForFundingConfirmed:               true,
	WaitForFundingLocked:                 true,
	Normal:                                true,
	ShuttingDown:                          true,
	Negotiating:                           true,
	ClosingTag:                            true,
	WaitForRemotePublishFutureCommitment: true,
	ErrorInformationLeak:                  true,
}

// Phase layers the Offline/Syncing wrapper on top of a committed Tag,
// following §9's redesign note: "represent as (Phase, InnerState) rather
// than nested variants".
type Phase uint8

const (
	Online Phase = iota
	Offline
	Syncing
)

// State is the single value the FSM reads and writes. Every field beyond
// Tag/Phase is populated only for the tags that need it; fields left zero
// on a given tag are simply unused, mirroring how the source's sealed
// subclasses each only carried their own fields, but expressed as one flat
// struct per §9's tagged-variant guidance.
type State struct {
	Tag   Tag
	Phase Phase

	// WaitForTheirReestablish mirrors Syncing's parameter: true until the
	// peer's channel_reestablish has been processed.
	WaitForTheirReestablish bool

	ChannelID     lnwire.ChannelID
	TempChannelID lnwire.ChannelID
	IsFunder      bool

	StaticParams   channeldb.StaticParams
	NodeParams     channeldb.NodeParams
	ChannelVersion channeldb.ChannelVersion
	ChannelFlags   uint8

	// PendingOpen carries the in-flight open/accept exchange before
	// Commitments exists.
	PendingOpen OpenNegotiation

	FundingOutpoint *wire.OutPoint
	FundingTx       *wire.MsgTx
	MinDepth        uint32

	// CurrentHeight is the last block height this channel observed via
	// NewBlock, consulted by sendAdd/receiveAdd's cltv_expiry bounds
	// (§4.2) alongside WaitForFundingConfirmedSinceBlock's timeout use.
	CurrentHeight uint32

	Commitments *commitments.Commitments

	Closing *closing.State

	// LastSentRevocation is kept for handleSync's
	// resend cases (§4.2); nil once superseded.
	LastSentRevocation *lnwire.RevokeAndAck

	// WaitForFundingConfirmedSinceBlock supports the FUNDING_TIMEOUT_FUNDEE
	// coarse timeout (§5); zero until the funding tx is seen unconfirmed
	// at a given height.
	WaitForFundingConfirmedSinceBlock uint32

	// LocalFirstCommitmentPoint/RemoteFirstCommitmentPoint are the index-0
	// per-commitment points exchanged in open_channel/accept_channel,
	// needed again once the funding outpoint is known to build each
	// side's initial commitment transaction (§4.1 WaitForFundingInternal/
	// WaitForFundingCreated/WaitForFundingSigned).
	LocalFirstCommitmentPoint  *btcec.PublicKey
	RemoteFirstCommitmentPoint *btcec.PublicKey
}

// OpenNegotiation holds the open_channel/accept_channel fields needed
// before a channel has Commitments (§3 "Local / Remote params" replicated
// for convenience once Commitments exists; beforehand, kept here).
type OpenNegotiation struct {
	LocalParams  channeldb.LocalParams
	RemoteParams channeldb.RemoteParams

	FundingSatoshis int64
	PushMsat        lnwire.MilliSatoshi
	FeePerKw        int64

	UpfrontShutdownScript []byte
}

// HasCommitments reports whether s is in one of the tags where Commitments
// is populated (§3 "Commitments exist from ... until Closed").
func (s State) HasCommitments() bool {
	return committedTags[s.Tag] && s.Commitments != nil
}

// NothingAtStake mirrors commitments.Commitments.NothingAtStake for states
// that have not yet reached Commitments at all (§3).
func (s State) NothingAtStake() bool {
	if !s.HasCommitments() {
		return true
	}
	return s.Commitments.NothingAtStake(s.FundingOutpoint != nil)
}
