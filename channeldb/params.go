// Package channeldb defines the data the channel core persists and the
// storage contracts an external collaborator must satisfy (§3, §6). The
// actual storage engine (bolt/postgres/etcd/...) is explicitly out of scope
// (§1) — this package only fixes the shape of the data and the interface
// the core calls into.
package channeldb

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// ChannelVersion is a bitset of feature/policy switches fixed for a
// channel's entire lifetime (§3 "Channel version").
type ChannelVersion uint8

const (
	// StaticRemoteKey pins the remote's payment point across
	// commitments, removing the need to re-derive it per commitment.
	StaticRemoteKey ChannelVersion = 1 << 0

	// ZeroReserve means neither party must maintain a channel reserve.
	ZeroReserve ChannelVersion = 1 << 1

	// PaysDirectlyToWallet routes to-local outputs straight to a wallet
	// address rather than the delayed-claim script.
	PaysDirectlyToWallet ChannelVersion = 1 << 2

	// AnchorOutputs adds a small anchor output to each commitment to
	// allow fee bumping after broadcast (fee bumping itself stays out of
	// scope, §4.6 expansion).
	AnchorOutputs ChannelVersion = 1 << 3
)

// HasStaticRemoteKey reports whether the STATIC-REMOTEKEY bit is set.
func (v ChannelVersion) HasStaticRemoteKey() bool { return v&StaticRemoteKey != 0 }

// IsZeroReserve reports whether the ZERO-RESERVE bit is set (§3
// "A channel is ZERO-RESERVE iff the channel version has that bit set").
func (v ChannelVersion) IsZeroReserve() bool { return v&ZeroReserve != 0 }

// PaysDirectly reports whether PAYS-DIRECTLY-TO-WALLET is set.
func (v ChannelVersion) PaysDirectly() bool { return v&PaysDirectlyToWallet != 0 }

// HasAnchors reports whether option_anchor_outputs is set.
func (v ChannelVersion) HasAnchors() bool { return v&AnchorOutputs != 0 }

// FeePolicy is the node-wide fee-rate estimation contract. The concrete
// estimator (mempool-based, external oracle, static) is out of scope (§1);
// the core only ever reads EstimateFeePerKw.
type FeePolicy interface {
	EstimateFeePerKw(confTarget uint32) (btcutil.Amount, error)
}

// StaticParams is node-wide configuration, immutable after a channel is
// created (§3 "Static parameters"). Struct tags let a host binary surface
// these via github.com/jessevdk/go-flags without this core importing a CLI
// framework itself.
type StaticParams struct {
	NodePrivateKeyPath string `long:"keypath" description:"derivation path for the node identity key"`

	ChainHash chainhash.Hash `long:"chainhash" description:"genesis hash of the base chain this channel is anchored to"`

	ChainParams *chaincfg.Params

	// MinDepthBlocks is the default confirmation policy consulted by
	// helpers.MinDepthForFunding (§4.4).
	MinDepthBlocks uint32 `long:"mindepth" default:"3"`

	// MaxToLocalDelayBlocks bounds how large a to_self_delay this node
	// will accept (§4.4 validateParamsFunder/Fundee).
	MaxToLocalDelayBlocks uint16 `long:"maxtoselfdelay" default:"2016"`

	// MaxReserveToFundingRatio bounds accept_channel's channel reserve
	// relative to the funder's funding amount (§4.4).
	MaxReserveToFundingRatio float64 `long:"maxreserveratio" default:"0.05"`

	FeePolicy FeePolicy
}

// NodeParams identifies the remote party of a channel (§3).
type NodeParams struct {
	PubKey *btcec.PublicKey
}

// ChannelConstraints are the policy knobs exchanged and validated during
// open/accept and later enforced by commitments.SendAdd/ReceiveAdd (§3, §4.2).
type ChannelConstraints struct {
	DustLimit        btcutil.Amount
	ChannelReserve   btcutil.Amount
	HtlcMinimum      lnwire.MilliSatoshi
	MaxValueInFlight lnwire.MilliSatoshi
	MaxAcceptedHtlcs uint16
	ToSelfDelay      uint16

	// MinCltvExpiryDelta/MaxCltvExpiryDelta bound, relative to the
	// current block height, the cltv_expiry an add_htlc offered to this
	// party may carry (§4.2 sendAdd/receiveAdd). Mirrors lnd's
	// htlcswitch forwarding-policy bounds (e.g. DefaultMaxOutgoingCltvExpiry),
	// enforced here per-channel instead.
	MinCltvExpiryDelta uint32
	MaxCltvExpiryDelta uint32
}

// LocalParams is this node's half of the per-channel parameters (§3
// "Local / Remote params").
type LocalParams struct {
	Constraints ChannelConstraints

	FundingPubKey          *btcec.PublicKey
	RevocationBasePoint    *btcec.PublicKey
	PaymentBasePoint       *btcec.PublicKey
	DelayedPaymentBasePoint *btcec.PublicKey
	HtlcBasePoint          *btcec.PublicKey

	FeatureBits []uint16

	// FundingKeyPath is the key-derivation path for this channel's
	// funding key; never shared with the remote party (§3).
	FundingKeyPath string

	// FundingKeyLoc is the same funding key, addressed the way
	// keychain.KeyManager's signing calls expect it.
	FundingKeyLoc keychain.KeyLocator
}

// RemoteParams is the counterparty's half of the per-channel parameters.
type RemoteParams struct {
	Constraints ChannelConstraints

	FundingPubKey           *btcec.PublicKey
	RevocationBasePoint     *btcec.PublicKey
	PaymentBasePoint        *btcec.PublicKey
	DelayedPaymentBasePoint *btcec.PublicKey
	HtlcBasePoint           *btcec.PublicKey

	FeatureBits []uint16
}
