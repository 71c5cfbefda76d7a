// Package commitments implements the per-channel ledger (§4.2): the
// local/remote commitment transactions, pending changes, HTLC tracking, and
// the sign/revoke/ack protocol that keeps them synchronized. It is
// deliberately blind to Bitcoin transaction construction (§1) — it calls
// out to a TxBuilder collaborator for that — and performs no I/O; every
// exported function returns a new value plus, where relevant, a wire
// message, never an executed side effect.
package commitments

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// EntryType distinguishes what kind of update a log entry records.
type EntryType uint8

const (
	Add EntryType = iota
	Fulfill
	Fail
	FailMalformed
	FeeUpdate
)

// Htlc is the in-flight record of an update_add_htlc, simplified from the
// teacher's PaymentDescriptor (§3, lnwallet/channel.go's PaymentDescriptor)
// down to the fields this core's pure logic needs; witness-script/output
// index bookkeeping for the actual commitment transaction is the TxBuilder
// collaborator's concern (§1).
type Htlc struct {
	ID          uint64
	Type        EntryType
	Amount      lnwire.MilliSatoshi
	PaymentHash lnwire.PaymentHash
	CltvExpiry  uint32

	// Incoming is true if we are the receiver of this HTLC (i.e. it
	// originated in a remote update_add_htlc).
	Incoming bool

	// ParentID is set on Fulfill/Fail/FailMalformed entries: the ID of
	// the Add entry being settled or failed.
	ParentID uint64

	Preimage   lnwire.PaymentPreimage
	FailReason []byte

	// FeeRate is only set on FeeUpdate entries (§4.6 update_fee).
	FeeRate btcutil.Amount

	// OnionBlob is forwarded opaquely (§1 onion construction out of scope).
	OnionBlob [1366]byte

	// PaymentID attributes this HTLC to the upstream relay context that
	// created it (§3 "per-payment origin map").
	PaymentID uint64
}

// UpdateLog is one direction's split of proposed/signed/acked changes
// (§3 "local changes and remote changes").
type UpdateLog struct {
	Proposed []Htlc
	Signed   []Htlc
	Acked    []Htlc
}

// CommitmentSpec is the agreed balances/fee/HTLC set a commitment
// transaction encodes (§3 "spec (amounts + fees + HTLC set)").
type CommitmentSpec struct {
	ToLocal  lnwire.MilliSatoshi
	ToRemote lnwire.MilliSatoshi
	FeePerKw btcutil.Amount
	Htlcs    []Htlc
}

// Commitment is one side's view of one commitment height (§3).
type Commitment struct {
	Index              uint64
	Spec               CommitmentSpec
	Tx                  *wire.MsgTx
	HtlcTimeoutTxs      []*wire.MsgTx
	HtlcSuccessTxs      []*wire.MsgTx
	RemotePerCommitPoint *btcec.PublicKey // only set on remote commitments
}

// PendingRemoteCommit carries the state of an outstanding commit_sig (§3
// "remote next commit info ... pending object").
type PendingRemoteCommit struct {
	NextRemoteCommit        Commitment
	Sent                     *lnwire.CommitSig
	SentAfterLocalCommitIndex uint64
	ReSignAsap                bool
}

// RemoteNextCommitInfo is the tagged variant named in §9 ("a named tagged
// variant ... makes intent explicit") replacing Either.Left/Right: either we
// have a commit_sig in flight awaiting revocation, or we know the point the
// remote will use for its next commitment.
type RemoteNextCommitInfo struct {
	Pending *PendingRemoteCommit
	Point   *btcec.PublicKey
}

// IsPending reports whether a commit_sig is in flight.
func (r RemoteNextCommitInfo) IsPending() bool { return r.Pending != nil }

// CommitInput pins the outpoint/value/script the commitment transactions
// spend from (§3 "commit input").
type CommitInput struct {
	Outpoint      wire.OutPoint
	Value         btcutil.Amount
	WitnessScript []byte
}

// TxBuilder is the external collaborator that turns a CommitmentSpec plus
// key material into an actual signed commitment transaction and its HTLC
// second-stage transactions. Script assembly, sighashing and weight
// estimation are Bitcoin transaction-construction primitives and are
// explicitly out of scope (§1); Commitments calls this interface instead of
// doing it inline.
type TxBuilder interface {
	// BuildCommitment constructs (but does not broadcast) the commitment
	// transaction for spec at the given index, for either the local or
	// remote party, using perCommitPoint to derive the per-commitment
	// keys.
	BuildCommitment(input CommitInput, spec CommitmentSpec, index uint64,
		perCommitPoint *btcec.PublicKey, isLocal, isOurTx bool) (*wire.MsgTx, error)

	// SignCommitment returns our signature over the remote's commitment
	// transaction (used by SendCommit) plus one signature per non-dust
	// HTLC output, in output order.
	SignCommitment(km keychain.KeyManager, loc keychain.KeyLocator,
		commitTx *wire.MsgTx, spec CommitmentSpec) (commitSig []byte, htlcSigs [][]byte, err error)

	// VerifyCommitment checks a received commit_sig/htlc sigs against the
	// local commitment this node would build for spec.
	VerifyCommitment(localCommitPubKey *btcec.PublicKey, commitTx *wire.MsgTx,
		spec CommitmentSpec, commitSig []byte, htlcSigs [][]byte) error

	// CommitWeight estimates the weight of a commitment transaction with
	// the given number of non-dust HTLCs, used by helpers.MakeFirstCommitTxs
	// and the mutual-close fee calculation (§4.3, §4.4).
	CommitWeight(numHtlcs int, hasAnchors bool) int64
}

// Commitments is the heart of the per-channel state (§3). It is a plain
// data value: every mutating operation in this package takes one by value
// (or a pointer it does not retain) and returns a new one.
type Commitments struct {
	ChannelID      lnwire.ChannelID
	ChannelVersion channeldb.ChannelVersion
	ChannelFlags   uint8

	LocalParams  channeldb.LocalParams
	RemoteParams channeldb.RemoteParams

	LocalCommit  Commitment
	RemoteCommit Commitment

	RemoteNextCommitInfo RemoteNextCommitInfo

	LocalChanges  UpdateLog
	RemoteChanges UpdateLog

	LocalNextHtlcID  uint64
	RemoteNextHtlcID uint64

	// OriginMap attributes our outgoing HTLCs to the upstream context
	// that created them (§3 "per-payment origin map"); opaque to this
	// package beyond key/value storage.
	OriginMap map[uint64]uint64

	CommitInput CommitInput

	// RemoteChannelData is the last encrypted backup the peer sent us
	// (§3 "optional remote channel data").
	RemoteChannelData []byte

	IsFunder bool
}

// NothingAtStake reports the §3 invariant: both latest commits are at
// index 0 and the channel has no on-chain footprint yet, or equivalently
// both balances are zero and nothing is pending.
func (c Commitments) NothingAtStake(fundedOnChain bool) bool {
	if c.LocalCommit.Index == 0 && c.RemoteCommit.Index == 0 && !fundedOnChain {
		return true
	}
	noBalance := c.LocalCommit.Spec.ToLocal == 0 && c.LocalCommit.Spec.ToRemote == 0
	noHtlcs := len(c.LocalCommit.Spec.Htlcs) == 0 && len(c.RemoteCommit.Spec.Htlcs) == 0
	return noBalance && noHtlcs
}

// AboveReserve is §4.4's aboveReserve: true iff our latest view of the
// remote's to_remote balance exceeds their required channel reserve.
func (c Commitments) AboveReserve() bool {
	toRemoteSat := btcutil.Amount(c.RemoteCommit.Spec.ToRemote.ToSatoshis())
	return toRemoteSat > c.RemoteParams.Constraints.ChannelReserve
}
