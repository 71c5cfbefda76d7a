// Package closing implements mutual-close fee negotiation and the
// unilateral-close/revocation-penalty claim-transaction derivations (§4.3).
// Grounded on lnwallet/channel.go's UnilateralCloseSummary/
// OutgoingHtlcResolution/ForceCloseSummary/BreachRetribution shapes and on
// breacharbiter.go's exactRetribution/createJusticeTx flow, adapted from
// that file's side-effecting goroutine into pure derivation functions: this
// package never broadcasts anything, it only computes what a caller should.
package closing

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MaxNegotiationIterations bounds the mutual-close fee negotiation (§6).
const MaxNegotiationIterations = 20

// HtlcClaim pairs a second-stage (timeout/success) transaction with the
// delayed sweep that ultimately claims its output, mirroring
// contractcourt/htlc_timeout_resolver.go's htlcResolution/outputIncubating
// split between "the HTLC tx landed" and "its output is now spendable".
type HtlcClaim struct {
	SecondStageTx *wire.MsgTx
	SweepTx       *wire.MsgTx // nil until the to-self-delay has passed
}

// LocalCommitPublished describes the claim set for our own broadcast
// commitment (§3 "Closing state").
type LocalCommitPublished struct {
	CommitTx             *wire.MsgTx
	ClaimMainDelayedTx    *wire.MsgTx
	HtlcSuccessTxs        []*wire.MsgTx
	HtlcTimeoutTxs        []*wire.MsgTx
	ClaimHtlcDelayedTxs   []*wire.MsgTx
	IrrevocablySpent      map[wire.OutPoint]chainhash.Hash
}

// IsDone reports whether the commit tx and every non-dust claim descendant
// is irrevocably confirmed.
func (l *LocalCommitPublished) IsDone() bool {
	if l == nil || l.CommitTx == nil {
		return false
	}
	want := allOutpoints(l.CommitTx)
	for _, tx := range l.descendants() {
		want = append(want, allOutpoints(tx)...)
	}
	for _, op := range want {
		if _, ok := l.IrrevocablySpent[op]; !ok {
			return false
		}
	}
	return true
}

func (l *LocalCommitPublished) descendants() []*wire.MsgTx {
	var out []*wire.MsgTx
	if l.ClaimMainDelayedTx != nil {
		out = append(out, l.ClaimMainDelayedTx)
	}
	out = append(out, l.HtlcSuccessTxs...)
	out = append(out, l.HtlcTimeoutTxs...)
	out = append(out, l.ClaimHtlcDelayedTxs...)
	return out
}

// RemoteCommitPublished describes the claim set for an observed remote
// (not-yet-revoked) commitment (§3).
type RemoteCommitPublished struct {
	CommitTx           *wire.MsgTx
	ClaimMainOutputTx  *wire.MsgTx
	ClaimHtlcSuccessTxs []*wire.MsgTx
	ClaimHtlcTimeoutTxs []*wire.MsgTx
	IrrevocablySpent   map[wire.OutPoint]chainhash.Hash
}

// IsDone mirrors LocalCommitPublished.IsDone for the remote-commit case.
func (r *RemoteCommitPublished) IsDone() bool {
	if r == nil || r.CommitTx == nil {
		return false
	}
	want := allOutpoints(r.CommitTx)
	if r.ClaimMainOutputTx != nil {
		want = append(want, allOutpoints(r.ClaimMainOutputTx)...)
	}
	for _, tx := range r.ClaimHtlcSuccessTxs {
		want = append(want, allOutpoints(tx)...)
	}
	for _, tx := range r.ClaimHtlcTimeoutTxs {
		want = append(want, allOutpoints(tx)...)
	}
	for _, op := range want {
		if _, ok := r.IrrevocablySpent[op]; !ok {
			return false
		}
	}
	return true
}

// RevokedCommitPublished describes the penalty claim set against a revoked
// remote commitment (§3, grounded on breacharbiter.go's retributionInfo/
// breachedOutput).
type RevokedCommitPublished struct {
	CommitTx          *wire.MsgTx
	ClaimMainTx       *wire.MsgTx
	MainPenaltyTx     *wire.MsgTx
	HtlcPenaltyTxs    []*wire.MsgTx
	IrrevocablySpent  map[wire.OutPoint]chainhash.Hash
}

// IsDone reports whether every penalty output has been irrevocably spent.
func (r *RevokedCommitPublished) IsDone() bool {
	if r == nil || r.CommitTx == nil {
		return false
	}
	var want []wire.OutPoint
	if r.ClaimMainTx != nil {
		want = append(want, allOutpoints(r.ClaimMainTx)...)
	}
	if r.MainPenaltyTx != nil {
		want = append(want, allOutpoints(r.MainPenaltyTx)...)
	}
	for _, tx := range r.HtlcPenaltyTxs {
		want = append(want, allOutpoints(tx)...)
	}
	for _, op := range want {
		if _, ok := r.IrrevocablySpent[op]; !ok {
			return false
		}
	}
	return true
}

func allOutpoints(tx *wire.MsgTx) []wire.OutPoint {
	if tx == nil {
		return nil
	}
	txid := tx.TxHash()
	out := make([]wire.OutPoint, len(tx.TxOut))
	for i := range tx.TxOut {
		out[i] = wire.OutPoint{Hash: txid, Index: uint32(i)}
	}
	return out
}

// State is the data carried only while a channel is in the Closing FSM
// state (§3 "Closing state").
type State struct {
	FundingTx            *wire.MsgTx
	WaitingSinceUnixSec   int64
	LocalScript           []byte
	RemoteScript          []byte
	MutualCloseProposed   []ClosingSigned
	MutualClosePublished  []*wire.MsgTx

	LocalCommitPublished         *LocalCommitPublished
	CurrentRemoteCommitPublished *RemoteCommitPublished
	NextRemoteCommitPublished    *RemoteCommitPublished
	FutureRemoteCommitPublished  *RemoteCommitPublished
	RevokedCommitPublished       []*RevokedCommitPublished
}

// ClosingSigned is the fee/signature pair exchanged during mutual close
// negotiation (§4.3), independent of the wire encoding.
type ClosingSigned struct {
	FeeSatoshis btcutil.Amount
	Signature   []byte
}

// Type identifies how a channel ended up Closed, for isClosed's result
// (§4.3 "Closing-type detection").
type Type uint8

const (
	NotClosed Type = iota
	MutualClose
	LocalClose
	CurrentRemoteClose
	NextRemoteClose
	RecoveryClose
	RevokedClose
)

// IsClosed implements Closing.isClosed: given an optionally-confirmed tx
// (the mutual-close candidate, if one just reached the required depth),
// reports which closing type — if any — the state now represents (§4.3).
func (s *State) IsClosed(additionalConfirmedTx *chainhash.Hash) Type {
	if additionalConfirmedTx != nil {
		for _, tx := range s.MutualClosePublished {
			if tx.TxHash() == *additionalConfirmedTx {
				return MutualClose
			}
		}
	}
	switch {
	case s.LocalCommitPublished.IsDone():
		return LocalClose
	case s.CurrentRemoteCommitPublished.IsDone():
		return CurrentRemoteClose
	case s.NextRemoteCommitPublished.IsDone():
		return NextRemoteClose
	case s.FutureRemoteCommitPublished.IsDone():
		return RecoveryClose
	}
	for _, rc := range s.RevokedCommitPublished {
		if rc.IsDone() {
			return RevokedClose
		}
	}
	return NotClosed
}
