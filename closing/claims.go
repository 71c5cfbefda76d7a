package closing

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/keychain"
)

// OutputKind identifies which commitment output a LocateOutput call is
// resolving.
type OutputKind uint8

const (
	OutputToLocal OutputKind = iota
	OutputToRemote
	OutputHtlc
)

// TxBuilder is the subset of commitments.TxBuilder plus the
// penalty/htlc-claim construction this package additionally needs. Kept as
// its own interface (rather than embedding commitments.TxBuilder) so a
// caller can wire a narrower collaborator into closing alone.
type TxBuilder interface {
	// LocateOutput resolves the real index kind's output occupies on
	// commitTx, or ok=false if it was trimmed as dust and never added
	// (§1, "THE HARD PART" / invariant #8 penalty completeness). BIP69
	// output ordering plus dust trimming mean a to_local/to_remote
	// output's position cannot be assumed 0/1, and an HTLC's position
	// cannot be assumed to match its slice index in spec.Htlcs once
	// earlier HTLCs in the set were dust-trimmed off the transaction —
	// mirrors lnwallet/channel.go's locateOutputIndex, which walks
	// commitTx.TxOut against the known scripts rather than indexing by
	// slice position. For kind == OutputHtlc, htlc identifies which
	// HTLC's output to resolve.
	LocateOutput(commitTx *wire.MsgTx, spec commitments.CommitmentSpec,
		kind OutputKind, htlc *commitments.Htlc) (index uint32, ok bool)

	// BuildClosingTx constructs the single 2-in-1(or-2)-out mutual close
	// transaction spending the funding output to localScript/remoteScript
	// for the given final amounts (§4.3 closing_signed negotiation). An
	// output is omitted when its amount would be dust.
	BuildClosingTx(fundingInput commitments.CommitInput, localScript, remoteScript []byte,
		localAmount, remoteAmount btcutil.Amount) (*wire.MsgTx, error)

	// SignClosingTx produces our signature over closingTx's single input.
	SignClosingTx(km keychain.KeyManager, fundingKeyLoc keychain.KeyLocator, closingTx *wire.MsgTx,
		fundingInput commitments.CommitInput) ([]byte, error)

	// VerifyClosingTxSig checks the counterparty's closing_signed
	// signature against closingTx.
	VerifyClosingTxSig(remoteFundingPubKey *btcec.PublicKey, closingTx *wire.MsgTx,
		fundingInput commitments.CommitInput, sig []byte) error

	// ClaimDelayedOutput builds the transaction that sweeps our own
	// commitment's to_local output once its to_self_delay has passed.
	ClaimDelayedOutput(commitTx *wire.MsgTx, outputIndex uint32, toSelfDelay uint16,
		delayBasePoint *btcec.PublicKey) (*wire.MsgTx, error)

	// ClaimRemoteMainOutput builds the transaction that sweeps our
	// to_remote output on a commitment the counterparty published
	// (immediately spendable, no delay for a non-anchor channel).
	ClaimRemoteMainOutput(commitTx *wire.MsgTx, outputIndex uint32) (*wire.MsgTx, error)

	// BuildHtlcSecondStage builds the htlc-timeout or htlc-success
	// transaction for a given HTLC output on our own commitment.
	BuildHtlcSecondStage(commitTx *wire.MsgTx, outputIndex uint32, h commitments.Htlc,
		preimage *[32]byte) (*wire.MsgTx, error)

	// BuildHtlcClaim builds our direct claim of an HTLC output on a
	// commitment the counterparty published.
	BuildHtlcClaim(commitTx *wire.MsgTx, outputIndex uint32, h commitments.Htlc,
		preimage *[32]byte) (*wire.MsgTx, error)

	// BuildMainPenalty builds the transaction sweeping a revoked
	// commitment's to_local output entirely to us, given the revealed
	// per-commitment secret.
	BuildMainPenalty(commitTx *wire.MsgTx, outputIndex uint32, secret [32]byte) (*wire.MsgTx, error)

	// BuildHtlcPenalty builds the transaction sweeping a single revoked
	// HTLC output entirely to us.
	BuildHtlcPenalty(commitTx *wire.MsgTx, outputIndex uint32, h commitments.Htlc, secret [32]byte) (*wire.MsgTx, error)
}

// ClaimCurrentLocalCommitTxOutputs derives the claim set for our own
// broadcast commitment transaction (§4.3
// "claimCurrentLocalCommitTxOutputs"), grounded on
// lnwallet/channel.go's ForceCloseSummary construction.
func ClaimCurrentLocalCommitTxOutputs(tb TxBuilder, c commitments.Commitments,
	commitTx *wire.MsgTx) (*LocalCommitPublished, error) {

	result := &LocalCommitPublished{
		CommitTx:         commitTx,
		IrrevocablySpent: make(map[wire.OutPoint]chainhash.Hash),
	}

	toLocalIndex, hasMain := tb.LocateOutput(commitTx, c.LocalCommit.Spec, OutputToLocal, nil)
	if hasMain {
		claimTx, err := tb.ClaimDelayedOutput(commitTx, toLocalIndex,
			c.LocalParams.Constraints.ToSelfDelay, c.LocalParams.DelayedPaymentBasePoint)
		if err != nil {
			return nil, fmt.Errorf("claim main delayed output: %w", err)
		}
		result.ClaimMainDelayedTx = claimTx
	}

	for _, h := range c.LocalCommit.Spec.Htlcs {
		outputIndex, onTx := tb.LocateOutput(commitTx, c.LocalCommit.Spec, OutputHtlc, &h)
		if !onTx {
			// Dust, trimmed off the transaction entirely: nothing to claim.
			continue
		}
		if h.Incoming {
			stageTx, err := tb.BuildHtlcSecondStage(commitTx, outputIndex, h, nil)
			if err != nil {
				return nil, fmt.Errorf("htlc-timeout tx for htlc %d: %w", h.ID, err)
			}
			result.HtlcTimeoutTxs = append(result.HtlcTimeoutTxs, stageTx)
		} else {
			preimage := h.Preimage
			stageTx, err := tb.BuildHtlcSecondStage(commitTx, outputIndex, h, (*[32]byte)(&preimage))
			if err != nil {
				return nil, fmt.Errorf("htlc-success tx for htlc %d: %w", h.ID, err)
			}
			result.HtlcSuccessTxs = append(result.HtlcSuccessTxs, stageTx)
		}
	}

	return result, nil
}

// ClaimRemoteCommitTxOutputs derives the claim set for an observed,
// not-yet-revoked remote commitment (§4.3 "claimRemoteCommitTxOutputs").
func ClaimRemoteCommitTxOutputs(tb TxBuilder, c commitments.Commitments,
	remoteSpec commitments.CommitmentSpec, commitTx *wire.MsgTx) (*RemoteCommitPublished, error) {

	result := &RemoteCommitPublished{
		CommitTx:         commitTx,
		IrrevocablySpent: make(map[wire.OutPoint]chainhash.Hash),
	}

	toRemoteIndex, hasMain := tb.LocateOutput(commitTx, remoteSpec, OutputToRemote, nil)
	if hasMain {
		claimTx, err := tb.ClaimRemoteMainOutput(commitTx, toRemoteIndex)
		if err != nil {
			return nil, fmt.Errorf("claim remote main output: %w", err)
		}
		result.ClaimMainOutputTx = claimTx
	}

	for _, h := range remoteSpec.Htlcs {
		outputIndex, onTx := tb.LocateOutput(commitTx, remoteSpec, OutputHtlc, &h)
		if !onTx {
			continue
		}
		if h.Incoming {
			stageTx, err := tb.BuildHtlcClaim(commitTx, outputIndex, h, nil)
			if err != nil {
				return nil, fmt.Errorf("claim htlc-timeout for htlc %d: %w", h.ID, err)
			}
			result.ClaimHtlcTimeoutTxs = append(result.ClaimHtlcTimeoutTxs, stageTx)
		} else {
			preimage := h.Preimage
			stageTx, err := tb.BuildHtlcClaim(commitTx, outputIndex, h, (*[32]byte)(&preimage))
			if err != nil {
				return nil, fmt.Errorf("claim htlc-success for htlc %d: %w", h.ID, err)
			}
			result.ClaimHtlcSuccessTxs = append(result.ClaimHtlcSuccessTxs, stageTx)
		}
	}

	return result, nil
}

// ClaimRemoteCommitMainOutput handles the "future commit" recovery case
// (§4.3): we learned, via a peer's channel_reestablish proving we are
// outdated, only their current per-commitment point — not a full spec — so
// we can claim nothing but our own main output.
func ClaimRemoteCommitMainOutput(tb TxBuilder, theirPerCommitPoint *btcec.PublicKey,
	commitTx *wire.MsgTx, toRemoteOutputIndex uint32) (*RemoteCommitPublished, error) {

	claimTx, err := tb.ClaimRemoteMainOutput(commitTx, toRemoteOutputIndex)
	if err != nil {
		return nil, fmt.Errorf("claim remote main output (future commit): %w", err)
	}
	return &RemoteCommitPublished{
		CommitTx:          commitTx,
		ClaimMainOutputTx: claimTx,
		IrrevocablySpent:  make(map[wire.OutPoint]chainhash.Hash),
	}, nil
}

// ClaimRevokedRemoteCommitTxOutputs implements the penalty derivation
// (§4.3 "claimRevokedRemoteCommitTxOutputs"): it looks the observed
// commitment's index up in the SHA-chain of remote secrets, and if tx.txid
// matches a commitment this node signed and the counterparty has since
// revoked, derives the justice transactions that sweep every output to us.
// Returns (nil, nil) — not an error — if tx does not match any revoked
// commitment this channel knows about, grounded on
// breacharbiter.go's exactRetribution: a commitment spend that does not
// match a retained retribution record is simply not actionable here.
func ClaimRevokedRemoteCommitTxOutputs(tb TxBuilder, c commitments.Commitments,
	shaStore channeldb.ShaChainStore, tx *wire.MsgTx, revokedIndex uint64,
	revokedSpec commitments.CommitmentSpec) (*RevokedCommitPublished, error) {

	if revokedIndex >= c.RemoteCommit.Index {
		// Not actually revoked: this is our current or a future view.
		return nil, nil
	}

	secret, err := shaStore.SecretAt(revokedIndex)
	if err != nil {
		return nil, fmt.Errorf("no retained secret for revoked commit %d: %w", revokedIndex, err)
	}

	result := &RevokedCommitPublished{
		CommitTx:         tx,
		IrrevocablySpent: make(map[wire.OutPoint]chainhash.Hash),
	}

	toLocalIndex, hasMain := tb.LocateOutput(tx, revokedSpec, OutputToLocal, nil)
	if hasMain {
		penaltyTx, err := tb.BuildMainPenalty(tx, toLocalIndex, secret)
		if err != nil {
			return nil, fmt.Errorf("build main penalty: %w", err)
		}
		result.MainPenaltyTx = penaltyTx
	}

	for _, h := range revokedSpec.Htlcs {
		outputIndex, onTx := tb.LocateOutput(tx, revokedSpec, OutputHtlc, &h)
		if !onTx {
			// Dust htlc outputs carry no penalty value to claim.
			continue
		}
		penaltyTx, err := tb.BuildHtlcPenalty(tx, outputIndex, h, secret)
		if err != nil {
			return nil, fmt.Errorf("build htlc penalty for htlc %d: %w", h.ID, err)
		}
		result.HtlcPenaltyTxs = append(result.HtlcPenaltyTxs, penaltyTx)
	}

	return result, nil
}

