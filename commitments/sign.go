package commitments

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// SendCommit signs the remote's next commitment, locking in every entry
// currently in the proposed portion of both change logs (§4.2 "sendCommit").
// It is a protocol error to call this with no pending changes, or while a
// commit_sig is already outstanding and unrevoked. The caller (channeld) is
// responsible for persisting the returned HtlcInfo records via a
// StoreHtlcInfos action before the commit_sig carrying their signatures
// leaves the process (§5 ordering guarantee #2) — this package only
// computes them, it never touches the store directly, unlike KeyManager
// which §5 describes as a synchronous, side-effect-free collaborator safe
// to call inline.
func (c Commitments) SendCommit(km keychain.KeyManager, tb TxBuilder) (
	Commitments, lnwire.CommitSig, []channeldb.HtlcInfo, error) {

	if c.RemoteNextCommitInfo.IsPending() {
		return c, lnwire.CommitSig{}, nil, chanerrs.NewProtocolError("sendCommit", chanerrs.ErrCannotSignBeforeRevocation)
	}
	if len(c.LocalChanges.Proposed) == 0 && len(c.RemoteChanges.Proposed) == 0 {
		return c, lnwire.CommitSig{}, nil, chanerrs.NewProtocolError("sendCommit", chanerrs.ErrCannotSignWithoutChanges)
	}

	nextIndex := c.RemoteCommit.Index + 1
	spec := c.evaluateRemoteView()

	var nextPoint *btcec.PublicKey
	if c.RemoteNextCommitInfo.Point != nil {
		nextPoint = c.RemoteNextCommitInfo.Point
	}

	commitTx, err := tb.BuildCommitment(c.CommitInput, spec, nextIndex, nextPoint, false, false)
	if err != nil {
		return c, lnwire.CommitSig{}, nil, err
	}

	commitSig, htlcSigs, err := tb.SignCommitment(km, c.LocalParams.FundingKeyLoc, commitTx, spec)
	if err != nil {
		return c, lnwire.CommitSig{}, nil, err
	}

	var infos []channeldb.HtlcInfo
	for _, h := range spec.Htlcs {
		infos = append(infos, channeldb.HtlcInfo{
			ChannelID:    c.ChannelID,
			CommitHeight: nextIndex,
			PaymentHash:  h.PaymentHash,
			CltvExpiry:   h.CltvExpiry,
		})
	}

	c.RemoteNextCommitInfo = RemoteNextCommitInfo{
		Pending: &PendingRemoteCommit{
			NextRemoteCommit: Commitment{
				Index:                nextIndex,
				Spec:                 spec,
				Tx:                   commitTx,
				RemotePerCommitPoint: nextPoint,
			},
			SentAfterLocalCommitIndex: c.LocalCommit.Index,
		},
	}

	msg := lnwire.CommitSig{
		ChanID:    c.ChannelID,
		CommitSig: commitSig,
		HtlcSigs:  htlcSigs,
	}
	return c, msg, infos, nil
}

// ReceiveCommit verifies the peer's commit_sig against the local commitment
// we would build for the acked+pending-remote change set, advancing our own
// local commitment index on success, and returns the revoke_and_ack to send
// back (§4.2 "receiveCommit").
func (c Commitments) ReceiveCommit(km keychain.KeyManager, tb TxBuilder,
	msg lnwire.CommitSig) (Commitments, lnwire.RevokeAndAck, error) {

	if len(c.LocalChanges.Proposed) == 0 && len(c.RemoteChanges.Proposed) == 0 &&
		len(c.LocalChanges.Signed) == 0 && len(c.RemoteChanges.Signed) == 0 {
		return c, lnwire.RevokeAndAck{}, chanerrs.NewProtocolError("receiveCommit", chanerrs.ErrCannotSignWithoutChanges)
	}

	nextIndex := c.LocalCommit.Index + 1
	spec := c.evaluateLocalView()

	localCommitPoint, err := km.DeriveNextCommitmentPoint(c.LocalParams.FundingKeyPath, nextIndex)
	if err != nil {
		return c, lnwire.RevokeAndAck{}, err
	}

	commitTx, err := tb.BuildCommitment(c.CommitInput, spec, nextIndex, localCommitPoint, true, true)
	if err != nil {
		return c, lnwire.RevokeAndAck{}, err
	}

	if err := tb.VerifyCommitment(localCommitPoint, commitTx, spec, msg.CommitSig, msg.HtlcSigs); err != nil {
		return c, lnwire.RevokeAndAck{}, chanerrs.NewProtocolError("receiveCommit", chanerrs.ErrInvalidCommitmentSignature)
	}

	c.LocalCommit = Commitment{
		Index: nextIndex,
		Spec:  spec,
		Tx:    commitTx,
	}

	// Every Proposed entry that contributed to this view is now Signed
	// but not yet Acked (it is acked once we've revoked the prior local
	// commitment in turn).
	c.LocalChanges.Signed = append(c.LocalChanges.Signed, c.LocalChanges.Proposed...)
	c.LocalChanges.Proposed = nil
	c.RemoteChanges.Signed = append(c.RemoteChanges.Signed, c.RemoteChanges.Proposed...)
	c.RemoteChanges.Proposed = nil

	revokedSecretHeight := nextIndex - 1
	revocation, err := km.RevealCommitmentSecret(c.LocalParams.FundingKeyPath, revokedSecretHeight)
	if err != nil {
		return c, lnwire.RevokeAndAck{}, err
	}

	nextPoint, err := km.DeriveNextCommitmentPoint(c.LocalParams.FundingKeyPath, nextIndex+1)
	if err != nil {
		return c, lnwire.RevokeAndAck{}, err
	}

	reply := lnwire.RevokeAndAck{
		ChanID:                  c.ChannelID,
		Revocation:              revocation,
		NextPerCommitmentPoint:  nextPoint,
	}
	return c, reply, nil
}

// ReceiveRevocation processes the peer's revoke_and_ack: stores the newly
// revealed secret, acks every change that rode on the now-obsolete remote
// commitment, and advances remoteNextCommitInfo from Pending to the
// revealed point (§4.2 "receiveRevocation").
func (c Commitments) ReceiveRevocation(shaStore channeldb.ShaChainStore,
	msg lnwire.RevokeAndAck) (Commitments, error) {

	pending := c.RemoteNextCommitInfo.Pending
	if pending == nil {
		return c, chanerrs.NewStructuralError("receiveRevocation", chanerrs.ErrImpossibleRemoteCommitInfo)
	}

	if err := shaStore.AddSecret(c.RemoteCommit.Index, toArray32(msg.Revocation)); err != nil {
		return c, err
	}

	// Everything Signed on both sides up to the point the prior send was
	// issued is now durably Acked: the remote has proven, by revoking,
	// that it holds a commitment reflecting those changes.
	c.LocalChanges.Acked = append(c.LocalChanges.Acked, takeSignedUpTo(&c.LocalChanges, pending.SentAfterLocalCommitIndex)...)
	c.RemoteChanges.Acked = append(c.RemoteChanges.Acked, takeSignedUpTo(&c.RemoteChanges, pending.SentAfterLocalCommitIndex)...)

	c.RemoteCommit = pending.NextRemoteCommit
	c.RemoteNextCommitInfo = RemoteNextCommitInfo{Point: msg.NextPerCommitmentPoint}

	return c, nil
}

// takeSignedUpTo moves every Signed entry out of log and returns it; the
// teacher's updateLog keeps a monotonic log-index watermark per party to
// decide exactly which signed entries a given revocation acks (see
// lnwallet/channel.go's updateLog.logIndex bookkeeping) — simplified here
// since this core tracks only one outstanding commit_sig at a time (§4.2
// invariant: sendCommit refuses while one is pending).
func takeSignedUpTo(log *UpdateLog, _ uint64) []Htlc {
	signed := log.Signed
	log.Signed = nil
	return signed
}

func toArray32(b [32]byte) [32]byte { return b }

// evaluateRemoteView computes the CommitmentSpec the remote's next
// commitment must encode: its currently-acked state plus every change
// either side has proposed since (§4.2, modeled on
// lnwallet/channel.go's fetchCommitmentView/evaluateHTLCView).
func (c Commitments) evaluateRemoteView() CommitmentSpec {
	return evaluateView(c.RemoteCommit.Spec, c.LocalChanges.Proposed, c.RemoteChanges.Proposed, false)
}

// evaluateLocalView computes the CommitmentSpec our own next commitment
// must encode.
func (c Commitments) evaluateLocalView() CommitmentSpec {
	return evaluateView(c.LocalCommit.Spec, c.RemoteChanges.Proposed, c.LocalChanges.Proposed, true)
}

// evaluateView applies a set of "ours" and "theirs" pending entries onto a
// base spec to produce the next one. forLocal controls whose Add entries
// count as Incoming on the resulting commitment (the two sides of a channel
// always disagree about which direction an HTLC is "incoming" from).
func evaluateView(base CommitmentSpec, ours, theirs []Htlc, forLocal bool) CommitmentSpec {
	next := CommitmentSpec{
		ToLocal:  base.ToLocal,
		ToRemote: base.ToRemote,
		FeePerKw: base.FeePerKw,
	}
	htlcs := append([]Htlc{}, base.Htlcs...)

	apply := func(entries []Htlc) {
		for _, e := range entries {
			switch e.Type {
			case Add:
				htlcs = append(htlcs, e)
			case Fulfill:
				htlcs, next.ToLocal, next.ToRemote = settleHtlc(htlcs, e, next.ToLocal, next.ToRemote, forLocal)
			case Fail, FailMalformed:
				htlcs = removeHtlc(htlcs, e.ParentID)
			case FeeUpdate:
				next.FeePerKw = e.FeeRate
			}
		}
	}
	apply(ours)
	apply(theirs)

	next.Htlcs = htlcs
	return next
}

func settleHtlc(htlcs []Htlc, settle Htlc, toLocal, toRemote lnwire.MilliSatoshi, forLocal bool) ([]Htlc, lnwire.MilliSatoshi, lnwire.MilliSatoshi) {
	out := htlcs[:0:0]
	for _, h := range htlcs {
		if h.ID == settle.ParentID && h.Type == Add {
			if h.Incoming == forLocal {
				toLocal += h.Amount
			} else {
				toRemote += h.Amount
			}
			continue
		}
		out = append(out, h)
	}
	return out, toLocal, toRemote
}

func removeHtlc(htlcs []Htlc, id uint64) []Htlc {
	out := htlcs[:0:0]
	for _, h := range htlcs {
		if h.ID == id && h.Type == Add {
			continue
		}
		out = append(out, h)
	}
	return out
}
