package commitments

import (
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// SyncResult is handleSync's outcome: a reconciled Commitments, the
// messages (if any) that must be resent, and whether local now has changes
// pending that warrant a self-directed CMD_SIGN (§4.2 handleSync).
type SyncResult struct {
	Commitments  Commitments
	Resend       []lnwire.Message
	NeedsReSign  bool
}

// HandleSync reconciles our view of the channel against the peer's
// channel_reestablish after a reconnection (§4.2 "handleSync"). Both
// change logs' unsent proposals are discarded first, since neither side
// could have signed them before the disconnect; the htlc-id counters are
// rolled back by the number of discarded adds so ids stay contiguous.
func (c Commitments) HandleSync(msg lnwire.ChannelReestablish,
	lastSentRevocation *lnwire.RevokeAndAck) (SyncResult, error) {

	c.LocalNextHtlcID -= countAdds(c.LocalChanges.Proposed)
	c.RemoteNextHtlcID -= countAdds(c.RemoteChanges.Proposed)
	c.LocalChanges.Proposed = nil
	c.RemoteChanges.Proposed = nil

	switch {
	case msg.NextRemoteRevocationNumber == c.LocalCommit.Index:
		// Case 1: they have acked our latest commit; nothing to resend.
		return finishSync(c), nil

	case msg.NextRemoteRevocationNumber == c.LocalCommit.Index-1:
		// Case 2: our last revocation was lost in flight; resend it.
		if lastSentRevocation == nil {
			return SyncResult{}, chanerrs.NewProtocolError("handleSync", chanerrs.ErrRevocationSyncError)
		}
		result := finishSync(c)
		result.Resend = append(result.Resend, lastSentRevocation)
		return result, nil
	}

	pending := c.RemoteNextCommitInfo.Pending
	if pending == nil {
		return SyncResult{}, chanerrs.NewProtocolError("handleSync", chanerrs.ErrRevocationSyncError)
	}

	switch msg.NextLocalCommitmentNumber {
	case pending.NextRemoteCommit.Index + 1:
		// Case 3: they received our commit_sig and are about to revoke;
		// nothing more to do but wait.
		return finishSync(c), nil

	case pending.NextRemoteCommit.Index:
		// Case 4: they never received our commit_sig; resend every
		// change it covered plus the same signature, ordered relative
		// to the revocation that was (or wasn't) sent after it.
		result := finishSync(c)
		changes := changesToMessages(c.ChannelID, c.LocalChanges.Signed, c.RemoteChanges.Signed)

		if pending.SentAfterLocalCommitIndex < pending.NextRemoteCommit.Index && lastSentRevocation != nil {
			result.Resend = append(result.Resend, lastSentRevocation)
			result.Resend = append(result.Resend, changes...)
			result.Resend = append(result.Resend, pending.Sent)
		} else {
			result.Resend = append(result.Resend, changes...)
			result.Resend = append(result.Resend, pending.Sent)
			if lastSentRevocation != nil {
				result.Resend = append(result.Resend, lastSentRevocation)
			}
		}
		return result, nil

	default:
		return SyncResult{}, chanerrs.NewProtocolError("handleSync", chanerrs.ErrRevocationSyncError)
	}
}

func finishSync(c Commitments) SyncResult {
	needsSign := len(c.LocalChanges.Acked) > 0 || c.localHasUnsignedSettlement()
	return SyncResult{Commitments: c, NeedsReSign: needsSign}
}

// localHasUnsignedSettlement reports whether any acked local change (a
// settlement of an incoming HTLC, or a brand new add re-proposed after the
// Proposed wipe above) is still waiting on a commit_sig to cover it.
func (c Commitments) localHasUnsignedSettlement() bool {
	return len(c.LocalChanges.Acked) > len(c.RemoteCommit.Spec.Htlcs)
}

func countAdds(entries []Htlc) uint64 {
	var n uint64
	for _, e := range entries {
		if e.Type == Add {
			n++
		}
	}
	return n
}

// changesToMessages reprojects signed-but-unacked log entries back into the
// wire messages that originally carried them, for resending under case 4.
// Fee updates never need resending standalone: they are folded back into
// the commit_sig being resent.
func changesToMessages(chanID lnwire.ChannelID, local, remote []Htlc) []lnwire.Message {
	var out []lnwire.Message
	for _, h := range local {
		if m := htlcToMessage(chanID, h); m != nil {
			out = append(out, m)
		}
	}
	for _, h := range remote {
		if m := htlcToMessage(chanID, h); m != nil {
			out = append(out, m)
		}
	}
	return out
}

func htlcToMessage(chanID lnwire.ChannelID, h Htlc) lnwire.Message {
	switch h.Type {
	case Add:
		return &lnwire.UpdateAddHTLC{
			ChanID:      chanID,
			ID:          h.ID,
			Amount:      h.Amount,
			PaymentHash: h.PaymentHash,
			Expiry:      h.CltvExpiry,
			OnionBlob:   h.OnionBlob,
		}
	case Fulfill:
		return &lnwire.UpdateFulfillHTLC{
			ChanID:          chanID,
			ID:              h.ParentID,
			PaymentPreimage: h.Preimage,
		}
	case Fail:
		return &lnwire.UpdateFailHTLC{
			ChanID: chanID,
			ID:     h.ParentID,
			Reason: h.FailReason,
		}
	default:
		return nil
	}
}
