package commitments

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// maxFeeRateDeviation bounds how far a peer's update_fee may sit from our
// own view of the current feerate before we treat it as hostile (§4.6,
// modeled on lnwallet/channel.go's validateFeeRate).
const maxFeeRateDeviation = 10

// SendUpdateFee proposes feePerKw for future commitments. Only the channel
// funder pays on-chain fees (BOLT-2), so only the funder may call this
// (§4.6 expansion).
func (c Commitments) SendUpdateFee(feePerKw btcutil.Amount) (Commitments, lnwire.UpdateFee, error) {
	if !c.IsFunder {
		return c, lnwire.UpdateFee{}, chanerrs.NewProtocolError("sendUpdateFee", chanerrs.ErrFundeeCannotSendFee)
	}

	c.LocalChanges.Proposed = append(c.LocalChanges.Proposed, Htlc{
		Type:    FeeUpdate,
		FeeRate: feePerKw,
	})

	msg := lnwire.UpdateFee{
		ChanID:   c.ChannelID,
		FeePerKw: uint32(feePerKw),
	}
	return c, msg, nil
}

// ReceiveUpdateFee records a funder-proposed feerate, rejecting one from a
// fundee outright and one too far from our own view per validateFeeRate's
// reasoning in the teacher (§4.6).
func (c Commitments) ReceiveUpdateFee(msg lnwire.UpdateFee, ourFeePerKw btcutil.Amount) (Commitments, error) {
	if c.IsFunder {
		return c, chanerrs.NewProtocolError("receiveUpdateFee", chanerrs.ErrNonFunderSentFee)
	}

	proposed := btcutil.Amount(msg.FeePerKw)
	if isFeeDiffTooHigh(proposed, ourFeePerKw) {
		return c, chanerrs.NewProtocolError("receiveUpdateFee", chanerrs.ErrFeerateTooDifferent)
	}

	c.RemoteChanges.Proposed = append(c.RemoteChanges.Proposed, Htlc{
		Type:    FeeUpdate,
		FeeRate: proposed,
	})
	return c, nil
}

// isFeeDiffTooHigh reports whether proposed sits further than
// maxFeeRateDeviation multiples away from ours in either direction.
func isFeeDiffTooHigh(proposed, ours btcutil.Amount) bool {
	if ours == 0 {
		return proposed != 0
	}
	if proposed > ours {
		return proposed > ours*maxFeeRateDeviation
	}
	return ours > proposed*maxFeeRateDeviation
}
