package channeld

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/closing"
)

// restoreActions re-derives the side effects a fresh process must perform
// immediately after Restore loads a persisted state (§6 "Recovery invokes
// Restore(state) at startup: it re-installs chain watches for any
// outstanding funding or closing transaction and republishes anything in
// Closing that has not yet been confirmed"). It never touches state itself,
// only reports what the dispatcher must now do.
func restoreActions(s State) []Action {
	var actions []Action

	switch {
	case s.Tag == WaitForFundingConfirmed && s.FundingOutpoint != nil:
		actions = append(actions, SendWatch{Confirmed: &chainwatch.Confirmed{
			ChannelID: s.ChannelID,
			TxID:      s.FundingOutpoint.Hash,
			MinDepth:  s.MinDepth,
			Tag:       chainwatch.TagFundingDepthOK,
		}})

	case s.HasCommitments() && s.FundingOutpoint != nil && s.Tag != ClosingTag:
		actions = append(actions, SendWatch{Spent: &chainwatch.Spent{
			ChannelID:   s.ChannelID,
			TxID:        s.FundingOutpoint.Hash,
			OutputIndex: uint32(s.FundingOutpoint.Index),
			Tag:         chainwatch.TagFundingSpent,
		}})
	}

	if s.Tag == ClosingTag && s.Closing != nil {
		for _, tx := range closingPublishableTxs(s.Closing) {
			actions = append(actions, PublishTx{Tx: tx})
		}
	}

	return actions
}

// closingPublishableTxs walks every transaction a Closing state has derived
// so far so restoreActions can republish them; rebroadcasting a tx the chain
// already accepted is harmless.
func closingPublishableTxs(c *closing.State) []*wire.MsgTx {
	var out []*wire.MsgTx

	out = append(out, c.MutualClosePublished...)

	if lc := c.LocalCommitPublished; lc != nil {
		out = append(out, lc.CommitTx)
		appendNonNil(&out, lc.ClaimMainDelayedTx)
		out = append(out, lc.HtlcTimeoutTxs...)
		out = append(out, lc.HtlcSuccessTxs...)
		out = append(out, lc.ClaimHtlcDelayedTxs...)
	}
	for _, rc := range []*closing.RemoteCommitPublished{
		c.CurrentRemoteCommitPublished, c.NextRemoteCommitPublished, c.FutureRemoteCommitPublished,
	} {
		if rc == nil {
			continue
		}
		out = append(out, rc.CommitTx)
		appendNonNil(&out, rc.ClaimMainOutputTx)
		out = append(out, rc.ClaimHtlcSuccessTxs...)
		out = append(out, rc.ClaimHtlcTimeoutTxs...)
	}
	for _, rev := range c.RevokedCommitPublished {
		out = append(out, rev.CommitTx)
		appendNonNil(&out, rev.ClaimMainTx)
		appendNonNil(&out, rev.MainPenaltyTx)
		out = append(out, rev.HtlcPenaltyTxs...)
	}

	return out
}

func appendNonNil(out *[]*wire.MsgTx, tx *wire.MsgTx) {
	if tx != nil {
		*out = append(*out, tx)
	}
}
