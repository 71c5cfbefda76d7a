package channeld

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// stepShuttingDown drains any changes still in flight after a shutdown has
// been exchanged, then hands off to Negotiating once both sides' scripts
// are known and the commitment is clean (§4.1 ShuttingDown -> Negotiating).
func stepShuttingDown(state State, event Event, deps Deps) (State, []Action, error) {
	switch ev := event.(type) {
	case MessageReceived:
		switch m := ev.Message.(type) {
		case *lnwire.Shutdown:
			return receiveShutdownReply(state, deps, m)
		case *lnwire.Error:
			return handleRemoteError(state, deps, m)
		default:
			next, actions, err := handleNormalMessage(state, deps, ev.Message)
			if err != nil {
				return state, nil, err
			}
			return maybeAdvanceToNegotiating(next, deps, actions)
		}

	case WatchReceived:
		if ev.Spent == nil {
			return state, nil, nil
		}
		return handleFundingSpent(state, deps, ev.Spent)

	case Disconnected:
		wrapped := state
		wrapped.Phase = Offline
		return wrapped, nil, nil

	default:
		return state, nil, nil
	}
}

// receiveShutdownReply records the counterparty's script the first time
// their shutdown arrives, then tries to advance.
func receiveShutdownReply(state State, deps Deps, m *lnwire.Shutdown) (State, []Action, error) {
	cs := closing.State{}
	if state.Closing != nil {
		cs = *state.Closing
	}
	if cs.RemoteScript == nil {
		cs.RemoteScript = m.ScriptPubkey
	}
	if cs.LocalScript == nil {
		cs.LocalScript = state.PendingOpen.UpfrontShutdownScript
	}
	stampWaitingSince(&cs, deps)
	next := state
	next.Closing = &cs
	return maybeAdvanceToNegotiating(next, deps, nil)
}

// maybeAdvanceToNegotiating transitions out of ShuttingDown once both
// scripts are known and the commitment carries no unsigned outgoing change
// and no pending (unrevoked) remote commitment.
func maybeAdvanceToNegotiating(state State, deps Deps, actions []Action) (State, []Action, error) {
	if state.Closing == nil || state.Closing.LocalScript == nil || state.Closing.RemoteScript == nil {
		return state, actions, nil
	}
	c := *state.Commitments
	if len(c.LocalChanges.Proposed) > 0 || len(c.LocalChanges.Signed) > 0 ||
		len(c.RemoteChanges.Proposed) > 0 || len(c.RemoteChanges.Signed) > 0 ||
		c.RemoteNextCommitInfo.IsPending() {
		return state, actions, nil
	}

	next, moreActions, err := enterNegotiating(state, deps, c, nil, state.Closing.LocalScript, state.Closing.RemoteScript)
	if err != nil {
		return state, actions, err
	}
	return next, append(actions, moreActions...), nil
}

// stepNegotiating runs the closing_signed fee negotiation (§4.3). On
// convergence it publishes the agreed transaction and transitions to
// Closing; otherwise it replies with a counter-offer.
func stepNegotiating(state State, event Event, deps Deps) (State, []Action, error) {
	switch ev := event.(type) {
	case MessageReceived:
		switch m := ev.Message.(type) {
		case *lnwire.ClosingSigned:
			return handleClosingSigned(state, deps, m)
		case *lnwire.Error:
			return handleRemoteError(state, deps, m)
		default:
			return state, nil, nil
		}

	case WatchReceived:
		if ev.Spent == nil {
			return state, nil, nil
		}
		return handleFundingSpent(state, deps, ev.Spent)

	case Disconnected:
		wrapped := state
		wrapped.Phase = Offline
		return wrapped, nil, nil

	default:
		return state, nil, nil
	}
}

func handleClosingSigned(state State, deps Deps, m *lnwire.ClosingSigned) (State, []Action, error) {
	c := *state.Commitments
	cs := *state.Closing

	theirFee := btcutil.Amount(m.FeeSatoshis)
	var lastLocalFee btcutil.Amount
	if len(cs.MutualCloseProposed) > 0 {
		lastLocalFee = cs.MutualCloseProposed[len(cs.MutualCloseProposed)-1].FeeSatoshis
	}

	outcome := closing.EvaluateClosingSigned(lastLocalFee, theirFee, len(cs.MutualCloseProposed))

	finalFee := outcome.NextFee
	if outcome.Converged {
		finalFee = outcome.Publish
	}
	localAmount := c.LocalCommit.Spec.ToLocal.ToSatoshis()
	remoteAmount := c.LocalCommit.Spec.ToRemote.ToSatoshis()
	if c.IsFunder {
		localAmount -= finalFee
	} else {
		remoteAmount -= finalFee
	}

	closingTx, err := deps.ClosingBuilder.BuildClosingTx(c.CommitInput, cs.LocalScript, cs.RemoteScript,
		localAmount, remoteAmount)
	if err != nil {
		return state, nil, err
	}

	if outcome.Converged {
		if err := deps.ClosingBuilder.VerifyClosingTxSig(c.RemoteParams.FundingPubKey, closingTx,
			c.CommitInput, m.Signature); err != nil {
			return state, nil, chanerrs.NewProtocolError("closingSigned", chanerrs.ErrInvalidCommitmentSignature)
		}

		cs.MutualClosePublished = append(cs.MutualClosePublished, closingTx)
		next := state
		next.Tag = ClosingTag
		next.Closing = &cs
		return next, []Action{
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			PublishTx{Tx: closingTx},
		}, nil
	}

	sig, err := deps.ClosingBuilder.SignClosingTx(deps.KeyManager, c.LocalParams.FundingKeyLoc, closingTx, c.CommitInput)
	if err != nil {
		return state, nil, err
	}

	cs.MutualCloseProposed = append(cs.MutualCloseProposed, closing.ClosingSigned{FeeSatoshis: outcome.NextFee})
	next := state
	next.Closing = &cs

	reply := &lnwire.ClosingSigned{
		ChanID:      state.ChannelID,
		FeeSatoshis: int64(outcome.NextFee),
		Signature:   sig,
	}
	return next, []Action{
		StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
		SendMessage{Message: reply},
	}, nil
}

// stepClosing processes chain-watch results while a closing transaction set
// is outstanding: every confirmation is recorded in IrrevocablySpent and
// moves the channel to Closed once IsClosed recognises a closing type
// (§4.3 "Closing-type detection"). A spend is passed to handleClosingSpend,
// which derives no further claim transaction.
func stepClosing(state State, event Event, deps Deps) (State, []Action, error) {
	ev, ok := event.(WatchReceived)
	if !ok {
		return state, nil, nil
	}

	cs := *state.Closing

	switch {
	case ev.Confirmed != nil:
		markConfirmed(&cs, ev.Confirmed.Tx)

		txid := ev.Confirmed.Tx.TxHash()
		if closedType := cs.IsClosed(&txid); closedType != closing.NotClosed {
			next := state
			next.Tag = Closed
			next.Closing = &cs
			return next, []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, nil
		}

	case ev.Spent != nil:
		return handleClosingSpend(state, &cs, ev.Spent)
	}

	next := state
	next.Closing = &cs
	return next, []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, nil
}

// markConfirmed records, for every tracked claim set, that confirmedTx's
// inputs are now irrevocably spent. Marking outpoints a given claim set does
// not itself own is harmless: IsDone only consults the outpoints it expects.
func markConfirmed(cs *closing.State, confirmedTx *wire.MsgTx) {
	txid := confirmedTx.TxHash()
	sets := []*map[wire.OutPoint]chainhash.Hash{}
	if cs.LocalCommitPublished != nil {
		sets = append(sets, &cs.LocalCommitPublished.IrrevocablySpent)
	}
	for _, rc := range []*closing.RemoteCommitPublished{
		cs.CurrentRemoteCommitPublished, cs.NextRemoteCommitPublished, cs.FutureRemoteCommitPublished,
	} {
		if rc != nil {
			sets = append(sets, &rc.IrrevocablySpent)
		}
	}
	for _, rev := range cs.RevokedCommitPublished {
		sets = append(sets, &rev.IrrevocablySpent)
	}

	for _, in := range confirmedTx.TxIn {
		for _, set := range sets {
			if *set == nil {
				*set = make(map[wire.OutPoint]chainhash.Hash)
			}
			(*set)[in.PreviousOutPoint] = txid
		}
	}
}

// handleClosingSpend handles a spend observed while already Closing. Whether
// or not the spending tx is a tracked revoked commitment, it returns the
// state with cs installed, no actions and no error.
func handleClosingSpend(state State, cs *closing.State, ev *chainwatch.EventSpent) (State, []Action, error) {
	spendTxid := ev.SpendingTx.TxHash()

	for _, rc := range cs.RevokedCommitPublished {
		if rc.CommitTx != nil && rc.CommitTx.TxHash() == spendTxid {
			next := state
			next.Closing = cs
			return next, nil, nil
		}
	}

	next := state
	next.Closing = cs
	return next, nil, nil
}

// stepWaitForRemotePublishFutureCommitment waits for the peer to prove our
// local state is outdated by broadcasting their current commitment, per the
// channel_reestablish "I am behind" branch (§4.1, §4.2).
func stepWaitForRemotePublishFutureCommitment(state State, event Event, deps Deps) (State, []Action, error) {
	ev, ok := event.(WatchReceived)
	if !ok || ev.Spent == nil {
		return state, nil, nil
	}

	cs := closing.State{}
	if state.Closing != nil {
		cs = *state.Closing
	}
	cs.FutureRemoteCommitPublished = &closing.RemoteCommitPublished{
		CommitTx:         ev.Spent.SpendingTx,
		IrrevocablySpent: make(map[wire.OutPoint]chainhash.Hash),
	}
	stampWaitingSince(&cs, deps)

	next := state
	next.Tag = ClosingTag
	next.Closing = &cs
	return next, []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, nil
}
