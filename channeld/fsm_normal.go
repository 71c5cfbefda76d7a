package channeld

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// stepNormal is the workhorse state (§4.1 Normal): every HTLC command and
// message, CMD_SIGN, CMD_UPDATE_FEE, and the entry into cooperative and
// unilateral close all happen here.
func stepNormal(state State, event Event, deps Deps) (State, []Action, error) {
	switch ev := event.(type) {
	case ExecuteCommand:
		return handleNormalCommand(state, deps, ev.Command)
	case MessageReceived:
		return handleNormalMessage(state, deps, ev.Message)
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

func handleNormalCommand(state State, deps Deps, cmd Command) (State, []Action, error) {
	c := *state.Commitments

	switch co := cmd.(type) {
	case CmdAddHTLC:
		nc, msg, err := c.SendAdd(co.Amount, co.PaymentHash, co.CltvExpiry, co.OnionBlob, co.PaymentID, state.CurrentHeight)
		if err != nil {
			s, a := classifyAndHandle(state, deps, cmd, err)
			return s, a, nil
		}
		next := state
		next.Commitments = &nc
		actions := []Action{
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			SendMessage{Message: &msg},
		}
		if co.Commit {
			actions = append(actions, SendToSelf{Command: CmdSign{}})
		}
		return next, actions, nil

	case CmdFulfillHTLC:
		nc, msg, err := c.SendFulfill(co.HtlcID, co.Preimage)
		if err != nil {
			s, a := classifyAndHandle(state, deps, cmd, err)
			return s, a, nil
		}
		return finishNormalCommand(state, nc, &msg, co.Commit)

	case CmdFailHTLC:
		nc, msg, err := c.SendFail(co.HtlcID, co.Reason)
		if err != nil {
			s, a := classifyAndHandle(state, deps, cmd, err)
			return s, a, nil
		}
		return finishNormalCommand(state, nc, &msg, co.Commit)

	case CmdFailMalformedHTLC:
		nc, msg, err := c.SendFailMalformed(co.HtlcID, co.Sha256, co.FailureCode)
		if err != nil {
			s, a := classifyAndHandle(state, deps, cmd, err)
			return s, a, nil
		}
		return finishNormalCommand(state, nc, &msg, co.Commit)

	case CmdSign:
		nc, sigMsg, infos, err := c.SendCommit(deps.KeyManager, deps.CommitBuilder)
		if err != nil {
			s, a := classifyAndHandle(state, deps, cmd, err)
			return s, a, nil
		}
		next := state
		next.Commitments = &nc
		var actions []Action
		if len(infos) > 0 {
			actions = append(actions, StoreHtlcInfos{Infos: infos})
		}
		actions = append(actions,
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			SendMessage{Message: &sigMsg},
		)
		return next, actions, nil

	case CmdUpdateFee:
		nc, msg, err := c.SendUpdateFee(btcutil.Amount(co.FeePerKw))
		if err != nil {
			if !c.IsFunder {
				return state, []Action{HandleCommandFailed{Command: cmd, Err: err}}, nil
			}
			s, a := classifyAndHandle(state, deps, cmd, err)
			return s, a, nil
		}
		next := state
		next.Commitments = &nc
		return next, []Action{
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			SendMessage{Message: &msg},
		}, nil

	case CmdClose:
		if len(c.LocalChanges.Proposed) > 0 || c.RemoteNextCommitInfo.IsPending() {
			err := chanerrs.NewClosingFlowError("cmdClose", chanerrs.ErrCannotCloseWithUnsignedOutgoing)
			return state, []Action{HandleCommandFailed{Command: cmd, Err: err}}, nil
		}
		script := co.ScriptPubKey
		if len(script) == 0 {
			script = state.PendingOpen.UpfrontShutdownScript
		}
		shutdownMsg := &lnwire.Shutdown{ChanID: state.ChannelID, ScriptPubkey: script}
		cs := &closing.State{LocalScript: script}
		stampWaitingSince(cs, deps)
		next := state
		next.Tag = ShuttingDown
		next.Closing = cs
		return next, []Action{
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			SendMessage{Message: shutdownMsg},
		}, nil

	case CmdForceClose:
		next, actions := spendLocalCurrent(state, deps)
		return next, actions, nil

	default:
		return state, nil, nil
	}
}

// finishNormalCommand is the common tail for the three settlement commands
// (fulfill/fail/fail_malformed), which only differ in which Commitments
// method produced msg.
func finishNormalCommand(state State, nc commitments.Commitments, msg lnwire.Message, commit bool) (State, []Action, error) {
	next := state
	next.Commitments = &nc
	actions := []Action{
		StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
		SendMessage{Message: msg},
	}
	if commit {
		actions = append(actions, SendToSelf{Command: CmdSign{}})
	}
	return next, actions, nil
}

func handleNormalMessage(state State, deps Deps, msg lnwire.Message) (State, []Action, error) {
	c := *state.Commitments

	switch m := msg.(type) {
	case *lnwire.UpdateAddHTLC:
		nc, err := c.ReceiveAdd(*m, state.CurrentHeight)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		return next, nil, nil

	case *lnwire.UpdateFulfillHTLC:
		nc, _, _, err := c.ReceiveFulfill(*m)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		return next, nil, nil

	case *lnwire.UpdateFailHTLC:
		nc, _, err := c.ReceiveFail(*m)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		return next, nil, nil

	case *lnwire.UpdateFailMalformedHTLC:
		nc, _, err := c.ReceiveFailMalformed(*m)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		return next, nil, nil

	case *lnwire.UpdateFee:
		nc, err := c.ReceiveUpdateFee(*m, c.LocalCommit.Spec.FeePerKw)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		return next, nil, nil

	case *lnwire.CommitSig:
		nc, rev, err := c.ReceiveCommit(deps.KeyManager, deps.CommitBuilder, *m)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		revCopy := rev
		next.LastSentRevocation = &revCopy
		return next, []Action{
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			SendMessage{Message: &revCopy},
		}, nil

	case *lnwire.RevokeAndAck:
		prevSignedRemote := append([]commitments.Htlc(nil), c.RemoteChanges.Signed...)
		nc, err := c.ReceiveRevocation(deps.ShaStore, *m)
		if err != nil {
			return state, nil, err
		}
		next := state
		next.Commitments = &nc
		actions := []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}
		actions = append(actions, settlementActions(nc, prevSignedRemote)...)
		for _, h := range prevSignedRemote {
			if h.Type == commitments.Add && h.Incoming {
				actions = append(actions, ProcessAdd{ChannelID: state.ChannelID, HtlcID: h.ID})
			}
		}
		return next, actions, nil

	case *lnwire.Shutdown:
		return handleIncomingShutdown(state, deps, c, m)

	case *lnwire.Error:
		return handleRemoteError(state, deps, m)

	default:
		return state, nil, nil
	}
}

// handleRemoteError implements §7's symmetric policy: a peer-sent error is
// treated the same way a locally-detected one is, minus re-sending an error
// of our own.
func handleRemoteError(state State, deps Deps, m *lnwire.Error) (State, []Action, error) {
	if !state.HasCommitments() || state.NothingAtStake() {
		aborted := state
		aborted.Tag = Aborted
		return aborted, nil, nil
	}
	next, actions := spendLocalCurrent(state, deps)
	return next, actions, nil
}

// settlementActions derives the ProcessFulfill/ProcessFail/
// ProcessFailMalformed actions for outgoing HTLCs we originated that the
// just-processed revocation made irrevocable. Settlement only becomes
// binding once the commitment carrying it has been revoked (§4.2), so these
// actions belong to RevokeAndAck handling, not to the ReceiveFulfill/
// ReceiveFail/ReceiveFailMalformed cases that merely record the change.
func settlementActions(c commitments.Commitments, prevSignedRemote []commitments.Htlc) []Action {
	var actions []Action
	for _, h := range prevSignedRemote {
		switch h.Type {
		case commitments.Fulfill:
			actions = append(actions, ProcessFulfill{
				PaymentID: c.OriginMap[h.ParentID],
				Preimage:  h.Preimage,
			})
		case commitments.Fail:
			actions = append(actions, ProcessFail{
				PaymentID:  c.OriginMap[h.ParentID],
				FailReason: h.FailReason,
			})
		case commitments.FailMalformed:
			actions = append(actions, ProcessFailMalformed{
				PaymentID: c.OriginMap[h.ParentID],
			})
		}
	}
	return actions
}

// handleIncomingShutdown begins the cooperative close (§4.1 Normal ->
// ShuttingDown/Negotiating, §4.3). If nothing is outstanding we can reply
// and enter fee negotiation immediately; otherwise we first drain to a
// clean commitment and the ShuttingDown state's own MessageReceived handler
// will advance once that settles.
func handleIncomingShutdown(state State, deps Deps, c commitments.Commitments, m *lnwire.Shutdown) (State, []Action, error) {
	ourScript := state.PendingOpen.UpfrontShutdownScript
	reply := &lnwire.Shutdown{ChanID: state.ChannelID, ScriptPubkey: ourScript}

	if len(c.LocalChanges.Proposed) > 0 || c.RemoteNextCommitInfo.IsPending() {
		cs := &closing.State{LocalScript: ourScript, RemoteScript: m.ScriptPubkey}
		stampWaitingSince(cs, deps)
		next := state
		next.Tag = ShuttingDown
		next.Closing = cs
		return next, []Action{
			StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
			SendMessage{Message: reply},
		}, nil
	}

	return enterNegotiating(state, deps, c, reply, ourScript, m.ScriptPubkey)
}

// enterNegotiating sends our own closing_signed opening bid and transitions
// to Negotiating (§4.3 "The funder computes the first closing fee").
func enterNegotiating(state State, deps Deps, c commitments.Commitments, ourShutdown *lnwire.Shutdown,
	ourScript, theirScript []byte) (State, []Action, error) {

	next := state
	next.Tag = Negotiating
	cs := closing.State{}
	if state.Closing != nil {
		cs = *state.Closing
	}
	cs.LocalScript = ourScript
	cs.RemoteScript = theirScript
	stampWaitingSince(&cs, deps)
	next.Closing = &cs

	actions := []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}
	if ourShutdown != nil {
		actions = append(actions, SendMessage{Message: ourShutdown})
	}

	if c.IsFunder {
		commitWeight := deps.CommitBuilder.CommitWeight(0, state.ChannelVersion.HasAnchors())
		fee := closing.FirstClosingFee(c.LocalCommit.Spec.FeePerKw, commitWeight)
		sigMsg, err := buildClosingSignedMsg(state, deps, c, cs, fee)
		if err != nil {
			return state, nil, err
		}
		cs.MutualCloseProposed = append(cs.MutualCloseProposed, closing.ClosingSigned{FeeSatoshis: fee})
		actions = append(actions, SendMessage{Message: sigMsg})
	}

	return next, actions, nil
}

// buildClosingSignedMsg builds the mutual-close candidate transaction at fee
// and signs it, producing the closing_signed to send (§4.3).
func buildClosingSignedMsg(state State, deps Deps, c commitments.Commitments, cs closing.State,
	fee btcutil.Amount) (*lnwire.ClosingSigned, error) {

	localAmount := c.LocalCommit.Spec.ToLocal.ToSatoshis()
	remoteAmount := c.LocalCommit.Spec.ToRemote.ToSatoshis()
	if c.IsFunder {
		localAmount -= fee
	} else {
		remoteAmount -= fee
	}

	closingTx, err := deps.ClosingBuilder.BuildClosingTx(c.CommitInput, cs.LocalScript, cs.RemoteScript,
		localAmount, remoteAmount)
	if err != nil {
		return nil, err
	}
	sig, err := deps.ClosingBuilder.SignClosingTx(deps.KeyManager, c.LocalParams.FundingKeyLoc, closingTx, c.CommitInput)
	if err != nil {
		return nil, err
	}

	return &lnwire.ClosingSigned{
		ChanID:      state.ChannelID,
		FeeSatoshis: int64(fee),
		Signature:   sig,
	}, nil
}

// handleFundingSpent classifies an unexpected spend of the funding outpoint
// observed while still Normal: our own commitment (should not happen from
// here), the counterparty's current commitment, its pending next
// commitment, or something this channel does not recognize at all (§4.3,
// §7 structural policy).
func handleFundingSpent(state State, deps Deps, ev *chainwatch.EventSpent) (State, []Action, error) {
	c := *state.Commitments
	spendTxid := ev.SpendingTx.TxHash()

	cs := closing.State{}
	if state.Closing != nil {
		cs = *state.Closing
	}
	stampWaitingSince(&cs, deps)

	switch {
	case c.LocalCommit.Tx != nil && c.LocalCommit.Tx.TxHash() == spendTxid:
		next := state
		next.Tag = ClosingTag
		next.Closing = &cs
		return next, []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, nil

	case c.RemoteCommit.Tx != nil && c.RemoteCommit.Tx.TxHash() == spendTxid:
		published, err := closing.ClaimRemoteCommitTxOutputs(deps.ClosingBuilder, c, c.RemoteCommit.Spec, ev.SpendingTx)
		if err != nil {
			return state, nil, err
		}
		cs.CurrentRemoteCommitPublished = published
		next := state
		next.Tag = ClosingTag
		next.Closing = &cs
		actions := append([]Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, claimTxActions(published)...)
		return next, actions, nil

	case c.RemoteNextCommitInfo.Pending != nil && c.RemoteNextCommitInfo.Pending.NextRemoteCommit.Tx != nil &&
		c.RemoteNextCommitInfo.Pending.NextRemoteCommit.Tx.TxHash() == spendTxid:
		pending := c.RemoteNextCommitInfo.Pending.NextRemoteCommit
		published, err := closing.ClaimRemoteCommitTxOutputs(deps.ClosingBuilder, c, pending.Spec, ev.SpendingTx)
		if err != nil {
			return state, nil, err
		}
		cs.NextRemoteCommitPublished = published
		next := state
		next.Tag = ClosingTag
		next.Closing = &cs
		actions := append([]Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, claimTxActions(published)...)
		return next, actions, nil

	default:
		return state, nil, chanerrs.NewStructuralError("handleFundingSpent", chanerrs.ErrFundingSpentByUnrecognizedTx)
	}
}

func claimTxActions(published *closing.RemoteCommitPublished) []Action {
	var actions []Action
	if published.ClaimMainOutputTx != nil {
		actions = append(actions, PublishTx{Tx: published.ClaimMainOutputTx})
	}
	for _, tx := range published.ClaimHtlcSuccessTxs {
		actions = append(actions, PublishTx{Tx: tx})
	}
	for _, tx := range published.ClaimHtlcTimeoutTxs {
		actions = append(actions, PublishTx{Tx: tx})
	}
	return actions
}

// spendLocalCurrent force-closes by broadcasting our own latest commitment
// (§4.1 handleLocalError's fallback, §4.3 "claimCurrentLocalCommitTxOutputs",
// CMD_FORCE_CLOSE). It always starts from the pre-event state per §5's
// failure-isolation guarantee.
func spendLocalCurrent(state State, deps Deps) (State, []Action) {
	if !state.HasCommitments() {
		aborted := state
		aborted.Tag = Aborted
		return aborted, nil
	}

	c := *state.Commitments
	cs := closing.State{}
	if state.Closing != nil {
		cs = *state.Closing
	}
	if state.FundingTx != nil {
		cs.FundingTx = state.FundingTx
	}
	stampWaitingSince(&cs, deps)

	var actions []Action
	commitTx := c.LocalCommit.Tx
	if commitTx != nil && deps.ClosingBuilder != nil {
		published, err := closing.ClaimCurrentLocalCommitTxOutputs(deps.ClosingBuilder, c, commitTx)
		if err != nil {
			log.Errorf("claimCurrentLocalCommitTxOutputs for %s: %s", state.ChannelID, err)
		} else {
			cs.LocalCommitPublished = published
			actions = append(actions, PublishTx{Tx: commitTx})
			if published.ClaimMainDelayedTx != nil {
				actions = append(actions, PublishTx{Tx: published.ClaimMainDelayedTx})
			}
			actions = append(actions, publishAll(published.HtlcTimeoutTxs)...)
			actions = append(actions, publishAll(published.HtlcSuccessTxs)...)
		}
	}

	next := state
	next.Tag = ClosingTag
	next.Closing = &cs

	actions = append([]Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, actions...)
	return next, actions
}

func publishAll(txs []*wire.MsgTx) []Action {
	var actions []Action
	for _, tx := range txs {
		actions = append(actions, PublishTx{Tx: tx})
	}
	return actions
}
