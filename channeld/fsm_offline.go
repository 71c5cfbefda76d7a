package channeld

import (
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// stepOffline is every committed Tag's wrapper while the transport is down
// (§4.1 "represent as (Phase, InnerState)"): everything but Connected is
// dropped, since the peer cannot receive anything we'd send anyway.
func stepOffline(state State, event Event, deps Deps) (State, []Action, error) {
	_, ok := event.(Connected)
	if !ok {
		return state, nil, nil
	}

	next := state
	next.Phase = Syncing
	next.WaitForTheirReestablish = true

	msg := &lnwire.ChannelReestablish{ChanID: state.ChannelID}

	if state.HasCommitments() {
		c := *state.Commitments
		msg.NextLocalCommitmentNumber = c.LocalCommit.Index + 1
		msg.NextRemoteRevocationNumber = c.RemoteCommit.Index

		if c.RemoteCommit.Index > 0 {
			if secret, err := deps.ShaStore.SecretAt(c.RemoteCommit.Index - 1); err == nil {
				msg.YourLastPerCommitmentSecret = secret
			}
		}

		point, err := deps.KeyManager.DeriveNextCommitmentPoint(c.LocalParams.FundingKeyPath, c.LocalCommit.Index)
		if err != nil {
			return state, nil, err
		}
		msg.MyCurrentPerCommitmentPoint = point
	}

	return next, []Action{SendMessage{Message: msg}}, nil
}

// stepSyncing handles the peer's channel_reestablish and runs handleSync
// before returning to the committed Tag underneath (§4.1 Syncing -> Tag,
// §4.2).
func stepSyncing(state State, event Event, deps Deps) (State, []Action, error) {
	switch ev := event.(type) {
	case MessageReceived:
		m, ok := ev.Message.(*lnwire.ChannelReestablish)
		if !ok {
			return state, nil, nil
		}
		return handleChannelReestablish(state, deps, m)

	case Disconnected:
		wrapped := state
		wrapped.Phase = Offline
		wrapped.WaitForTheirReestablish = false
		return wrapped, nil, nil

	default:
		return state, nil, nil
	}
}

// handleChannelReestablish reconciles the commitment chains and, if the
// peer's claimed next-commitment-number proves our side is outdated,
// diverts into WaitForRemotePublishFutureCommitment instead of resuming
// Normal (§4.1, §4.2).
func handleChannelReestablish(state State, deps Deps, m *lnwire.ChannelReestablish) (State, []Action, error) {
	if !state.HasCommitments() {
		next := state
		next.Phase = Online
		next.WaitForTheirReestablish = false
		return next, nil, nil
	}

	c := *state.Commitments

	if m.NextLocalCommitmentNumber > c.LocalCommit.Index+1 {
		cs := closing.State{}
		if state.Closing != nil {
			cs = *state.Closing
		}
		stampWaitingSince(&cs, deps)
		next := state
		next.Tag = WaitForRemotePublishFutureCommitment
		next.Phase = Online
		next.WaitForTheirReestablish = false
		next.Closing = &cs

		errMsg := &lnwire.Error{ChanID: state.ChannelID, Data: []byte("peer claims a commitment newer than ours")}
		actions := []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}, SendMessage{Message: errMsg}}
		if next.FundingOutpoint != nil {
			actions = append(actions, SendWatch{Spent: &chainwatch.Spent{
				ChannelID:   next.ChannelID,
				TxID:        next.FundingOutpoint.Hash,
				OutputIndex: uint32(next.FundingOutpoint.Index),
				Tag:         chainwatch.TagFundingSpent,
			}})
		}
		return next, actions, nil
	}

	result, err := c.HandleSync(*m, state.LastSentRevocation)
	if err != nil {
		return state, nil, err
	}

	next := state
	next.Commitments = &result.Commitments
	next.Phase = Online
	next.WaitForTheirReestablish = false

	actions := []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}
	for _, msg := range result.Resend {
		actions = append(actions, SendMessage{Message: msg})
	}
	if result.NeedsReSign {
		actions = append(actions, SendToSelf{Command: CmdSign{}})
	}
	return next, actions, nil
}
