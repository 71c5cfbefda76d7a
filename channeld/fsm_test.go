package channeld

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/lnwire"
	"github.com/stretchr/testify/require"
)

func testChannelID() lnwire.ChannelID {
	return lnwire.ChannelID{0x01}
}

// normalState returns a minimal, funder-side Normal-tag state with a clean
// commitment (no pending changes, no HTLCs) — the baseline most of this
// file's tests start from.
func normalState() State {
	c := commitments.Commitments{
		ChannelID: testChannelID(),
		LocalParams: channeldb.LocalParams{
			Constraints: channeldb.ChannelConstraints{
				HtlcMinimum:        1000,
				MaxAcceptedHtlcs:   30,
				MaxValueInFlight:   100_000_000,
				MinCltvExpiryDelta: 6,
				MaxCltvExpiryDelta: 1000,
			},
		},
		RemoteParams: channeldb.RemoteParams{
			Constraints: channeldb.ChannelConstraints{
				HtlcMinimum:        1000,
				MaxAcceptedHtlcs:   30,
				MaxValueInFlight:   100_000_000,
				MinCltvExpiryDelta: 6,
				MaxCltvExpiryDelta: 1000,
			},
		},
		LocalCommit:  commitments.Commitment{Spec: commitments.CommitmentSpec{ToLocal: 5_000_000_000, ToRemote: 0}},
		RemoteCommit: commitments.Commitment{Spec: commitments.CommitmentSpec{ToLocal: 5_000_000_000, ToRemote: 0}},
		IsFunder:     true,
		OriginMap:    make(map[uint64]uint64),
	}

	return State{
		Tag:         Normal,
		Phase:       Online,
		ChannelID:   testChannelID(),
		IsFunder:    true,
		Commitments: &c,
		PendingOpen: OpenNegotiation{
			UpfrontShutdownScript: []byte{0xaa, 0xbb},
		},
	}
}

func findAction[T Action](actions []Action) (T, bool) {
	for _, a := range actions {
		if v, ok := a.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func TestStepNormalAddHtlcSendsMessageAndStoresState(t *testing.T) {
	state := normalState()
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdAddHTLC{
		Amount:      50_000,
		PaymentHash: lnwire.PaymentHash{1},
		CltvExpiry:  500,
		PaymentID:   7,
	}}, deps)
	require.NoError(t, err)

	require.Len(t, next.Commitments.LocalChanges.Proposed, 1)
	require.Equal(t, uint64(0), next.Commitments.LocalChanges.Proposed[0].ID)

	_, hasStore := findAction[StoreState](actions)
	require.True(t, hasStore)
	sendMsg, hasSend := findAction[SendMessage](actions)
	require.True(t, hasSend)
	_, isAdd := sendMsg.Message.(*lnwire.UpdateAddHTLC)
	require.True(t, isAdd)

	_, hasSelfSign := findAction[SendToSelf](actions)
	require.False(t, hasSelfSign, "Commit was false, should not self-sign")
}

func TestStepNormalAddHtlcWithCommitSelfSigns(t *testing.T) {
	state := normalState()
	deps := testDeps()

	_, actions, err := stepNormal(state, ExecuteCommand{Command: CmdAddHTLC{
		Amount:      50_000,
		PaymentHash: lnwire.PaymentHash{1},
		CltvExpiry:  500,
		Commit:      true,
	}}, deps)
	require.NoError(t, err)

	self, ok := findAction[SendToSelf](actions)
	require.True(t, ok)
	_, isSign := self.Command.(CmdSign)
	require.True(t, isSign)
}

func TestStepNormalAddHtlcBelowMinimumAbortsNothingAtStake(t *testing.T) {
	state := normalState()
	deps := testDeps()

	// normalState has both commitments at index 0 and no funding outpoint,
	// so NothingAtStake is true and classifyAndHandle's KindProtocol policy
	// resolves to Aborted rather than a force-close.
	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdAddHTLC{
		Amount:      100,
		PaymentHash: lnwire.PaymentHash{1},
		CltvExpiry:  500,
	}}, deps)
	require.NoError(t, err)

	require.Equal(t, Aborted, next.Tag)
	_, hasErrMsg := findAction[SendMessage](actions)
	require.True(t, hasErrMsg)
}

func TestStepNormalAddHtlcBelowMinimumForceClosesWhenFunded(t *testing.T) {
	state := normalState()
	state.FundingOutpoint = &wire.OutPoint{}
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdAddHTLC{
		Amount:      100,
		PaymentHash: lnwire.PaymentHash{1},
		CltvExpiry:  500,
	}}, deps)
	require.NoError(t, err)

	require.Equal(t, ClosingTag, next.Tag)
	_, hasErrMsg := findAction[SendMessage](actions)
	require.True(t, hasErrMsg)
}

func TestStepNormalCmdSignProducesCommitSigAndStoresHtlcInfos(t *testing.T) {
	state := normalState()
	state.Commitments.LocalChanges.Proposed = []commitments.Htlc{
		{ID: 0, Type: commitments.Add, Amount: 50_000, PaymentHash: lnwire.PaymentHash{1}},
	}
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdSign{}}, deps)
	require.NoError(t, err)

	require.True(t, next.Commitments.RemoteNextCommitInfo.IsPending())

	_, hasInfos := findAction[StoreHtlcInfos](actions)
	require.True(t, hasInfos)
	sendMsg, hasSend := findAction[SendMessage](actions)
	require.True(t, hasSend)
	_, isCommitSig := sendMsg.Message.(*lnwire.CommitSig)
	require.True(t, isCommitSig)
}

func TestStepNormalCmdSignWithNoChangesAborts(t *testing.T) {
	state := normalState()
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdSign{}}, deps)
	require.NoError(t, err)
	require.Equal(t, Aborted, next.Tag)
	_, hasErrMsg := findAction[SendMessage](actions)
	require.True(t, hasErrMsg)
}

func TestStepNormalCmdCloseEntersShuttingDown(t *testing.T) {
	state := normalState()
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdClose{}}, deps)
	require.NoError(t, err)

	require.Equal(t, ShuttingDown, next.Tag)
	require.NotNil(t, next.Closing)
	require.Equal(t, state.PendingOpen.UpfrontShutdownScript, next.Closing.LocalScript)
	require.Nil(t, next.Closing.RemoteScript)

	sendMsg, ok := findAction[SendMessage](actions)
	require.True(t, ok)
	shutdown, isShutdown := sendMsg.Message.(*lnwire.Shutdown)
	require.True(t, isShutdown)
	require.Equal(t, state.PendingOpen.UpfrontShutdownScript, shutdown.ScriptPubkey)
}

func TestStepNormalCmdCloseRejectsWithUnsignedOutgoing(t *testing.T) {
	state := normalState()
	state.Commitments.LocalChanges.Proposed = []commitments.Htlc{{ID: 0, Type: commitments.Add}}
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdClose{}}, deps)
	require.NoError(t, err)
	require.Equal(t, Normal, next.Tag)

	failed, ok := findAction[HandleCommandFailed](actions)
	require.True(t, ok)
	require.ErrorIs(t, failed.Err.(*chanerrs.ProtocolError).Unwrap(), chanerrs.ErrCannotCloseWithUnsignedOutgoing)
}

func TestHandleIncomingShutdownCleanEntersNegotiating(t *testing.T) {
	state := normalState()
	deps := testDeps()

	theirScript := []byte{0xcc, 0xdd}
	next, actions, err := stepNormal(state, MessageReceived{Message: &lnwire.Shutdown{
		ChanID:       state.ChannelID,
		ScriptPubkey: theirScript,
	}}, deps)
	require.NoError(t, err)

	require.Equal(t, Negotiating, next.Tag)
	require.NotNil(t, next.Closing)
	require.Equal(t, theirScript, next.Closing.RemoteScript)
	require.Equal(t, state.PendingOpen.UpfrontShutdownScript, next.Closing.LocalScript)

	// As funder, entering negotiation sends our own opening closing_signed.
	require.Len(t, next.Closing.MutualCloseProposed, 1)
	sendMsg, ok := findAction[SendMessage](actions)
	require.True(t, ok)
	require.IsType(t, &lnwire.Shutdown{}, sendMsg.Message)
}

func TestHandleIncomingShutdownDirtyStaysInShuttingDownUntilClean(t *testing.T) {
	state := normalState()
	state.Commitments.LocalChanges.Proposed = []commitments.Htlc{{ID: 0, Type: commitments.Add}}
	deps := testDeps()

	theirScript := []byte{0xcc, 0xdd}
	next, _, err := stepNormal(state, MessageReceived{Message: &lnwire.Shutdown{
		ChanID:       state.ChannelID,
		ScriptPubkey: theirScript,
	}}, deps)
	require.NoError(t, err)

	require.Equal(t, ShuttingDown, next.Tag)
	require.NotNil(t, next.Closing)
	require.Equal(t, theirScript, next.Closing.RemoteScript)
	require.Equal(t, state.PendingOpen.UpfrontShutdownScript, next.Closing.LocalScript)
}

func TestCmdForceCloseTransitionsToClosingAndPublishes(t *testing.T) {
	state := normalState()
	state.Commitments.LocalCommit.Tx = wire.NewMsgTx(2)
	deps := testDeps()

	next, actions, err := stepNormal(state, ExecuteCommand{Command: CmdForceClose{}}, deps)
	require.NoError(t, err)

	require.Equal(t, ClosingTag, next.Tag)
	require.NotNil(t, next.Closing)
	require.NotNil(t, next.Closing.LocalCommitPublished)

	_, hasPublish := findAction[PublishTx](actions)
	require.True(t, hasPublish)
}

func TestStepOfflineIgnoresNonConnectedEvent(t *testing.T) {
	state := normalState()
	state.Phase = Offline
	deps := testDeps()

	next, actions, err := stepOffline(state, ExecuteCommand{Command: CmdSign{}}, deps)
	require.NoError(t, err)
	require.Equal(t, Offline, next.Phase)
	require.Empty(t, actions)
}

func TestStepOfflineConnectedSendsChannelReestablish(t *testing.T) {
	state := normalState()
	state.Phase = Offline
	deps := testDeps()

	next, actions, err := stepOffline(state, Connected{}, deps)
	require.NoError(t, err)

	require.Equal(t, Syncing, next.Phase)
	require.True(t, next.WaitForTheirReestablish)

	sendMsg, ok := findAction[SendMessage](actions)
	require.True(t, ok)
	reestablish, isReestablish := sendMsg.Message.(*lnwire.ChannelReestablish)
	require.True(t, isReestablish)
	require.Equal(t, uint64(1), reestablish.NextLocalCommitmentNumber)
}

func TestHandleChannelReestablishDivertsWhenBehind(t *testing.T) {
	state := normalState()
	state.Phase = Syncing
	deps := testDeps()

	next, actions, err := handleChannelReestablish(state, deps, &lnwire.ChannelReestablish{
		ChanID:                     state.ChannelID,
		NextLocalCommitmentNumber: 5,
	})
	require.NoError(t, err)

	require.Equal(t, WaitForRemotePublishFutureCommitment, next.Tag)
	require.Equal(t, Online, next.Phase)

	_, hasErrMsg := findAction[SendMessage](actions)
	require.True(t, hasErrMsg)
}

func TestHandleChannelReestablishResumesNormalWhenInSync(t *testing.T) {
	state := normalState()
	state.Phase = Syncing
	deps := testDeps()

	next, actions, err := handleChannelReestablish(state, deps, &lnwire.ChannelReestablish{
		ChanID:                     state.ChannelID,
		NextLocalCommitmentNumber:  1,
		NextRemoteRevocationNumber: 0,
	})
	require.NoError(t, err)

	require.Equal(t, Normal, next.Tag)
	require.Equal(t, Online, next.Phase)
	require.False(t, next.WaitForTheirReestablish)

	_, hasStore := findAction[StoreState](actions)
	require.True(t, hasStore)
}

func TestHandleLocalErrorAbortsWithNoCommitments(t *testing.T) {
	state := State{Tag: WaitForOpenChannel, TempChannelID: testChannelID()}
	deps := testDeps()

	next, actions := handleLocalError(state, deps, chanerrs.NewStructuralError("test", chanerrs.ErrFundingSpentByUnrecognizedTx))
	require.Equal(t, Aborted, next.Tag)

	_, hasErrMsg := findAction[SendMessage](actions)
	require.True(t, hasErrMsg)
}

func TestHandleLocalErrorForceClosesWhenSomethingAtStake(t *testing.T) {
	state := normalState()
	state.Commitments.LocalCommit.Spec.ToLocal = 5_000_000_000
	state.Commitments.LocalCommit.Index = 3
	state.Commitments.RemoteCommit.Index = 3
	state.FundingOutpoint = &wire.OutPoint{}
	deps := testDeps()

	next, actions := handleLocalError(state, deps, chanerrs.NewProtocolError("test", chanerrs.ErrCannotSignWithoutChanges))
	require.Equal(t, ClosingTag, next.Tag)

	_, hasErrMsg := findAction[SendMessage](actions)
	require.True(t, hasErrMsg)
}
