package channeld

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnchannel/chainwatch"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/helpers"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// openConfTarget is the confirmation target this core asks FeePolicy for
// when checking a peer's proposed open_channel feerate (§4.4
// validateParamsFundee). A real estimator would be consulted at several
// targets; one fixed target is enough for the comparison this core needs.
const openConfTarget = 6

// stepWaitForInit handles the three ways a channel's life can begin (§4.1).
func stepWaitForInit(state State, event Event, deps Deps) (State, []Action, error) {
	switch ev := event.(type) {
	case InitFunder:
		return startAsFunder(state, ev, deps)
	case InitFundee:
		next := state
		next.Tag = WaitForOpenChannel
		next.TempChannelID = ev.TempChannelID
		next.IsFunder = false
		next.StaticParams = ev.StaticParams
		next.NodeParams = ev.NodeParams
		next.PendingOpen.LocalParams = ev.LocalParams
		return next, nil, nil
	case Restore:
		return ev.State, restoreActions(ev.State), nil
	default:
		return state, nil, nil
	}
}

func startAsFunder(state State, ev InitFunder, deps Deps) (State, []Action, error) {
	firstPoint, err := deps.KeyManager.DeriveNextCommitmentPoint(ev.LocalParams.FundingKeyPath, 0)
	if err != nil {
		return state, nil, err
	}

	next := state
	next.Tag = WaitForAcceptChannel
	next.TempChannelID = ev.TempChannelID
	next.IsFunder = true
	next.StaticParams = ev.StaticParams
	next.NodeParams = ev.NodeParams
	next.ChannelVersion = ev.ChannelVersion
	next.ChannelFlags = ev.ChannelFlags
	next.PendingOpen.LocalParams = ev.LocalParams
	next.PendingOpen.FundingSatoshis = ev.FundingSatoshis
	next.PendingOpen.PushMsat = ev.PushMsat
	next.PendingOpen.FeePerKw = ev.FeePerKw
	next.LocalFirstCommitmentPoint = firstPoint

	msg := &lnwire.OpenChannel{
		ChainHash:             ev.StaticParams.ChainHash,
		TemporaryChanID:       ev.TempChannelID,
		FundingAmount:         ev.FundingSatoshis,
		PushAmount:            ev.PushMsat,
		DustLimit:             int64(ev.LocalParams.Constraints.DustLimit),
		MaxValueInFlight:      ev.LocalParams.Constraints.MaxValueInFlight,
		ChannelReserve:        int64(ev.LocalParams.Constraints.ChannelReserve),
		HtlcMinimum:           ev.LocalParams.Constraints.HtlcMinimum,
		FeePerKiloWeight:      ev.FeePerKw,
		CsvDelay:              ev.LocalParams.Constraints.ToSelfDelay,
		MaxAcceptedHTLCs:      ev.LocalParams.Constraints.MaxAcceptedHtlcs,
		FundingKey:            ev.LocalParams.FundingPubKey,
		RevocationPoint:       ev.LocalParams.RevocationBasePoint,
		PaymentPoint:          ev.LocalParams.PaymentBasePoint,
		DelayedPaymentPoint:   ev.LocalParams.DelayedPaymentBasePoint,
		HtlcPoint:             ev.LocalParams.HtlcBasePoint,
		FirstCommitmentPoint:  firstPoint,
		ChannelFlags:          lnwire.FundingFlag(ev.ChannelFlags),
		UpfrontShutdownScript: next.PendingOpen.UpfrontShutdownScript,
	}
	return next, []Action{SendMessage{Message: msg}}, nil
}

// stepWaitForOpenChannel handles the fundee's receipt of open_channel
// (§4.1 WaitForOpenChannel -> WaitForFundingCreated).
func stepWaitForOpenChannel(state State, event Event, deps Deps) (State, []Action, error) {
	ev, ok := event.(MessageReceived)
	if !ok {
		return state, nil, nil
	}
	open, ok := ev.Message.(*lnwire.OpenChannel)
	if !ok {
		return state, nil, nil
	}

	openParams := helpers.OpenParams{
		FundingSat:       btcutil.Amount(open.FundingAmount),
		DustLimit:        btcutil.Amount(open.DustLimit),
		ChannelReserve:   btcutil.Amount(open.ChannelReserve),
		MaxAcceptedHtlcs: open.MaxAcceptedHTLCs,
		ToSelfDelay:      open.CsvDelay,
		FeePerKw:         btcutil.Amount(open.FeePerKiloWeight),
	}

	currentFeePerKw := openParams.FeePerKw
	if state.StaticParams.FeePolicy != nil {
		if fee, err := state.StaticParams.FeePolicy.EstimateFeePerKw(openConfTarget); err == nil {
			currentFeePerKw = fee
		}
	}

	if err := helpers.ValidateParamsFundee(state.StaticParams, openParams, currentFeePerKw); err != nil {
		return state, nil, err
	}

	firstPoint, err := deps.KeyManager.DeriveNextCommitmentPoint(state.PendingOpen.LocalParams.FundingKeyPath, 0)
	if err != nil {
		return state, nil, err
	}

	next := state
	next.TempChannelID = open.TemporaryChanID
	next.IsFunder = false
	next.PendingOpen.FundingSatoshis = open.FundingAmount
	next.PendingOpen.PushMsat = open.PushAmount
	next.PendingOpen.FeePerKw = open.FeePerKiloWeight
	next.PendingOpen.RemoteParams = channeldb.RemoteParams{
		Constraints: channeldb.ChannelConstraints{
			DustLimit:        btcutil.Amount(open.DustLimit),
			ChannelReserve:   btcutil.Amount(open.ChannelReserve),
			HtlcMinimum:      open.HtlcMinimum,
			MaxValueInFlight: open.MaxValueInFlight,
			MaxAcceptedHtlcs: open.MaxAcceptedHTLCs,
			ToSelfDelay:      open.CsvDelay,
		},
		FundingPubKey:           open.FundingKey,
		RevocationBasePoint:     open.RevocationPoint,
		PaymentBasePoint:        open.PaymentPoint,
		DelayedPaymentBasePoint: open.DelayedPaymentPoint,
		HtlcBasePoint:           open.HtlcPoint,
	}
	next.RemoteFirstCommitmentPoint = open.FirstCommitmentPoint
	next.LocalFirstCommitmentPoint = firstPoint
	next.MinDepth = helpers.MinDepthForFunding(state.StaticParams.MinDepthBlocks, btcutil.Amount(open.FundingAmount))
	next.Tag = WaitForFundingCreated

	accept := &lnwire.AcceptChannel{
		TemporaryChanID:       open.TemporaryChanID,
		DustLimit:             int64(state.PendingOpen.LocalParams.Constraints.DustLimit),
		MaxValueInFlight:      state.PendingOpen.LocalParams.Constraints.MaxValueInFlight,
		ChannelReserve:        int64(state.PendingOpen.LocalParams.Constraints.ChannelReserve),
		HtlcMinimum:           state.PendingOpen.LocalParams.Constraints.HtlcMinimum,
		MinAcceptDepth:        next.MinDepth,
		CsvDelay:              state.PendingOpen.LocalParams.Constraints.ToSelfDelay,
		MaxAcceptedHTLCs:      state.PendingOpen.LocalParams.Constraints.MaxAcceptedHtlcs,
		FundingKey:            state.PendingOpen.LocalParams.FundingPubKey,
		RevocationPoint:       state.PendingOpen.LocalParams.RevocationBasePoint,
		PaymentPoint:          state.PendingOpen.LocalParams.PaymentBasePoint,
		DelayedPaymentPoint:   state.PendingOpen.LocalParams.DelayedPaymentBasePoint,
		HtlcPoint:             state.PendingOpen.LocalParams.HtlcBasePoint,
		FirstCommitmentPoint:  firstPoint,
		UpfrontShutdownScript: state.PendingOpen.UpfrontShutdownScript,
	}
	return next, []Action{SendMessage{Message: accept}}, nil
}

// stepWaitForAcceptChannel handles the funder's receipt of accept_channel
// (§4.1 WaitForAcceptChannel -> WaitForFundingInternal). It needs no
// collaborator beyond what is already in state: the funding-transaction
// construction itself is handed off to the wallet via MakeFundingTx.
func stepWaitForAcceptChannel(state State, event Event) (State, []Action, error) {
	ev, ok := event.(MessageReceived)
	if !ok {
		return state, nil, nil
	}
	accept, ok := ev.Message.(*lnwire.AcceptChannel)
	if !ok {
		return state, nil, nil
	}

	openParams := helpers.OpenParams{
		FundingSat:       btcutil.Amount(state.PendingOpen.FundingSatoshis),
		DustLimit:        btcutil.Amount(state.PendingOpen.LocalParams.Constraints.DustLimit),
		ChannelReserve:   btcutil.Amount(state.PendingOpen.LocalParams.Constraints.ChannelReserve),
		MaxAcceptedHtlcs: state.PendingOpen.LocalParams.Constraints.MaxAcceptedHtlcs,
		ToSelfDelay:      state.PendingOpen.LocalParams.Constraints.ToSelfDelay,
		FeePerKw:         btcutil.Amount(state.PendingOpen.FeePerKw),
	}
	acceptParams := helpers.OpenParams{
		FundingSat:       btcutil.Amount(state.PendingOpen.FundingSatoshis),
		DustLimit:        btcutil.Amount(accept.DustLimit),
		ChannelReserve:   btcutil.Amount(accept.ChannelReserve),
		MaxAcceptedHtlcs: accept.MaxAcceptedHTLCs,
		ToSelfDelay:      accept.CsvDelay,
		FeePerKw:         openParams.FeePerKw,
	}

	if err := helpers.ValidateParamsFunder(state.StaticParams, openParams, acceptParams,
		state.ChannelVersion.IsZeroReserve()); err != nil {
		return state, nil, err
	}

	next := state
	next.PendingOpen.RemoteParams = channeldb.RemoteParams{
		Constraints: channeldb.ChannelConstraints{
			DustLimit:        btcutil.Amount(accept.DustLimit),
			ChannelReserve:   btcutil.Amount(accept.ChannelReserve),
			HtlcMinimum:      accept.HtlcMinimum,
			MaxValueInFlight: accept.MaxValueInFlight,
			MaxAcceptedHtlcs: accept.MaxAcceptedHTLCs,
			ToSelfDelay:      accept.CsvDelay,
		},
		FundingPubKey:           accept.FundingKey,
		RevocationBasePoint:     accept.RevocationPoint,
		PaymentBasePoint:        accept.PaymentPoint,
		DelayedPaymentBasePoint: accept.DelayedPaymentPoint,
		HtlcBasePoint:           accept.HtlcPoint,
	}
	next.RemoteFirstCommitmentPoint = accept.FirstCommitmentPoint
	next.MinDepth = accept.MinAcceptDepth
	next.Tag = WaitForFundingInternal

	makeTx := MakeFundingTx{
		FundingSatoshis:  state.PendingOpen.FundingSatoshis,
		LocalFundingKey:  state.PendingOpen.LocalParams.FundingPubKey.SerializeCompressed(),
		RemoteFundingKey: accept.FundingKey.SerializeCompressed(),
	}
	return next, []Action{makeTx}, nil
}

// stepWaitForFundingInternal handles the wallet's response to MakeFundingTx
// (§4.1 WaitForFundingInternal -> WaitForFundingSigned). It signs the
// fundee's initial commitment and sends funding_created.
func stepWaitForFundingInternal(state State, event Event, deps Deps) (State, []Action, error) {
	ev, ok := event.(MakeFundingTxResponse)
	if !ok {
		return state, nil, nil
	}

	commitInput := commitments.CommitInput{
		Outpoint: ev.FundingOutpoint,
		Value:    btcutil.Amount(state.PendingOpen.FundingSatoshis),
	}
	commitWeight := deps.CommitBuilder.CommitWeight(0, state.ChannelVersion.HasAnchors())

	localSpec, remoteSpec, err := helpers.FirstCommitSpecs(true, btcutil.Amount(state.PendingOpen.FundingSatoshis),
		state.PendingOpen.PushMsat, btcutil.Amount(state.PendingOpen.FeePerKw),
		state.PendingOpen.RemoteParams.Constraints.ChannelReserve, commitWeight)
	if err != nil {
		return state, nil, err
	}

	remoteCommitTx, err := deps.CommitBuilder.BuildCommitment(commitInput, remoteSpec, 0,
		state.RemoteFirstCommitmentPoint, false, false)
	if err != nil {
		return state, nil, err
	}

	commitSig, _, err := deps.CommitBuilder.SignCommitment(deps.KeyManager,
		state.PendingOpen.LocalParams.FundingKeyLoc, remoteCommitTx, remoteSpec)
	if err != nil {
		return state, nil, err
	}

	c := commitments.Commitments{
		ChannelID:      state.TempChannelID,
		ChannelVersion: state.ChannelVersion,
		ChannelFlags:   state.ChannelFlags,
		LocalParams:    state.PendingOpen.LocalParams,
		RemoteParams:   state.PendingOpen.RemoteParams,
		LocalCommit:    commitments.Commitment{Index: 0, Spec: localSpec},
		RemoteCommit: commitments.Commitment{
			Index: 0, Spec: remoteSpec, Tx: remoteCommitTx,
			RemotePerCommitPoint: state.RemoteFirstCommitmentPoint,
		},
		CommitInput: commitInput,
		IsFunder:    true,
	}

	next := state
	next.Tag = WaitForFundingSigned
	next.FundingOutpoint = &ev.FundingOutpoint
	next.FundingTx = ev.FundingTx
	next.Commitments = &c

	fundingCreated := &lnwire.FundingCreated{
		TemporaryChanID:    state.TempChannelID,
		FundingTxID:        ev.FundingOutpoint.Hash,
		FundingOutputIndex: uint16(ev.FundingOutpoint.Index),
		CommitSig:          commitSig,
	}

	return next, []Action{
		StoreState{ChannelID: next.TempChannelID, Data: encodeState(next)},
		SendMessage{Message: fundingCreated},
	}, nil
}

// stepWaitForFundingCreated handles the fundee's receipt of funding_created
// (§4.1 WaitForFundingCreated -> WaitForFundingConfirmed).
func stepWaitForFundingCreated(state State, event Event, deps Deps) (State, []Action, error) {
	ev, ok := event.(MessageReceived)
	if !ok {
		return state, nil, nil
	}
	msg, ok := ev.Message.(*lnwire.FundingCreated)
	if !ok {
		return state, nil, nil
	}

	outpoint := wire.OutPoint{Hash: msg.FundingTxID, Index: uint32(msg.FundingOutputIndex)}
	commitInput := commitments.CommitInput{
		Outpoint: outpoint,
		Value:    btcutil.Amount(state.PendingOpen.FundingSatoshis),
	}
	commitWeight := deps.CommitBuilder.CommitWeight(0, state.ChannelVersion.HasAnchors())

	localSpec, remoteSpec, err := helpers.FirstCommitSpecs(false, btcutil.Amount(state.PendingOpen.FundingSatoshis),
		state.PendingOpen.PushMsat, btcutil.Amount(state.PendingOpen.FeePerKw),
		state.PendingOpen.RemoteParams.Constraints.ChannelReserve, commitWeight)
	if err != nil {
		return state, nil, err
	}

	localCommitTx, err := deps.CommitBuilder.BuildCommitment(commitInput, localSpec, 0,
		state.LocalFirstCommitmentPoint, true, true)
	if err != nil {
		return state, nil, err
	}
	if err := deps.CommitBuilder.VerifyCommitment(state.LocalFirstCommitmentPoint, localCommitTx,
		localSpec, msg.CommitSig, nil); err != nil {
		return state, nil, chanerrs.NewProtocolError("fundingCreated", chanerrs.ErrInvalidCommitmentSignature)
	}

	remoteCommitTx, err := deps.CommitBuilder.BuildCommitment(commitInput, remoteSpec, 0,
		state.RemoteFirstCommitmentPoint, false, false)
	if err != nil {
		return state, nil, err
	}
	commitSig, _, err := deps.CommitBuilder.SignCommitment(deps.KeyManager,
		state.PendingOpen.LocalParams.FundingKeyLoc, remoteCommitTx, remoteSpec)
	if err != nil {
		return state, nil, err
	}

	chanID := lnwire.NewChanIDFromOutPoint(outpoint.Hash, uint16(outpoint.Index))

	c := commitments.Commitments{
		ChannelID:      chanID,
		ChannelVersion: state.ChannelVersion,
		ChannelFlags:   state.ChannelFlags,
		LocalParams:    state.PendingOpen.LocalParams,
		RemoteParams:   state.PendingOpen.RemoteParams,
		LocalCommit:    commitments.Commitment{Index: 0, Spec: localSpec, Tx: localCommitTx},
		RemoteCommit: commitments.Commitment{
			Index: 0, Spec: remoteSpec, Tx: remoteCommitTx,
			RemotePerCommitPoint: state.RemoteFirstCommitmentPoint,
		},
		CommitInput: commitInput,
		IsFunder:    false,
	}

	next := state
	next.Tag = WaitForFundingConfirmed
	next.ChannelID = chanID
	next.FundingOutpoint = &outpoint
	next.Commitments = &c

	fundingSigned := &lnwire.FundingSigned{ChanID: chanID, CommitSig: commitSig}

	return next, []Action{
		ChannelIdSwitch{ChannelID: chanID},
		ChannelIdAssigned{TempChannelID: state.TempChannelID, ChannelID: chanID},
		StoreState{ChannelID: chanID, Data: encodeState(next)},
		SendMessage{Message: fundingSigned},
		SendWatch{Confirmed: &chainwatch.Confirmed{
			ChannelID: chanID, TxID: outpoint.Hash, MinDepth: state.MinDepth,
			Tag: chainwatch.TagFundingDepthOK,
		}},
	}, nil
}

// stepWaitForFundingSigned handles the funder's receipt of funding_signed
// (§4.1 WaitForFundingSigned -> WaitForFundingConfirmed).
func stepWaitForFundingSigned(state State, event Event, deps Deps) (State, []Action, error) {
	ev, ok := event.(MessageReceived)
	if !ok {
		return state, nil, nil
	}
	msg, ok := ev.Message.(*lnwire.FundingSigned)
	if !ok {
		return state, nil, nil
	}

	c := *state.Commitments
	localCommitTx, err := deps.CommitBuilder.BuildCommitment(c.CommitInput, c.LocalCommit.Spec, 0,
		state.LocalFirstCommitmentPoint, true, true)
	if err != nil {
		return state, nil, err
	}
	if err := deps.CommitBuilder.VerifyCommitment(state.LocalFirstCommitmentPoint, localCommitTx,
		c.LocalCommit.Spec, msg.CommitSig, nil); err != nil {
		return state, nil, chanerrs.NewProtocolError("fundingSigned", chanerrs.ErrInvalidCommitmentSignature)
	}
	c.LocalCommit.Tx = localCommitTx

	chanID := lnwire.NewChanIDFromOutPoint(state.FundingOutpoint.Hash, uint16(state.FundingOutpoint.Index))
	c.ChannelID = chanID

	next := state
	next.Tag = WaitForFundingConfirmed
	next.ChannelID = chanID
	next.Commitments = &c

	return next, []Action{
		ChannelIdSwitch{ChannelID: chanID},
		ChannelIdAssigned{TempChannelID: state.TempChannelID, ChannelID: chanID},
		StoreState{ChannelID: chanID, Data: encodeState(next)},
		PublishTx{Tx: state.FundingTx},
		SendWatch{Confirmed: &chainwatch.Confirmed{
			ChannelID: chanID, TxID: state.FundingOutpoint.Hash, MinDepth: state.MinDepth,
			Tag: chainwatch.TagFundingDepthOK,
		}},
	}, nil
}

// stepWaitForFundingConfirmed waits for the funding tx to reach minDepth, or
// an early peer funding_locked, or the fundee-side coarse timeout (§4.1, §5,
// §6 FUNDING_TIMEOUT_FUNDEE).
func stepWaitForFundingConfirmed(state State, event Event, deps Deps) (State, []Action, error) {
	switch ev := event.(type) {
	case WatchReceived:
		if ev.Confirmed == nil || ev.Confirmed.Tag != chainwatch.TagFundingDepthOK {
			return state, nil, nil
		}
		return fundingDepthReached(state, deps)

	case MessageReceived:
		locked, ok := ev.Message.(*lnwire.FundingLocked)
		if !ok {
			return state, nil, nil
		}
		c := *state.Commitments
		c.RemoteNextCommitInfo = commitments.RemoteNextCommitInfo{Point: locked.NextPerCommitmentPoint}
		next := state
		next.Commitments = &c
		return next, nil, nil

	case NewBlock:
		if state.IsFunder {
			return state, nil, nil
		}
		next := state
		if next.WaitForFundingConfirmedSinceBlock == 0 {
			next.WaitForFundingConfirmedSinceBlock = ev.Height
			return next, nil, nil
		}
		if ev.Height-next.WaitForFundingConfirmedSinceBlock >= fundingTimeoutFundeeBlocks {
			aborted := next
			aborted.Tag = Aborted
			errMsg := &lnwire.Error{ChanID: state.ChannelID, Data: []byte("funding timed out waiting for confirmation")}
			return aborted, []Action{SendMessage{Message: errMsg}}, nil
		}
		return next, nil, nil

	default:
		return state, nil, nil
	}
}

func fundingDepthReached(state State, deps Deps) (State, []Action, error) {
	nextPoint, err := deps.KeyManager.DeriveNextCommitmentPoint(state.Commitments.LocalParams.FundingKeyPath, 1)
	if err != nil {
		return state, nil, err
	}

	next := state
	lockedMsg := lnwire.NewFundingLocked(state.ChannelID, nextPoint)

	if state.Commitments.RemoteNextCommitInfo.Point != nil {
		next.Tag = Normal
	} else {
		next.Tag = WaitForFundingLocked
	}

	return next, []Action{
		StoreState{ChannelID: next.ChannelID, Data: encodeState(next)},
		SendMessage{Message: lockedMsg},
	}, nil
}

// stepWaitForFundingLocked waits for the peer's funding_locked (§4.1
// WaitForFundingLocked -> Normal). It needs no collaborator: everything it
// touches is already in state.
func stepWaitForFundingLocked(state State, event Event) (State, []Action, error) {
	ev, ok := event.(MessageReceived)
	if !ok {
		return state, nil, nil
	}
	locked, ok := ev.Message.(*lnwire.FundingLocked)
	if !ok {
		return state, nil, nil
	}

	c := *state.Commitments
	c.RemoteNextCommitInfo = commitments.RemoteNextCommitInfo{Point: locked.NextPerCommitmentPoint}

	next := state
	next.Tag = Normal
	next.Commitments = &c

	return next, []Action{StoreState{ChannelID: next.ChannelID, Data: encodeState(next)}}, nil
}
