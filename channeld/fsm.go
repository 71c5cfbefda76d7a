package channeld

import (
	"fmt"

	"github.com/btcsuite/btclog"
	goerrors "github.com/go-errors/errors"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// log is this package's sub-system logger, installed the way the teacher's
// packages install a btclog.Logger (see lnwallet's log.go convention):
// a package-level Disabled logger by default, swapped for a real one by
// the host process via UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) { log = logger }

// fundingTimeoutFundeeBlocks is FUNDING_TIMEOUT_FUNDEE (§6): five days,
// expressed in blocks at the target spacing.
const fundingTimeoutFundeeBlocks = 5 * 144

// stampWaitingSince records, the first time cs enters a closing-related
// flow, the wall-clock time at which it did so (§3 "waiting-since
// timestamp"). Later calls on the same cs are no-ops: the timestamp marks
// when waiting began, not when it was last observed.
func stampWaitingSince(cs *closing.State, deps Deps) {
	if cs.WaitingSinceUnixSec != 0 || deps.Clock == nil {
		return
	}
	cs.WaitingSinceUnixSec = deps.Clock.Now().Unix()
}

// Process is the top-level entry point (§2, §4.1): it wraps processInternal
// with panic recovery (the only place a raise-like escape hatch is caught,
// per §9's redesign note — "purely for defensive programming, not for
// control flow") and, on success, runs the backup-attachment
// post-processing pass (§4.1 "Post-processing").
func Process(state State, event Event, deps Deps, backup Backup) (next State, actions []Action) {
	defer func() {
		if r := recover(); r != nil {
			err := goerrors.Wrap(fmt.Errorf("panic in processInternal: %v", r), 1)
			log.Criticalf("recovered panic processing %T on %s: %s",
				event, state.Tag, err.ErrorStack())
			next, actions = handleLocalError(state, deps, err)
		}
	}()

	next, actions, err := processInternal(state, event, deps)
	if err != nil {
		if pe, ok := err.(*chanerrs.ProtocolError); ok && pe.Kind == chanerrs.KindStructural {
			return classifyAndHandle(state, deps, nil, err)
		}
		return handleLocalError(state, deps, err)
	}

	actions = attachBackups(state, next, actions, backup)
	return next, actions
}

// processInternal is the pure `step(state, event) -> (state', actions)`
// function (§2). A state tag with no step function is logged and returns
// (state, nil) unchanged; an event that a step function does not handle
// also returns (state, nil) unchanged, but without a log line.
func processInternal(state State, event Event, deps Deps) (State, []Action, error) {
	if nb, ok := event.(NewBlock); ok {
		state.CurrentHeight = nb.Height
	}

	if state.Phase == Offline {
		return stepOffline(state, event, deps)
	}
	if state.Phase == Syncing {
		return stepSyncing(state, event, deps)
	}

	switch state.Tag {
	case WaitForInit:
		return stepWaitForInit(state, event, deps)
	case WaitForOpenChannel:
		return stepWaitForOpenChannel(state, event, deps)
	case WaitForAcceptChannel:
		return stepWaitForAcceptChannel(state, event)
	case WaitForFundingInternal:
		return stepWaitForFundingInternal(state, event, deps)
	case WaitForFundingCreated:
		return stepWaitForFundingCreated(state, event, deps)
	case WaitForFundingSigned:
		return stepWaitForFundingSigned(state, event, deps)
	case WaitForFundingConfirmed:
		return stepWaitForFundingConfirmed(state, event, deps)
	case WaitForFundingLocked:
		return stepWaitForFundingLocked(state, event)
	case Normal:
		return stepNormal(state, event, deps)
	case ShuttingDown:
		return stepShuttingDown(state, event, deps)
	case Negotiating:
		return stepNegotiating(state, event, deps)
	case ClosingTag:
		return stepClosing(state, event, deps)
	case WaitForRemotePublishFutureCommitment:
		return stepWaitForRemotePublishFutureCommitment(state, event, deps)
	case Closed, Aborted, ErrorInformationLeak:
		log.Debugf("ignoring %T on terminal state %s", event, state.Tag)
		return state, nil, nil
	default:
		log.Warnf("unhandled event %T on state %s", event, state.Tag)
		return state, nil, nil
	}
}

// handleLocalError implements §4.1's canonical mapping / §7's propagation
// rule (c): no commitments -> Aborted; nothing at stake -> Aborted + error
// message; otherwise spendLocalCurrent + error message. It always receives
// the PRE-event state (§5 "Failure isolation").
func handleLocalError(state State, deps Deps, err error) (State, []Action) {
	chanID := state.ChannelID
	if state.ChannelID == (lnwire.ChannelID{}) {
		chanID = state.TempChannelID
	}
	errMsg := &lnwire.Error{ChanID: chanID, Data: []byte(err.Error())}

	if !state.HasCommitments() {
		aborted := state
		aborted.Tag = Aborted
		return aborted, []Action{
			SendMessage{Message: errMsg},
			ProcessLocalFailure{Err: err},
		}
	}

	if state.NothingAtStake() {
		aborted := state
		aborted.Tag = Aborted
		return aborted, []Action{
			SendMessage{Message: errMsg},
			ProcessLocalFailure{Err: err},
		}
	}

	closingState, actions := spendLocalCurrent(state, deps)
	actions = append(actions, SendMessage{Message: errMsg}, ProcessLocalFailure{Err: err})
	return closingState, actions
}

// classifyAndHandle routes an error returned by a sub-component (commitments
// or closing) according to its chanerrs.Kind (§7).
func classifyAndHandle(state State, deps Deps, cmd Command, err error) (State, []Action) {
	var protoErr *chanerrs.ProtocolError
	if pe, ok := err.(*chanerrs.ProtocolError); ok {
		protoErr = pe
	}

	if protoErr == nil {
		return handleLocalError(state, deps, err)
	}

	switch protoErr.Kind {
	case chanerrs.KindValidation:
		return handleLocalError(state, deps, err)
	case chanerrs.KindProtocol:
		return handleLocalError(state, deps, err)
	case chanerrs.KindClosingFlow:
		return state, []Action{HandleCommandFailed{Command: cmd, Err: err}}
	case chanerrs.KindStructural:
		leaked := state
		leaked.Tag = ErrorInformationLeak
		log.Criticalf("structural invariant violated: %s", err)
		return leaked, []Action{ProcessLocalFailure{Err: err}}
	default:
		return handleLocalError(state, deps, err)
	}
}
