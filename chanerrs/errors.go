// Package chanerrs collects the error values the channel core can return.
//
// Following the shape of lnd's channeldb.Err* block, most failures are flat
// sentinel values. Protocol-level failures additionally carry a Kind so the
// dispatcher can decide policy (§7 of the spec) without string matching.
package chanerrs

import "fmt"

// Kind classifies a ProtocolError for dispatcher policy purposes.
type Kind uint8

const (
	// KindValidation covers errors raised before a channel has
	// commitments (open/accept-channel parameter validation). Policy:
	// reply with an error message and transition to Aborted.
	KindValidation Kind = iota

	// KindProtocol covers errors raised against an operating channel
	// (commitment/HTLC flow-control violations). Policy: spendLocalCurrent
	// and send an error message.
	KindProtocol

	// KindClosingFlow covers errors confined to the mutual-close
	// negotiation. Policy: HandleCommandFailed, no state change.
	KindClosingFlow

	// KindStructural covers invariant violations that leave the state
	// machine unable to continue safely. Policy: ErrorInformationLeak.
	KindStructural
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProtocol:
		return "protocol"
	case KindClosingFlow:
		return "closing-flow"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// ProtocolError is a typed failure the FSM dispatcher inspects to decide
// what happens to the channel (§7). The Kind is set once at the error's
// construction site and never changes as the error travels up the stack.
type ProtocolError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewValidationError wraps err as a KindValidation ProtocolError.
func NewValidationError(op string, err error) *ProtocolError {
	return &ProtocolError{Kind: KindValidation, Op: op, Err: err}
}

// NewProtocolError wraps err as a KindProtocol ProtocolError.
func NewProtocolError(op string, err error) *ProtocolError {
	return &ProtocolError{Kind: KindProtocol, Op: op, Err: err}
}

// NewClosingFlowError wraps err as a KindClosingFlow ProtocolError.
func NewClosingFlowError(op string, err error) *ProtocolError {
	return &ProtocolError{Kind: KindClosingFlow, Op: op, Err: err}
}

// NewStructuralError wraps err as a KindStructural ProtocolError.
func NewStructuralError(op string, err error) *ProtocolError {
	return &ProtocolError{Kind: KindStructural, Op: op, Err: err}
}

// Validation errors (§7): raised before a channel has commitments.
var (
	ErrDustLimitTooSmall           = fmt.Errorf("dust limit too small")
	ErrDustLimitTooLarge           = fmt.Errorf("dust limit too large")
	ErrChannelReserveBelowOurDust  = fmt.Errorf("channel reserve below our dust limit")
	ErrToSelfDelayTooHigh          = fmt.Errorf("to_self_delay too high")
	ErrInvalidMaxAcceptedHtlcs     = fmt.Errorf("invalid max_accepted_htlcs")
	ErrChannelReserveTooHigh       = fmt.Errorf("channel reserve too high relative to funding")
	ErrDustLimitAboveOurReserve    = fmt.Errorf("dust limit above our channel reserve")
	ErrCannotAffordFees            = fmt.Errorf("funder cannot afford fees for first commitment")
	ErrNonZeroPushAmountNotAllowed = fmt.Errorf("non-zero push amount not allowed for this channel type")
)

// Protocol errors (§7): raised against an operating channel.
var (
	ErrInvalidCommitmentSignature = fmt.Errorf("invalid commitment signature")
	ErrExpiryTooSmall             = fmt.Errorf("htlc expiry too small")
	ErrExpiryTooBig               = fmt.Errorf("htlc expiry too big")
	ErrHtlcValueTooSmall          = fmt.Errorf("htlc value below minimum")
	ErrHtlcValueTooHighInFlight   = fmt.Errorf("htlc value too high in flight")
	ErrTooManyAcceptedHtlcs       = fmt.Errorf("too many accepted htlcs")
	ErrInsufficientFunds          = fmt.Errorf("insufficient funds for htlc")
	ErrFeerateTooDifferent        = fmt.Errorf("feerate too different from our view")
	ErrUnknownHtlcId              = fmt.Errorf("unknown htlc id")
	ErrInvalidHtlcPreimage        = fmt.Errorf("invalid htlc preimage")
	ErrCannotSignBeforeRevocation = fmt.Errorf("cannot sign, revocation window exhausted")
	ErrCannotSignWithoutChanges   = fmt.Errorf("cannot sign, no changes to commit")
	ErrRevocationSyncError        = fmt.Errorf("unable to synchronize commitment chains")
	ErrFundeeCannotSendFee        = fmt.Errorf("fundee cannot initiate a fee update")
	ErrNonFunderSentFee           = fmt.Errorf("received update_fee from non-funder")
)

// Closing-flow errors (§7): surfaced without changing state.
var (
	ErrClosingAlreadyInProgress          = fmt.Errorf("closing negotiation already in progress")
	ErrCannotCloseWithUnsignedOutgoing   = fmt.Errorf("cannot close with unsigned outgoing htlcs")
	ErrInvalidFinalScript                = fmt.Errorf("invalid final script pubkey")
	ErrNoMoreHtlcsClosingInProgress      = fmt.Errorf("cannot add htlc, closing already in progress")
	ErrChannelNotNegotiatingMutualClose  = fmt.Errorf("channel is not in a mutual close negotiation")
)

// Structural errors (§7): invariant violations.
var (
	ErrFundingSpentByUnrecognizedTx = fmt.Errorf("funding output spent by unrecognized transaction")
	ErrImpossibleRemoteCommitInfo   = fmt.Errorf("remote next commit info in an impossible shape")
)
