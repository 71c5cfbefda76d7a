package channeld

import "github.com/lightningnetwork/lnchannel/lnwire"

// Command is the closed sum of locally-initiated operations executed via
// ExecuteCommand (§4.5).
type Command interface {
	isCommand()
}

// CmdAddHTLC proposes a new outgoing HTLC. Commit, when true, causes a
// self-emitted CmdSign to be appended to the returned actions (§4.5).
type CmdAddHTLC struct {
	Amount      lnwire.MilliSatoshi
	PaymentHash lnwire.PaymentHash
	CltvExpiry  uint32
	OnionBlob   [1366]byte
	PaymentID   uint64
	Commit      bool
}

func (CmdAddHTLC) isCommand() {}

// CmdFulfillHTLC settles a previously-received incoming HTLC.
type CmdFulfillHTLC struct {
	HtlcID   uint64
	Preimage lnwire.PaymentPreimage
	Commit   bool
}

func (CmdFulfillHTLC) isCommand() {}

// CmdFailHTLC fails a previously-received incoming HTLC with an
// already-onion-wrapped reason.
type CmdFailHTLC struct {
	HtlcID uint64
	Reason []byte
	Commit bool
}

func (CmdFailHTLC) isCommand() {}

// CmdFailMalformedHTLC fails a previously-received incoming HTLC whose
// onion this node could not parse.
type CmdFailMalformedHTLC struct {
	HtlcID      uint64
	Sha256      [32]byte
	FailureCode uint16
	Commit      bool
}

func (CmdFailMalformedHTLC) isCommand() {}

// CmdSign requests a commit_sig be produced for any pending changes.
type CmdSign struct{}

func (CmdSign) isCommand() {}

// CmdUpdateFee proposes a new feerate (funder only).
type CmdUpdateFee struct {
	FeePerKw int64
}

func (CmdUpdateFee) isCommand() {}

// CmdClose requests a cooperative close, optionally pinning the
// scriptPubKey to close to.
type CmdClose struct {
	ScriptPubKey []byte
}

func (CmdClose) isCommand() {}

// CmdForceClose requests an immediate unilateral close.
type CmdForceClose struct{}

func (CmdForceClose) isCommand() {}
