package commitments

import (
	"crypto/sha256"

	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// SendAdd appends a locally-originated HTLC to our proposed change log and
// returns the update_add_htlc to send (§4.2 "sendAdd(cmd, payment-id,
// current-block-height)"). It does not touch either commitment; the HTLC
// only becomes binding once both sides have signed and revoked past it.
func (c Commitments) SendAdd(amount lnwire.MilliSatoshi, hash lnwire.PaymentHash,
	cltvExpiry uint32, onionBlob [1366]byte, paymentID uint64, currentBlockHeight uint32) (Commitments, lnwire.UpdateAddHTLC, error) {

	if cltvExpiry < currentBlockHeight+c.RemoteParams.Constraints.MinCltvExpiryDelta {
		return c, lnwire.UpdateAddHTLC{}, chanerrs.NewProtocolError("sendAdd", chanerrs.ErrExpiryTooSmall)
	}
	if cltvExpiry > currentBlockHeight+c.RemoteParams.Constraints.MaxCltvExpiryDelta {
		return c, lnwire.UpdateAddHTLC{}, chanerrs.NewProtocolError("sendAdd", chanerrs.ErrExpiryTooBig)
	}
	if amount < c.RemoteParams.Constraints.HtlcMinimum {
		return c, lnwire.UpdateAddHTLC{}, chanerrs.NewProtocolError("sendAdd", chanerrs.ErrHtlcValueTooSmall)
	}
	if uint16(len(c.pendingOutgoingHtlcs())) >= c.RemoteParams.Constraints.MaxAcceptedHtlcs {
		return c, lnwire.UpdateAddHTLC{}, chanerrs.NewProtocolError("sendAdd", chanerrs.ErrTooManyAcceptedHtlcs)
	}
	if c.exceedsMaxValueInFlight(amount) {
		return c, lnwire.UpdateAddHTLC{}, chanerrs.NewProtocolError("sendAdd", chanerrs.ErrHtlcValueTooHighInFlight)
	}
	if c.insufficientFunds(amount) {
		return c, lnwire.UpdateAddHTLC{}, chanerrs.NewProtocolError("sendAdd", chanerrs.ErrInsufficientFunds)
	}

	htlcID := c.LocalNextHtlcID
	entry := Htlc{
		ID:          htlcID,
		Type:        Add,
		Amount:      amount,
		PaymentHash: hash,
		CltvExpiry:  cltvExpiry,
		Incoming:    false,
		OnionBlob:   onionBlob,
		PaymentID:   paymentID,
	}

	c.LocalChanges.Proposed = append(c.LocalChanges.Proposed, entry)
	c.LocalNextHtlcID++
	if c.OriginMap == nil {
		c.OriginMap = make(map[uint64]uint64)
	}
	c.OriginMap[htlcID] = paymentID

	msg := lnwire.UpdateAddHTLC{
		ChanID:      c.ChannelID,
		ID:          htlcID,
		Amount:      amount,
		PaymentHash: hash,
		Expiry:      cltvExpiry,
		OnionBlob:   onionBlob,
	}
	return c, msg, nil
}

// ReceiveAdd records a remotely-originated update_add_htlc into our remote
// change log (§4.2 "receiveAdd"). Constraint checks mirror SendAdd from the
// other side: a remote party breaking these is a protocol violation, not a
// local policy decision, hence the distinct op name.
func (c Commitments) ReceiveAdd(msg lnwire.UpdateAddHTLC, currentBlockHeight uint32) (Commitments, error) {
	if msg.ID != c.RemoteNextHtlcID {
		return c, chanerrs.NewProtocolError("receiveAdd", chanerrs.ErrUnknownHtlcId)
	}
	if msg.Expiry < currentBlockHeight+c.LocalParams.Constraints.MinCltvExpiryDelta {
		return c, chanerrs.NewProtocolError("receiveAdd", chanerrs.ErrExpiryTooSmall)
	}
	if msg.Expiry > currentBlockHeight+c.LocalParams.Constraints.MaxCltvExpiryDelta {
		return c, chanerrs.NewProtocolError("receiveAdd", chanerrs.ErrExpiryTooBig)
	}
	if msg.Amount < c.LocalParams.Constraints.HtlcMinimum {
		return c, chanerrs.NewProtocolError("receiveAdd", chanerrs.ErrHtlcValueTooSmall)
	}
	if uint16(len(c.pendingIncomingHtlcs())) >= c.LocalParams.Constraints.MaxAcceptedHtlcs {
		return c, chanerrs.NewProtocolError("receiveAdd", chanerrs.ErrTooManyAcceptedHtlcs)
	}
	if c.remoteInsufficientFunds(msg.Amount) {
		return c, chanerrs.NewProtocolError("receiveAdd", chanerrs.ErrInsufficientFunds)
	}

	entry := Htlc{
		ID:          msg.ID,
		Type:        Add,
		Amount:      msg.Amount,
		PaymentHash: msg.PaymentHash,
		CltvExpiry:  msg.Expiry,
		Incoming:    true,
		OnionBlob:   msg.OnionBlob,
	}
	c.RemoteChanges.Proposed = append(c.RemoteChanges.Proposed, entry)
	c.RemoteNextHtlcID++
	return c, nil
}

// SendFulfill settles htlcID with preimage (§4.2 "sendFulfill"). The Add
// entry being settled must already be on an acked commitment on both sides
// (it is found by scanning the acked portion of the remote log, since that
// is the log the original Add entry — incoming to us — lives in).
func (c Commitments) SendFulfill(htlcID uint64, preimage lnwire.PaymentPreimage) (Commitments, lnwire.UpdateFulfillHTLC, error) {
	add, err := c.findAckedIncoming(htlcID)
	if err != nil {
		return c, lnwire.UpdateFulfillHTLC{}, err
	}
	if add.PaymentHash != sha256Of(preimage) {
		return c, lnwire.UpdateFulfillHTLC{}, chanerrs.NewProtocolError("sendFulfill", chanerrs.ErrInvalidHtlcPreimage)
	}

	c.LocalChanges.Proposed = append(c.LocalChanges.Proposed, Htlc{
		ID:       htlcID,
		Type:     Fulfill,
		ParentID: htlcID,
		Preimage: preimage,
	})
	msg := lnwire.UpdateFulfillHTLC{
		ChanID:          c.ChannelID,
		ID:              htlcID,
		PaymentPreimage: preimage,
	}
	return c, msg, nil
}

// ReceiveFulfill records the remote's update_fulfill_htlc for an HTLC we
// originated (§4.2 "receiveFulfill").
func (c Commitments) ReceiveFulfill(msg lnwire.UpdateFulfillHTLC) (Commitments, lnwire.PaymentPreimage, uint64, error) {
	add, err := c.findAckedOutgoing(msg.ID)
	if err != nil {
		return c, lnwire.PaymentPreimage{}, 0, err
	}
	if add.PaymentHash != sha256Of(msg.PaymentPreimage) {
		return c, lnwire.PaymentPreimage{}, 0, chanerrs.NewProtocolError("receiveFulfill", chanerrs.ErrInvalidHtlcPreimage)
	}

	c.RemoteChanges.Proposed = append(c.RemoteChanges.Proposed, Htlc{
		ID:       msg.ID,
		Type:     Fulfill,
		ParentID: msg.ID,
		Preimage: msg.PaymentPreimage,
	})
	return c, msg.PaymentPreimage, c.OriginMap[msg.ID], nil
}

// SendFail fails htlcID with an opaque, already-onion-wrapped reason (§4.2
// "sendFail"). Constructing the wrapped reason from a FailureMessage is a
// wire-crypto concern left to the caller (§1 onion construction out of
// scope); this function only records the already-built blob.
func (c Commitments) SendFail(htlcID uint64, reason []byte) (Commitments, lnwire.UpdateFailHTLC, error) {
	if _, err := c.findAckedIncoming(htlcID); err != nil {
		return c, lnwire.UpdateFailHTLC{}, err
	}

	c.LocalChanges.Proposed = append(c.LocalChanges.Proposed, Htlc{
		ID:         htlcID,
		Type:       Fail,
		ParentID:   htlcID,
		FailReason: reason,
	})
	msg := lnwire.UpdateFailHTLC{
		ChanID: c.ChannelID,
		ID:     htlcID,
		Reason: reason,
	}
	return c, msg, nil
}

// ReceiveFail records the remote's update_fail_htlc for an HTLC we
// originated (§4.2 "receiveFail").
func (c Commitments) ReceiveFail(msg lnwire.UpdateFailHTLC) (Commitments, uint64, error) {
	if _, err := c.findAckedOutgoing(msg.ID); err != nil {
		return c, 0, err
	}
	c.RemoteChanges.Proposed = append(c.RemoteChanges.Proposed, Htlc{
		ID:         msg.ID,
		Type:       Fail,
		ParentID:   msg.ID,
		FailReason: msg.Reason,
	})
	return c, c.OriginMap[msg.ID], nil
}

// SendFailMalformed fails htlcID citing a malformed onion, quoting the
// sha256 and failure code the sender observed (§4.2 "sendFailMalformed").
func (c Commitments) SendFailMalformed(htlcID uint64, sha256 [32]byte, failureCode uint16) (Commitments, lnwire.UpdateFailMalformedHTLC, error) {
	if _, err := c.findAckedIncoming(htlcID); err != nil {
		return c, lnwire.UpdateFailMalformedHTLC{}, err
	}
	c.LocalChanges.Proposed = append(c.LocalChanges.Proposed, Htlc{
		ID:       htlcID,
		Type:     FailMalformed,
		ParentID: htlcID,
	})
	msg := lnwire.UpdateFailMalformedHTLC{
		ChanID:       c.ChannelID,
		ID:           htlcID,
		ShaOnionBlob: sha256,
		FailureCode:  failureCode,
	}
	return c, msg, nil
}

// ReceiveFailMalformed records the remote's update_fail_malformed_htlc
// (§4.2 "receiveFailMalformed").
func (c Commitments) ReceiveFailMalformed(msg lnwire.UpdateFailMalformedHTLC) (Commitments, uint64, error) {
	if _, err := c.findAckedOutgoing(msg.ID); err != nil {
		return c, 0, err
	}
	c.RemoteChanges.Proposed = append(c.RemoteChanges.Proposed, Htlc{
		ID:       msg.ID,
		Type:     FailMalformed,
		ParentID: msg.ID,
	})
	return c, c.OriginMap[msg.ID], nil
}

func (c Commitments) pendingOutgoingHtlcs() []Htlc {
	var out []Htlc
	for _, h := range c.LocalChanges.Proposed {
		if h.Type == Add && !h.Incoming {
			out = append(out, h)
		}
	}
	return out
}

func (c Commitments) pendingIncomingHtlcs() []Htlc {
	var out []Htlc
	for _, h := range c.RemoteChanges.Proposed {
		if h.Type == Add && h.Incoming {
			out = append(out, h)
		}
	}
	return out
}

// exceedsMaxValueInFlight reports whether adding amount would push the
// total value of our offered, not-yet-failed HTLCs past the remote's
// advertised ceiling (§4.2, §4.4).
func (c Commitments) exceedsMaxValueInFlight(amount lnwire.MilliSatoshi) bool {
	total := amount
	for _, h := range c.pendingOutgoingHtlcs() {
		total += h.Amount
	}
	for _, h := range c.LocalCommit.Spec.Htlcs {
		if !h.Incoming {
			total += h.Amount
		}
	}
	return total > c.RemoteParams.Constraints.MaxValueInFlight
}

// insufficientFunds reports whether offering amount as a new outgoing htlc
// would push our own to_local balance below the reserve the remote requires
// of us (§4.2, mirrors AboveReserve from the sender's side).
func (c Commitments) insufficientFunds(amount lnwire.MilliSatoshi) bool {
	reserve := lnwire.MilliSatoshi(c.RemoteParams.Constraints.ChannelReserve) * 1000
	return c.LocalCommit.Spec.ToLocal < amount+reserve
}

// remoteInsufficientFunds is receiveAdd's mirror of insufficientFunds: it
// checks the remote's own balance against the reserve we require of them.
func (c Commitments) remoteInsufficientFunds(amount lnwire.MilliSatoshi) bool {
	reserve := lnwire.MilliSatoshi(c.LocalParams.Constraints.ChannelReserve) * 1000
	return c.LocalCommit.Spec.ToRemote < amount+reserve
}

func (c Commitments) findAckedIncoming(htlcID uint64) (Htlc, error) {
	for _, h := range c.RemoteChanges.Acked {
		if h.Type == Add && h.ID == htlcID && h.Incoming {
			return h, nil
		}
	}
	return Htlc{}, chanerrs.NewProtocolError("findAckedIncoming", chanerrs.ErrUnknownHtlcId)
}

func (c Commitments) findAckedOutgoing(htlcID uint64) (Htlc, error) {
	for _, h := range c.LocalChanges.Acked {
		if h.Type == Add && h.ID == htlcID && !h.Incoming {
			return h, nil
		}
	}
	return Htlc{}, chanerrs.NewProtocolError("findAckedOutgoing", chanerrs.ErrUnknownHtlcId)
}

// sha256Of hashes a payment preimage for comparison against a PaymentHash.
func sha256Of(preimage lnwire.PaymentPreimage) lnwire.PaymentHash {
	return lnwire.PaymentHash(sha256.Sum256(preimage[:]))
}
