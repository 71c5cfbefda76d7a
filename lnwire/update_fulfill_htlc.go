package lnwire

import "io"

// UpdateFulfillHTLC is sent by the receiving party when it wishes to settle
// a particular HTLC referenced by its ID within the channel identified by
// ChanID. A subsequent CommitSig locks the removal in; receiveFulfill (§4.2)
// verifies PaymentPreimage against the originating add's payment hash before
// the change is admitted to the local change log.
type UpdateFulfillHTLC struct {
	// ChanID references the channel holding the HTLC to be settled.
	ChanID ChannelID

	// ID is the htlc id assigned by the add's sender.
	ID uint64

	// PaymentPreimage is the preimage required to fully settle the HTLC.
	PaymentPreimage PaymentPreimage
}

// NewUpdateFulfillHTLC returns a new UpdateFulfillHTLC message.
func NewUpdateFulfillHTLC(chanID ChannelID, id uint64,
	preimage PaymentPreimage) *UpdateFulfillHTLC {

	return &UpdateFulfillHTLC{
		ChanID:          chanID,
		ID:              id,
		PaymentPreimage: preimage,
	}
}

var _ Message = (*UpdateFulfillHTLC)(nil)

// Decode is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChanID,
		&c.ID,
		c.PaymentPreimage[:],
	)
}

// Encode is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.ID,
		c.PaymentPreimage[:],
	)
}

// MsgType is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) MsgType() MessageType {
	return MsgUpdateFulfillHTLC
}

// MaxPayloadLength is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) MaxPayloadLength(uint32) uint32 {
	// ChanID (32) + ID (8) + PaymentPreimage (32)
	return 72
}
