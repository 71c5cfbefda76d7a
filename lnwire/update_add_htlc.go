package lnwire

import "io"

// UpdateAddHTLC proposes a new HTLC (§4.2 sendAdd/receiveAdd). ID is
// assigned by the sender from its own monotonic local-next-htlc-id counter
// (§3).
type UpdateAddHTLC struct {
	ChanID      ChannelID
	ID          uint64
	Amount      MilliSatoshi
	PaymentHash PaymentHash
	Expiry      uint32

	// OnionBlob is opaque to the core (onion construction is out of
	// scope, §1); it is forwarded verbatim in the ProcessAdd action.
	OnionBlob [1366]byte
}

var _ Message = (*UpdateAddHTLC)(nil)

func (u *UpdateAddHTLC) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&u.ChanID,
		&u.ID,
		&u.Amount,
		&u.PaymentHash,
		&u.Expiry,
		u.OnionBlob[:],
	)
}

func (u *UpdateAddHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		u.ChanID,
		u.ID,
		u.Amount,
		u.PaymentHash,
		u.Expiry,
		u.OnionBlob[:],
	)
}

func (u *UpdateAddHTLC) MsgType() MessageType { return MsgUpdateAddHTLC }

func (u *UpdateAddHTLC) MaxPayloadLength(uint32) uint32 {
	// ChanID(32) + ID(8) + Amount(8) + PaymentHash(32) + Expiry(4) + Onion(1366)
	return 1450
}
