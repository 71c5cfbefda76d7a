package lnwire

import "io"

// UpdateFailMalformedHTLC fails an HTLC whose onion the receiver could not
// even parse, so it cannot construct a normal encrypted failure (§4.2
// sendFailMalformed/receiveFailMalformed). ShaOnionBlob lets the upstream
// hop still produce a meaningful failure message of its own.
type UpdateFailMalformedHTLC struct {
	ChanID       ChannelID
	ID           uint64
	ShaOnionBlob [32]byte
	FailureCode  uint16
}

var _ Message = (*UpdateFailMalformedHTLC)(nil)

func (u *UpdateFailMalformedHTLC) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&u.ChanID,
		&u.ID,
		u.ShaOnionBlob[:],
		&u.FailureCode,
	)
}

func (u *UpdateFailMalformedHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		u.ChanID,
		u.ID,
		u.ShaOnionBlob[:],
		u.FailureCode,
	)
}

func (u *UpdateFailMalformedHTLC) MsgType() MessageType {
	return MsgUpdateFailMalformed
}

func (u *UpdateFailMalformedHTLC) MaxPayloadLength(uint32) uint32 {
	// ChanID(32) + ID(8) + sha(32) + code(2)
	return 74
}
