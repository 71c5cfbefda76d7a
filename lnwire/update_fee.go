package lnwire

import "io"

// UpdateFee proposes a new feerate for future commitments. Only the funder
// may send this (§4.6 expansion); a fundee-sent UpdateFee is a protocol
// error (chanerrs.ErrNonFunderSentFee).
type UpdateFee struct {
	ChanID      ChannelID
	FeePerKw    uint32
}

var _ Message = (*UpdateFee)(nil)

func (u *UpdateFee) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &u.ChanID, &u.FeePerKw)
}

func (u *UpdateFee) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, u.ChanID, u.FeePerKw)
}

func (u *UpdateFee) MsgType() MessageType { return MsgUpdateFee }

func (u *UpdateFee) MaxPayloadLength(uint32) uint32 {
	return 36
}
