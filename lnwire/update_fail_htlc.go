package lnwire

import "io"

// UpdateFailHTLC fails a previously-added HTLC (§4.2 sendFail/receiveFail).
// Reason is the onion-encrypted failure message; the encryption itself uses
// the payment's shared secret, which is out of scope here (§1) — the core
// only threads the opaque bytes through.
type UpdateFailHTLC struct {
	ChanID ChannelID
	ID     uint64
	Reason []byte
}

var _ Message = (*UpdateFailHTLC)(nil)

func (u *UpdateFailHTLC) Decode(r io.Reader, pver uint32) error {
	var reasonLen uint16
	if err := readElements(r, &u.ChanID, &u.ID, &reasonLen); err != nil {
		return err
	}
	u.Reason = make([]byte, reasonLen)
	_, err := io.ReadFull(r, u.Reason)
	return err
}

func (u *UpdateFailHTLC) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w, u.ChanID, u.ID, uint16(len(u.Reason))); err != nil {
		return err
	}
	_, err := w.Write(u.Reason)
	return err
}

func (u *UpdateFailHTLC) MsgType() MessageType { return MsgUpdateFailHTLC }

func (u *UpdateFailHTLC) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
