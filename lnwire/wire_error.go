package lnwire

import "io"

// Error is the unrecoverable protocol-error message (§7): once sent or
// received, the channel (unless already Closing or nothingAtStake) moves to
// Closing via spendLocalCurrent. ChanID is the all-zero ChannelID when the
// error applies to the whole connection rather than one channel.
type Error struct {
	ChanID ChannelID
	Data   []byte
}

var _ Message = (*Error)(nil)

// NewError builds an Error message carrying a human-readable reason, e.g.
// "InvalidMaxAcceptedHtlcs: 500 > 483" (S2 in §8).
func NewError(chanID ChannelID, reason string) *Error {
	return &Error{ChanID: chanID, Data: []byte(reason)}
}

func (e *Error) Decode(r io.Reader, pver uint32) error {
	var dataLen uint16
	if err := readElements(r, &e.ChanID, &dataLen); err != nil {
		return err
	}
	e.Data = make([]byte, dataLen)
	_, err := io.ReadFull(r, e.Data)
	return err
}

func (e *Error) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w, e.ChanID, uint16(len(e.Data))); err != nil {
		return err
	}
	_, err := w.Write(e.Data)
	return err
}

func (e *Error) MsgType() MessageType { return MsgError }

func (e *Error) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}

func (e *Error) Error() string {
	return string(e.Data)
}
