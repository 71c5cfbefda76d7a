package lnwire

import "io"

// ClosingSigned carries one round of the mutual-close fee negotiation
// (§4.3). FeeSatoshis is the sender's proposed absolute fee; Signature signs
// the closing transaction paying that fee.
type ClosingSigned struct {
	ChanID      ChannelID
	FeeSatoshis int64
	Signature   []byte

	// ChannelData is the optional encrypted backup blob (§4.1, §9).
	ChannelData []byte
}

var _ Message = (*ClosingSigned)(nil)

func (c *ClosingSigned) Decode(r io.Reader, pver uint32) error {
	c.Signature = make([]byte, 64)
	err := readElements(r, &c.ChanID, &c.FeeSatoshis, c.Signature)
	if err != nil {
		return err
	}
	return decodeOptionalChannelData(r, &c.ChannelData)
}

func (c *ClosingSigned) Encode(w io.Writer, pver uint32) error {
	err := writeElements(w, c.ChanID, c.FeeSatoshis, c.Signature)
	if err != nil {
		return err
	}
	return encodeOptionalChannelData(w, c.ChannelData)
}

func (c *ClosingSigned) MsgType() MessageType { return MsgClosingSigned }

func (c *ClosingSigned) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
