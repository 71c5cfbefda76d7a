package lnwire

import "io"

// CommitSig locks in every proposed change since the last commit_sig,
// carrying the sender's signature on the new remote commitment plus one
// signature per non-dust HTLC on that commitment, in output order (§4.2
// sendCommit). StoreHtlcInfos (§5 ordering guarantee #2) always precedes
// the SendMessage action carrying this on the wire.
type CommitSig struct {
	ChanID    ChannelID
	CommitSig []byte
	HtlcSigs  [][]byte

	// ChannelData is the optional encrypted backup blob (§4.1, §9).
	ChannelData []byte
}

var _ Message = (*CommitSig)(nil)

func (c *CommitSig) Decode(r io.Reader, pver uint32) error {
	c.CommitSig = make([]byte, 64)
	var numSigs uint16
	if err := readElements(r, &c.ChanID, c.CommitSig, &numSigs); err != nil {
		return err
	}
	c.HtlcSigs = make([][]byte, numSigs)
	for i := range c.HtlcSigs {
		c.HtlcSigs[i] = make([]byte, 64)
		if _, err := io.ReadFull(r, c.HtlcSigs[i]); err != nil {
			return err
		}
	}
	return decodeOptionalChannelData(r, &c.ChannelData)
}

func (c *CommitSig) Encode(w io.Writer, pver uint32) error {
	err := writeElements(w, c.ChanID, c.CommitSig, uint16(len(c.HtlcSigs)))
	if err != nil {
		return err
	}
	for _, sig := range c.HtlcSigs {
		if _, err := w.Write(sig); err != nil {
			return err
		}
	}
	return encodeOptionalChannelData(w, c.ChannelData)
}

func (c *CommitSig) MsgType() MessageType { return MsgCommitSig }

func (c *CommitSig) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
