package lnwire

import "io"

// FundingSigned is the funder's awaited reply to FundingCreated, carrying
// the fundee's signature on the funder's initial commitment (§4.1
// WaitForFundingSigned -> WaitForFundingConfirmed). When the channel has
// opted into peer-held backups, an encrypted ChannelData TLV is appended by
// the dispatcher's post-processing pass (§4.1 "Post-processing").
type FundingSigned struct {
	ChanID    ChannelID
	CommitSig []byte

	// ChannelData is the optional encrypted backup blob (§4.1, §9).
	ChannelData []byte
}

var _ Message = (*FundingSigned)(nil)

func (f *FundingSigned) Decode(r io.Reader, pver uint32) error {
	f.CommitSig = make([]byte, 64)
	if err := readElements(r, &f.ChanID, f.CommitSig); err != nil {
		return err
	}
	return decodeOptionalChannelData(r, &f.ChannelData)
}

func (f *FundingSigned) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w, f.ChanID, f.CommitSig); err != nil {
		return err
	}
	return encodeOptionalChannelData(w, f.ChannelData)
}

func (f *FundingSigned) MsgType() MessageType { return MsgFundingSigned }

func (f *FundingSigned) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
