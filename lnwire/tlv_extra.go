package lnwire

import (
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// channelDataType is the TLV type for the opaque encrypted channel backup
// blob carried by FundingSigned, CommitSig, RevokeAndAck, ClosingSigned and
// ChannelReestablish once a channel has opted into peer-held backups (§4.1
// "Post-processing", §9).
const channelDataType tlv.Type = 1

// encodeOptionalChannelData appends a minimal TLV stream containing data,
// or nothing at all if data is empty — peers that never opted into the
// backup feature simply never see the record.
func encodeOptionalChannelData(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	record := tlv.MakePrimitiveRecord(channelDataType, &data)
	stream, err := tlv.NewStream(record)
	if err != nil {
		return err
	}
	return stream.Encode(w)
}

// decodeOptionalChannelData reads the channel_data TLV record if present.
// Absence of the record (EOF with nothing consumed) is not an error: most
// peers never set the bit that requests this feature.
func decodeOptionalChannelData(r io.Reader, out *[]byte) error {
	var data []byte
	record := tlv.MakePrimitiveRecord(channelDataType, &data)
	stream, err := tlv.NewStream(record)
	if err != nil {
		return err
	}
	if err := stream.Decode(r); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	*out = data
	return nil
}

// setChannelData lets the dispatcher's backup post-processing pass (§4.1)
// attach an encrypted blob to an outbound message without a type switch over
// every carrier type.
func (f *FundingSigned) setChannelData(data []byte) { f.ChannelData = data }

func (c *CommitSig) setChannelData(data []byte) { c.ChannelData = data }

func (r *RevokeAndAck) setChannelData(data []byte) { r.ChannelData = data }

func (c *ClosingSigned) setChannelData(data []byte) { c.ChannelData = data }

func (c *ChannelReestablish) setChannelData(data []byte) { c.ChannelData = data }
