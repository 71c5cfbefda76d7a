package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// RevokeAndAck reveals the per-commitment secret of the commitment just
// superseded, and advertises the point that will be used two commitments
// from now (§4.2 receiveCommit's reply, §4.2 receiveRevocation's input).
type RevokeAndAck struct {
	ChanID ChannelID

	// Revocation is the revealed per-commitment secret for the
	// commitment now obsolete.
	Revocation [32]byte

	NextPerCommitmentPoint *btcec.PublicKey

	// ChannelData is the optional encrypted backup blob (§4.1, §9).
	ChannelData []byte
}

var _ Message = (*RevokeAndAck)(nil)

func (r *RevokeAndAck) Decode(rd io.Reader, pver uint32) error {
	err := readElements(rd,
		&r.ChanID,
		r.Revocation[:],
		&r.NextPerCommitmentPoint,
	)
	if err != nil {
		return err
	}
	return decodeOptionalChannelData(rd, &r.ChannelData)
}

func (r *RevokeAndAck) Encode(w io.Writer, pver uint32) error {
	err := writeElements(w,
		r.ChanID,
		r.Revocation[:],
		r.NextPerCommitmentPoint,
	)
	if err != nil {
		return err
	}
	return encodeOptionalChannelData(w, r.ChannelData)
}

func (r *RevokeAndAck) MsgType() MessageType { return MsgRevokeAndAck }

func (r *RevokeAndAck) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
