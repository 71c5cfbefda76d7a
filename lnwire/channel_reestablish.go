package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ChannelReestablish is exchanged in the Syncing wrapper state (§4.1) to
// resynchronize the commitment chains after a reconnection. The two numbers
// are the sender's view of the chains: NextLocalCommitmentNumber is the
// commit index the sender next expects to *send* a revocation for (i.e. one
// past its last local commit), NextRemoteRevocationNumber is the highest
// remote commit index the sender has revoked (§4.2 handleSync).
type ChannelReestablish struct {
	ChanID                     ChannelID
	NextLocalCommitmentNumber  uint64
	NextRemoteRevocationNumber uint64

	// YourLastPerCommitmentSecret, when non-zero, is the secret the
	// sender believes corresponds to the peer's commit at
	// NextRemoteRevocationNumber-1 — used to prove the peer is outdated
	// (§4.2 "WaitForRemotePublishFutureCommitment").
	YourLastPerCommitmentSecret [32]byte

	// MyCurrentPerCommitmentPoint is the sender's current commitment
	// point, needed by the peer to derive a claim on the sender's
	// commitment if it turns out to be outdated.
	MyCurrentPerCommitmentPoint *btcec.PublicKey

	// ChannelData is the optional encrypted backup blob (§4.1, §9). The
	// backup pass attaches it to an outbound message; an inbound one is
	// not decrypted or installed by the channel FSM.
	ChannelData []byte
}

var _ Message = (*ChannelReestablish)(nil)

func (c *ChannelReestablish) Decode(r io.Reader, pver uint32) error {
	err := readElements(r,
		&c.ChanID,
		&c.NextLocalCommitmentNumber,
		&c.NextRemoteRevocationNumber,
		c.YourLastPerCommitmentSecret[:],
		&c.MyCurrentPerCommitmentPoint,
	)
	if err != nil {
		return err
	}
	return decodeOptionalChannelData(r, &c.ChannelData)
}

func (c *ChannelReestablish) Encode(w io.Writer, pver uint32) error {
	err := writeElements(w,
		c.ChanID,
		c.NextLocalCommitmentNumber,
		c.NextRemoteRevocationNumber,
		c.YourLastPerCommitmentSecret[:],
		c.MyCurrentPerCommitmentPoint,
	)
	if err != nil {
		return err
	}
	return encodeOptionalChannelData(w, c.ChannelData)
}

func (c *ChannelReestablish) MsgType() MessageType { return MsgChannelReestablish }

func (c *ChannelReestablish) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
