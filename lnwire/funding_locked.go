package lnwire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// FundingLocked is sent by both parties once the funding transaction has
// reached the policy-determined minimum depth (§4.4 minDepthForFunding). It
// carries the first per-commitment point the sender will use to revoke
// commitment index 1.
type FundingLocked struct {
	// ChanID is the now-permanent channel id derived from the funding
	// outpoint (§3).
	ChanID ChannelID

	// NextPerCommitmentPoint is the point the sender will use to build
	// (and later reveal the secret behind, to revoke) commitment index 1.
	NextPerCommitmentPoint *btcec.PublicKey
}

// NewFundingLocked creates a new FundingLocked message.
func NewFundingLocked(cid ChannelID, npcp *btcec.PublicKey) *FundingLocked {
	return &FundingLocked{
		ChanID:                  cid,
		NextPerCommitmentPoint: npcp,
	}
}

var _ Message = (*FundingLocked)(nil)

// Decode is part of the lnwire.Message interface.
func (c *FundingLocked) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChanID,
		&c.NextPerCommitmentPoint,
	)
}

// Encode is part of the lnwire.Message interface.
func (c *FundingLocked) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.NextPerCommitmentPoint,
	)
}

// MsgType is part of the lnwire.Message interface.
func (c *FundingLocked) MsgType() MessageType {
	return MsgFundingLocked
}

// MaxPayloadLength is part of the lnwire.Message interface.
func (c *FundingLocked) MaxPayloadLength(uint32) uint32 {
	// ChanID (32) + NextPerCommitmentPoint (33)
	return 65
}

// Validate checks that the required fields are populated.
func (c *FundingLocked) Validate() error {
	if c.NextPerCommitmentPoint == nil {
		return fmt.Errorf("next per-commitment point must be non-nil")
	}
	return nil
}
