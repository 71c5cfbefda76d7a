package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// FundingCreated is sent by the funder once it has constructed (but not yet
// broadcast) the funding transaction, carrying its signature on the
// fundee's initial commitment (§4.1 WaitForFundingCreated).
type FundingCreated struct {
	TemporaryChanID ChannelID
	FundingTxID     chainhash.Hash
	FundingOutputIndex uint16
	CommitSig       []byte
}

var _ Message = (*FundingCreated)(nil)

func (f *FundingCreated) Decode(r io.Reader, pver uint32) error {
	f.CommitSig = make([]byte, 64)
	return readElements(r,
		&f.TemporaryChanID,
		f.FundingTxID[:],
		&f.FundingOutputIndex,
		f.CommitSig,
	)
}

func (f *FundingCreated) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		f.TemporaryChanID,
		f.FundingTxID[:],
		f.FundingOutputIndex,
		f.CommitSig,
	)
}

func (f *FundingCreated) MsgType() MessageType { return MsgFundingCreated }

func (f *FundingCreated) MaxPayloadLength(uint32) uint32 {
	// ChanID (32) + txid (32) + output index (2) + sig (64)
	return 130
}
