package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// FundingFlag is a bitfield carried in open_channel; bit 0 requests the
// channel be announced to the rest of the network (out of scope here, but
// the bit is still wire-visible, §6).
type FundingFlag uint8

const (
	FFAnnounceChannel FundingFlag = 1 << 0
)

// OpenChannel is sent by the funder to begin the open-channel handshake
// (§4.1 WaitForInit -> WaitForAcceptChannel). Fields mirror §3's Local
// params plus the funder-chosen funding amount/push amount/feerate.
type OpenChannel struct {
	ChainHash            chainhash.Hash
	TemporaryChanID      ChannelID
	FundingAmount        int64 // satoshis
	PushAmount           MilliSatoshi
	DustLimit            int64
	MaxValueInFlight     MilliSatoshi
	ChannelReserve       int64
	HtlcMinimum          MilliSatoshi
	FeePerKiloWeight     int64
	CsvDelay             uint16
	MaxAcceptedHTLCs     uint16
	FundingKey           *btcec.PublicKey
	RevocationPoint      *btcec.PublicKey
	PaymentPoint         *btcec.PublicKey
	DelayedPaymentPoint  *btcec.PublicKey
	HtlcPoint            *btcec.PublicKey
	FirstCommitmentPoint *btcec.PublicKey
	ChannelFlags         FundingFlag

	// UpfrontShutdownScript is an optional TLV field (§6 expansion):
	// when non-empty, constrains the final scriptPubKey both sides will
	// accept for mutual close (§4.3).
	UpfrontShutdownScript []byte
}

var _ Message = (*OpenChannel)(nil)

func (o *OpenChannel) Decode(r io.Reader, pver uint32) error {
	var scriptLen uint16
	err := readElements(r,
		o.ChainHash[:],
		&o.TemporaryChanID,
		&o.FundingAmount,
		&o.PushAmount,
		&o.DustLimit,
		&o.MaxValueInFlight,
		&o.ChannelReserve,
		&o.HtlcMinimum,
		&o.FeePerKiloWeight,
		&o.CsvDelay,
		&o.MaxAcceptedHTLCs,
		&o.FundingKey,
		&o.RevocationPoint,
		&o.PaymentPoint,
		&o.DelayedPaymentPoint,
		&o.HtlcPoint,
		&o.FirstCommitmentPoint,
		(*uint8)(&o.ChannelFlags),
		&scriptLen,
	)
	if err != nil {
		return err
	}
	if scriptLen > 0 {
		o.UpfrontShutdownScript = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, o.UpfrontShutdownScript); err != nil {
			return err
		}
	}
	return nil
}

func (o *OpenChannel) Encode(w io.Writer, pver uint32) error {
	err := writeElements(w,
		o.ChainHash[:],
		o.TemporaryChanID,
		o.FundingAmount,
		o.PushAmount,
		o.DustLimit,
		o.MaxValueInFlight,
		o.ChannelReserve,
		o.HtlcMinimum,
		o.FeePerKiloWeight,
		o.CsvDelay,
		o.MaxAcceptedHTLCs,
		o.FundingKey,
		o.RevocationPoint,
		o.PaymentPoint,
		o.DelayedPaymentPoint,
		o.HtlcPoint,
		o.FirstCommitmentPoint,
		uint8(o.ChannelFlags),
		uint16(len(o.UpfrontShutdownScript)),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(o.UpfrontShutdownScript)
	return err
}

func (o *OpenChannel) MsgType() MessageType { return MsgOpenChannel }

func (o *OpenChannel) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
