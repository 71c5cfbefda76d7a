package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// AcceptChannel is the fundee's reply to OpenChannel (§4.1
// WaitForAcceptChannel -> WaitForFundingInternal). Validated against
// open_channel by helpers.ValidateParamsFunder (§4.4).
type AcceptChannel struct {
	TemporaryChanID      ChannelID
	DustLimit            int64
	MaxValueInFlight     MilliSatoshi
	ChannelReserve       int64
	HtlcMinimum          MilliSatoshi
	MinAcceptDepth       uint32
	CsvDelay             uint16
	MaxAcceptedHTLCs     uint16
	FundingKey           *btcec.PublicKey
	RevocationPoint      *btcec.PublicKey
	PaymentPoint         *btcec.PublicKey
	DelayedPaymentPoint  *btcec.PublicKey
	HtlcPoint            *btcec.PublicKey
	FirstCommitmentPoint *btcec.PublicKey

	// UpfrontShutdownScript mirrors OpenChannel's optional TLV field.
	UpfrontShutdownScript []byte
}

var _ Message = (*AcceptChannel)(nil)

func (a *AcceptChannel) Decode(r io.Reader, pver uint32) error {
	var scriptLen uint16
	err := readElements(r,
		&a.TemporaryChanID,
		&a.DustLimit,
		&a.MaxValueInFlight,
		&a.ChannelReserve,
		&a.HtlcMinimum,
		&a.MinAcceptDepth,
		&a.CsvDelay,
		&a.MaxAcceptedHTLCs,
		&a.FundingKey,
		&a.RevocationPoint,
		&a.PaymentPoint,
		&a.DelayedPaymentPoint,
		&a.HtlcPoint,
		&a.FirstCommitmentPoint,
		&scriptLen,
	)
	if err != nil {
		return err
	}
	if scriptLen > 0 {
		a.UpfrontShutdownScript = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, a.UpfrontShutdownScript); err != nil {
			return err
		}
	}
	return nil
}

func (a *AcceptChannel) Encode(w io.Writer, pver uint32) error {
	err := writeElements(w,
		a.TemporaryChanID,
		a.DustLimit,
		a.MaxValueInFlight,
		a.ChannelReserve,
		a.HtlcMinimum,
		a.MinAcceptDepth,
		a.CsvDelay,
		a.MaxAcceptedHTLCs,
		a.FundingKey,
		a.RevocationPoint,
		a.PaymentPoint,
		a.DelayedPaymentPoint,
		a.HtlcPoint,
		a.FirstCommitmentPoint,
		uint16(len(a.UpfrontShutdownScript)),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(a.UpfrontShutdownScript)
	return err
}

func (a *AcceptChannel) MsgType() MessageType { return MsgAcceptChannel }

func (a *AcceptChannel) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
