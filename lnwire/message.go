package lnwire

// code derived from https://github.com/btcsuite/btcd/blob/master/wire/message.go

import (
	"bytes"
	"fmt"
	"io"
)

// MaxMessagePayload is the maximum bytes a message can be regardless of
// other individual limits imposed by messages themselves.
const MaxMessagePayload = 65535 // 65KB

// MessageType is the unique 2-byte big-endian integer that indicates the
// type of message on the wire. All messages have a very simple header which
// consists simply of a 2-byte message type; length and checksum are left to
// the transport, which is out of scope for this core (§1, §6).
type MessageType uint16

// The message types named by §6 of the spec. Numeric values follow BOLT-1/2.
const (
	MsgOpenChannel         MessageType = 32
	MsgAcceptChannel       MessageType = 33
	MsgFundingCreated      MessageType = 34
	MsgFundingSigned       MessageType = 35
	MsgFundingLocked       MessageType = 36
	MsgShutdown            MessageType = 38
	MsgClosingSigned       MessageType = 39
	MsgUpdateAddHTLC       MessageType = 128
	MsgUpdateFulfillHTLC   MessageType = 130
	MsgUpdateFailHTLC      MessageType = 131
	MsgCommitSig           MessageType = 132
	MsgRevokeAndAck        MessageType = 133
	MsgUpdateFee           MessageType = 134
	MsgUpdateFailMalformed MessageType = 135
	MsgChannelReestablish  MessageType = 136
	MsgError               MessageType = 17
)

// UnknownMessage is returned in response to an unknown message type.
type UnknownMessage struct {
	messageType MessageType
}

func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse message of unknown type: %v",
		u.messageType)
}

// Message is the interface every wire message named by §6 implements. The
// codec itself (framing, length, checksum, noise transport) is out of scope
// per §1; this core only needs the typed Go values to pattern-match against
// in the FSM (§6, "Wire codec surface").
type Message interface {
	Decode(io.Reader, uint32) error
	Encode(io.Writer, uint32) error
	MsgType() MessageType
	MaxPayloadLength(uint32) uint32
}

// makeEmptyMessage creates a new empty message of the proper concrete type
// based on the passed message type.
func makeEmptyMessage(msgType MessageType) (Message, error) {
	var msg Message

	switch msgType {
	case MsgOpenChannel:
		msg = &OpenChannel{}
	case MsgAcceptChannel:
		msg = &AcceptChannel{}
	case MsgFundingCreated:
		msg = &FundingCreated{}
	case MsgFundingSigned:
		msg = &FundingSigned{}
	case MsgFundingLocked:
		msg = &FundingLocked{}
	case MsgShutdown:
		msg = &Shutdown{}
	case MsgClosingSigned:
		msg = &ClosingSigned{}
	case MsgUpdateAddHTLC:
		msg = &UpdateAddHTLC{}
	case MsgUpdateFulfillHTLC:
		msg = &UpdateFulfillHTLC{}
	case MsgUpdateFailHTLC:
		msg = &UpdateFailHTLC{}
	case MsgUpdateFailMalformed:
		msg = &UpdateFailMalformedHTLC{}
	case MsgCommitSig:
		msg = &CommitSig{}
	case MsgRevokeAndAck:
		msg = &RevokeAndAck{}
	case MsgUpdateFee:
		msg = &UpdateFee{}
	case MsgChannelReestablish:
		msg = &ChannelReestablish{}
	case MsgError:
		msg = &Error{}
	default:
		return nil, &UnknownMessage{msgType}
	}

	return msg, nil
}

// WriteMessage writes a message to w, prefixed by its 2-byte type, observing
// the MaxMessagePayload ceiling.
func WriteMessage(w io.Writer, msg Message, pver uint32) (int, error) {
	var bw bytes.Buffer
	if err := msg.Encode(&bw, pver); err != nil {
		return 0, err
	}
	payload := bw.Bytes()
	if len(payload) > MaxMessagePayload {
		return 0, fmt.Errorf("message payload is %d bytes, exceeds "+
			"max of %d", len(payload), MaxMessagePayload)
	}

	var hdr [2]byte
	hdr[0] = byte(msg.MsgType() >> 8)
	hdr[1] = byte(msg.MsgType())
	if _, err := w.Write(hdr[:]); err != nil {
		return 0, err
	}
	return w.Write(payload)
}

// ReadMessage reads a 2-byte-prefixed message from r.
func ReadMessage(r io.Reader, pver uint32) (Message, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	msgType := MessageType(hdr[0])<<8 | MessageType(hdr[1])

	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(r, pver); err != nil {
		return nil, err
	}
	return msg, nil
}
