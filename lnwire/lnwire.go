package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MilliSatoshi denotes an amount in milli-satoshis, the smallest unit
// representable in Lightning wire messages. 1000 msat = 1 sat.
type MilliSatoshi uint64

// ToSatoshis rounds down to the nearest whole satoshi.
func (m MilliSatoshi) ToSatoshis() int64 {
	return int64(m / 1000)
}

// ChannelID is the temporary-or-permanent identifier threaded through every
// channel message. Before funding is known it is the initiator-chosen
// temporary_channel_id; afterward it is funding_txid XOR funding_output_index
// (see §3 of the spec).
type ChannelID [32]byte

// NewChanIDFromOutPoint derives the permanent channel id from a funding
// outpoint, per §3: funding_txid XOR funding_output_index.
func NewChanIDFromOutPoint(txid chainhash.Hash, index uint16) ChannelID {
	var cid ChannelID
	copy(cid[:], txid[:])

	var indexBytes [32]byte
	binary.BigEndian.PutUint16(indexBytes[30:], index)
	for i := range cid {
		cid[i] ^= indexBytes[i]
	}
	return cid
}

func (c ChannelID) String() string {
	return fmt.Sprintf("%x", c[:])
}

// PaymentHash is a SHA-256 digest used to hash-lock an HTLC.
type PaymentHash [32]byte

// PaymentPreimage is the value whose SHA-256 image is a PaymentHash.
type PaymentPreimage [32]byte

func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *ChannelID:
		_, err := io.ReadFull(r, e[:])
		return err
	case *PaymentHash:
		_, err := io.ReadFull(r, e[:])
		return err
	case *PaymentPreimage:
		_, err := io.ReadFull(r, e[:])
		return err
	case *uint8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0]
		return nil
	case *uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint16(b[:])
		return nil
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])
		return nil
	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint64(b[:])
		return nil
	case *int64:
		var v uint64
		if err := readElement(r, &v); err != nil {
			return err
		}
		*e = int64(v)
		return nil
	case *MilliSatoshi:
		var v uint64
		if err := readElement(r, &v); err != nil {
			return err
		}
		*e = MilliSatoshi(v)
		return nil
	case []byte:
		_, err := io.ReadFull(r, e)
		return err
	case **btcec.PublicKey:
		var raw [33]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(raw[:])
		if err != nil {
			return err
		}
		*e = pub
		return nil
	case *bool:
		var v uint8
		if err := readElement(r, &v); err != nil {
			return err
		}
		*e = v != 0
		return nil
	default:
		return fmt.Errorf("unknown type to decode: %T", e)
	}
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := readElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case ChannelID:
		_, err := w.Write(e[:])
		return err
	case PaymentHash:
		_, err := w.Write(e[:])
		return err
	case PaymentPreimage:
		_, err := w.Write(e[:])
		return err
	case uint8:
		_, err := w.Write([]byte{e})
		return err
	case uint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e)
		_, err := w.Write(b[:])
		return err
	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err
	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return err
	case int64:
		return writeElement(w, uint64(e))
	case MilliSatoshi:
		return writeElement(w, uint64(e))
	case []byte:
		_, err := w.Write(e)
		return err
	case *btcec.PublicKey:
		if e == nil {
			return fmt.Errorf("cannot write nil public key")
		}
		_, err := w.Write(e.SerializeCompressed())
		return err
	case bool:
		var v uint8
		if e {
			v = 1
		}
		return writeElement(w, v)
	default:
		return fmt.Errorf("unknown type to encode: %T", e)
	}
}

func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := writeElement(w, element); err != nil {
			return err
		}
	}
	return nil
}
