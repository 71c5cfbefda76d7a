package lnwire

import "io"

// Shutdown begins mutual close (§4.1 Normal -> ShuttingDown/Negotiating,
// §4.3). ScriptPubkey must be one of the whitelisted final script forms
// (P2PKH, P2SH, P2WPKH, P2WSH) or the closing module rejects it with
// chanerrs.ErrInvalidFinalScript.
type Shutdown struct {
	ChanID       ChannelID
	ScriptPubkey []byte
}

var _ Message = (*Shutdown)(nil)

func (s *Shutdown) Decode(r io.Reader, pver uint32) error {
	var scriptLen uint16
	if err := readElements(r, &s.ChanID, &scriptLen); err != nil {
		return err
	}
	s.ScriptPubkey = make([]byte, scriptLen)
	_, err := io.ReadFull(r, s.ScriptPubkey)
	return err
}

func (s *Shutdown) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w, s.ChanID, uint16(len(s.ScriptPubkey))); err != nil {
		return err
	}
	_, err := w.Write(s.ScriptPubkey)
	return err
}

func (s *Shutdown) MsgType() MessageType { return MsgShutdown }

func (s *Shutdown) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
