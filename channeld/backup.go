package channeld

import (
	"encoding/binary"

	"github.com/Yawning/aez"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Backup is the peer-held channel-backup collaborator (§4.1
// "Post-processing", §9 "the AEAD construction"). The encryption key is
// derived once per channel by the host process (typically via
// keychain.KeyManager.ECDH against the node's own identity key) and handed
// to this package; Backup never touches the key manager directly, keeping
// this package free of the key-derivation primitives §1 places out of
// scope.
//
// AEZ (github.com/Yawning/aez) is a wide-block AEAD: a single call
// enciphers the whole backup blob with built-in authentication and no
// nonce-reuse catastrophe the way a narrow-block stream cipher would have,
// which matters here since the "nonce" is derived deterministically from
// the channel id (§9 resolves the open question this way: a backup for a
// given channel id and commitment pair is always enciphered identically,
// which is safe for AEZ specifically because it is a deterministic,
// misuse-resistant construction, not an IV-based scheme).
type Backup struct {
	// Key is the 48-byte (or longer) key AEZ derives its subkeys from.
	// Absent (len(Key) == 0) disables backups entirely: Enabled reports
	// false and Encrypt/Decrypt are never called.
	Key []byte
}

// Enabled reports whether this channel opted into peer-held backups.
func (b Backup) Enabled() bool { return len(b.Key) > 0 }

// aezNonce derives AEZ's nonce deterministically from the channel id, so
// encrypting the same logical state twice for the same channel produces
// the same ciphertext — acceptable under AEZ's misuse-resistant guarantee,
// and desirable here since the core has no random source to draw a fresh
// nonce from without compromising determinism (§9 open question,
// resolved).
func aezNonce(chanID lnwire.ChannelID) []byte {
	return chanID[:12]
}

// Encrypt authenticates and enciphers plaintext (an encoded
// ChannelStateWithCommitments snapshot) under Key, bound to chanID via
// associated data so a ciphertext from one channel can never be replayed
// against another.
func (b Backup) Encrypt(chanID lnwire.ChannelID, plaintext []byte) []byte {
	ad := [][]byte{chanID[:]}
	return aez.Encrypt(b.Key, aezNonce(chanID), ad, 0, plaintext, nil)
}

// Decrypt reverses Encrypt, returning (nil, false) if authentication fails.
func (b Backup) Decrypt(chanID lnwire.ChannelID, ciphertext []byte) ([]byte, bool) {
	ad := [][]byte{chanID[:]}
	return aez.Decrypt(b.Key, aezNonce(chanID), ad, 0, ciphertext, nil)
}

// backupCarrier is satisfied by the message types that carry an optional
// channel_data field: funding_signed, commit_sig, revoke_and_ack,
// closing_signed and channel_reestablish (§4.1 Post-processing).
type backupCarrier interface {
	lnwire.Message
	setChannelData([]byte)
}

// attachBackups runs the post-processing pass: for every SendMessage action
// in actions carrying one of the five backup-eligible message types, if
// backups are enabled it attaches the encryption of next's current
// encodable snapshot.
func attachBackups(prev, next State, actions []Action, backup Backup) []Action {
	if !backup.Enabled() {
		return actions
	}

	snapshot := encodeSnapshot(next)

	out := make([]Action, len(actions))
	for i, a := range actions {
		sm, ok := a.(SendMessage)
		if !ok {
			out[i] = a
			continue
		}
		carrier, ok := sm.Message.(backupCarrier)
		if !ok {
			out[i] = a
			continue
		}
		chanID := next.ChannelID
		carrier.setChannelData(backup.Encrypt(chanID, snapshot))
		out[i] = SendMessage{Message: carrier}
	}
	return out
}

// encodeSnapshot produces the plaintext backups encrypt: the channel id and
// the two monotonic commitment indices, nothing more of State. Commitments
// and Closing carry their own (de)serialization concerns out of scope here
// (§1). decodeSnapshot and isStrictlyNewer read this layout back, but no
// step function calls them: the Syncing phase neither decrypts an inbound
// backup nor replaces the local view with one.
func encodeSnapshot(s State) []byte {
	buf := make([]byte, 48)
	copy(buf[:32], s.ChannelID[:])
	if s.Commitments != nil {
		binary.BigEndian.PutUint64(buf[32:40], s.Commitments.LocalCommit.Index)
		binary.BigEndian.PutUint64(buf[40:48], s.Commitments.RemoteCommit.Index)
	}
	return buf
}

// decodedSnapshot is encodeSnapshot's inverse.
type decodedSnapshot struct {
	ChannelID         lnwire.ChannelID
	LocalCommitIndex  uint64
	RemoteCommitIndex uint64
}

func decodeSnapshot(b []byte) (decodedSnapshot, bool) {
	if len(b) != 48 {
		return decodedSnapshot{}, false
	}
	var d decodedSnapshot
	copy(d.ChannelID[:], b[:32])
	d.LocalCommitIndex = binary.BigEndian.Uint64(b[32:40])
	d.RemoteCommitIndex = binary.BigEndian.Uint64(b[40:48])
	return d, true
}

// isStrictlyNewer reports whether a decoded peer-held backup is more recent
// than current: the channel ids match and current has no commitments yet,
// or the backup has a higher local_commit.index or a higher
// remote_commit.index. No step function calls it.
func isStrictlyNewer(current State, decoded decodedSnapshot) bool {
	if current.ChannelID != decoded.ChannelID {
		return false
	}
	if current.Commitments == nil {
		return true
	}
	if decoded.LocalCommitIndex > current.Commitments.LocalCommit.Index {
		return true
	}
	if decoded.RemoteCommitIndex > current.Commitments.RemoteCommit.Index {
		return true
	}
	return false
}
