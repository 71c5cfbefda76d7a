// Package keychain defines the key-manager contract the core treats as an
// external collaborator (§5 "Shared resources"): thread-safe,
// side-effect-free, and the only path to the node's cryptographic material
// (private key, per-channel derivation path). BIP32-style derivation and
// signing itself are out of scope (§1) — this package only fixes the shape
// of the calls the core makes into it.
package keychain

import "github.com/btcsuite/btcd/btcec/v2"

// KeyFamily namespaces derivation paths, mirroring how the teacher's wallet
// layer separates funding keys from revocation/payment/htlc basepoints.
type KeyFamily uint32

const (
	KeyFamilyMultiSig KeyFamily = iota
	KeyFamilyRevocationBase
	KeyFamilyPaymentBase
	KeyFamilyDelayBase
	KeyFamilyHtlcBase
	KeyFamilyRevocationRoot
)

// KeyLocator pins a derived key to a family and index.
type KeyLocator struct {
	Family KeyFamily
	Index  uint32
}

// KeyManager is the sole path to the node's private key material (§5).
// Implementations MUST be safe for concurrent use by multiple channels.
type KeyManager interface {
	// DeriveKey returns the public key at loc, deriving the private key
	// only transiently for any required signing operation.
	DeriveKey(loc KeyLocator) (*btcec.PublicKey, error)

	// DeriveNextCommitmentPoint derives the per-commitment point for
	// chanPoint at the given commitment index, without revealing its
	// secret (§3 "Per-commitment point / secret").
	DeriveNextCommitmentPoint(fundingKeyPath string, index uint64) (*btcec.PublicKey, error)

	// RevealCommitmentSecret returns the secret behind the
	// per-commitment point at index, which revokes that commitment.
	RevealCommitmentSecret(fundingKeyPath string, index uint64) ([32]byte, error)

	// SignCommitmentTx signs a commitment transaction on behalf of loc.
	SignCommitmentTx(loc KeyLocator, rawTx []byte, signDesc SignDescriptor) ([]byte, error)

	// SignHtlcTx signs an HTLC-timeout/success/penalty transaction.
	SignHtlcTx(loc KeyLocator, rawTx []byte, signDesc SignDescriptor) ([]byte, error)

	// ECDH performs an ECDH with the node's own private key at loc and
	// the supplied public point, used by the peer-held backup AEAD (§9).
	ECDH(loc KeyLocator, point *btcec.PublicKey) ([32]byte, error)
}

// SignDescriptor carries everything a KeyManager needs to produce a
// signature without itself understanding commitment-transaction semantics:
// the previous output's value and witness script, and which input to sign.
type SignDescriptor struct {
	InputIndex  int
	OutputValue int64
	WitnessScript []byte
	HashType    uint32
}
