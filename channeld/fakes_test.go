package channeld

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/keychain"
)

// testClockTime anchors Deps.Clock in the FSM tests that check
// WaitingSinceUnixSec, keeping them deterministic across runs.
var testClockTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeKeyManager is a deterministic stand-in for keychain.KeyManager: real
// signatures are out of scope for this package's tests (commitments/
// closing already exercise the signing paths against their own fakes), so
// this just returns fixed, well-formed values.
type fakeKeyManager struct{}

func (fakeKeyManager) DeriveKey(loc keychain.KeyLocator) (*btcec.PublicKey, error) {
	priv, _ := btcec.NewPrivateKey()
	return priv.PubKey(), nil
}

func (fakeKeyManager) DeriveNextCommitmentPoint(fundingKeyPath string, index uint64) (*btcec.PublicKey, error) {
	priv, _ := btcec.NewPrivateKey()
	return priv.PubKey(), nil
}

func (fakeKeyManager) RevealCommitmentSecret(fundingKeyPath string, index uint64) ([32]byte, error) {
	return [32]byte{}, nil
}

func (fakeKeyManager) SignCommitmentTx(loc keychain.KeyLocator, rawTx []byte, signDesc keychain.SignDescriptor) ([]byte, error) {
	return []byte{0x01}, nil
}

func (fakeKeyManager) SignHtlcTx(loc keychain.KeyLocator, rawTx []byte, signDesc keychain.SignDescriptor) ([]byte, error) {
	return []byte{0x01}, nil
}

func (fakeKeyManager) ECDH(loc keychain.KeyLocator, point *btcec.PublicKey) ([32]byte, error) {
	return [32]byte{}, nil
}

// fakeCommitBuilder is commitments.TxBuilder's test double: it builds an
// empty, valid-shaped transaction rather than a real commitment, since the
// FSM-level tests only care that the right collaborator methods fire in the
// right order, not that the resulting bytes are spendable.
type fakeCommitBuilder struct{}

func (fakeCommitBuilder) BuildCommitment(input commitments.CommitInput, spec commitments.CommitmentSpec,
	index uint64, perCommitPoint *btcec.PublicKey, isLocal, isOurTx bool) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func (fakeCommitBuilder) SignCommitment(km keychain.KeyManager, loc keychain.KeyLocator,
	commitTx *wire.MsgTx, spec commitments.CommitmentSpec) ([]byte, [][]byte, error) {
	return []byte{0x01}, nil, nil
}

func (fakeCommitBuilder) VerifyCommitment(localCommitPubKey *btcec.PublicKey, commitTx *wire.MsgTx,
	spec commitments.CommitmentSpec, commitSig []byte, htlcSigs [][]byte) error {
	return nil
}

func (fakeCommitBuilder) CommitWeight(numHtlcs int, hasAnchors bool) int64 {
	return 724
}

// fakeShaStore is channeldb.ShaChainStore's test double: an in-memory map,
// sufficient for the resync/backup paths this package's tests exercise.
type fakeShaStore struct {
	secrets map[uint64][32]byte
}

func newFakeShaStore() *fakeShaStore {
	return &fakeShaStore{secrets: make(map[uint64][32]byte)}
}

func (s *fakeShaStore) AddSecret(commitHeight uint64, secret [32]byte) error {
	s.secrets[commitHeight] = secret
	return nil
}

func (s *fakeShaStore) SecretAt(commitHeight uint64) ([32]byte, error) {
	secret, ok := s.secrets[commitHeight]
	if !ok {
		return [32]byte{}, fmt.Errorf("no secret at height %d", commitHeight)
	}
	return secret, nil
}

// fakeClosingBuilder is closing.TxBuilder's test double.
type fakeClosingBuilder struct{}

// LocateOutput assigns the to_local/to_remote outputs fixed indices 0/1 and
// every htlc a distinct index after them, ordered by position in spec.Htlcs
// — sufficient for this package's tests, which only assert that a claim tx
// for a given htlc fires, not the exact index BuildCommitment placed it at.
func (fakeClosingBuilder) LocateOutput(commitTx *wire.MsgTx, spec commitments.CommitmentSpec,
	kind closing.OutputKind, htlc *commitments.Htlc) (uint32, bool) {

	switch kind {
	case closing.OutputToLocal:
		if spec.ToLocal == 0 {
			return 0, false
		}
		return 0, true
	case closing.OutputToRemote:
		if spec.ToRemote == 0 {
			return 0, false
		}
		return 1, true
	case closing.OutputHtlc:
		for i, h := range spec.Htlcs {
			if htlc != nil && h.ID == htlc.ID && h.Incoming == htlc.Incoming {
				return uint32(i) + 2, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func (fakeClosingBuilder) BuildClosingTx(fundingInput commitments.CommitInput, localScript, remoteScript []byte,
	localAmount, remoteAmount btcutil.Amount) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&fundingInput.Outpoint, nil, nil))
	if localAmount > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(localAmount), localScript))
	}
	if remoteAmount > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(remoteAmount), remoteScript))
	}
	return tx, nil
}

func (fakeClosingBuilder) SignClosingTx(km keychain.KeyManager, fundingKeyLoc keychain.KeyLocator,
	closingTx *wire.MsgTx, fundingInput commitments.CommitInput) ([]byte, error) {
	return []byte{0x02}, nil
}

func (fakeClosingBuilder) VerifyClosingTxSig(remoteFundingPubKey *btcec.PublicKey, closingTx *wire.MsgTx,
	fundingInput commitments.CommitInput, sig []byte) error {
	return nil
}

func (fakeClosingBuilder) ClaimDelayedOutput(commitTx *wire.MsgTx, outputIndex uint32, toSelfDelay uint16,
	delayBasePoint *btcec.PublicKey) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func (fakeClosingBuilder) ClaimRemoteMainOutput(commitTx *wire.MsgTx, outputIndex uint32) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func (fakeClosingBuilder) BuildHtlcSecondStage(commitTx *wire.MsgTx, outputIndex uint32, h commitments.Htlc,
	preimage *[32]byte) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func (fakeClosingBuilder) BuildHtlcClaim(commitTx *wire.MsgTx, outputIndex uint32, h commitments.Htlc,
	preimage *[32]byte) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func (fakeClosingBuilder) BuildMainPenalty(commitTx *wire.MsgTx, outputIndex uint32, secret [32]byte) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func (fakeClosingBuilder) BuildHtlcPenalty(commitTx *wire.MsgTx, outputIndex uint32, h commitments.Htlc,
	secret [32]byte) (*wire.MsgTx, error) {
	return wire.NewMsgTx(2), nil
}

func testDeps() Deps {
	return Deps{
		KeyManager:     fakeKeyManager{},
		CommitBuilder:  fakeCommitBuilder{},
		ClosingBuilder: fakeClosingBuilder{},
		ShaStore:       newFakeShaStore(),
		Clock:          clock.NewTestClock(testClockTime),
	}
}
