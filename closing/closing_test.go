package closing

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestEvaluateClosingSignedConvergesOnMatch(t *testing.T) {
	out := EvaluateClosingSigned(1000, 1000, 1)
	require.True(t, out.Converged)
	require.EqualValues(t, 1000, out.Publish)
}

func TestEvaluateClosingSignedConvergesAfterMaxIterations(t *testing.T) {
	out := EvaluateClosingSigned(1000, 2000, MaxNegotiationIterations)
	require.True(t, out.Converged)
	require.EqualValues(t, 2000, out.Publish)
}

func TestEvaluateClosingSignedCountersWhenFar(t *testing.T) {
	out := EvaluateClosingSigned(1000, 2000, 1)
	require.False(t, out.Converged)
	require.EqualValues(t, 1500, out.NextFee)
}

func TestEvaluateClosingSignedConvergesWhenAverageMatchesOurs(t *testing.T) {
	out := EvaluateClosingSigned(1000, 1001, 1)
	require.True(t, out.Converged)
}

func TestIsClosedMutualClose(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(1000, nil))
	txid := tx.TxHash()

	s := &State{MutualClosePublished: []*wire.MsgTx{tx}}
	require.Equal(t, MutualClose, s.IsClosed(&txid))
}

func TestIsClosedNotClosedByDefault(t *testing.T) {
	s := &State{}
	require.Equal(t, NotClosed, s.IsClosed(nil))
}

func TestLocalCommitPublishedIsDoneRequiresAllDescendantsConfirmed(t *testing.T) {
	commitTx := wire.NewMsgTx(2)
	commitTx.AddTxOut(wire.NewTxOut(500_000, nil))

	claimTx := wire.NewMsgTx(2)
	claimTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: commitTx.TxHash(), Index: 0}, nil, nil))
	claimTx.AddTxOut(wire.NewTxOut(499_000, nil))

	l := &LocalCommitPublished{
		CommitTx:           commitTx,
		ClaimMainDelayedTx: claimTx,
		IrrevocablySpent:   map[wire.OutPoint]chainhash.Hash{},
	}
	require.False(t, l.IsDone())

	l.IrrevocablySpent[wire.OutPoint{Hash: commitTx.TxHash(), Index: 0}] = commitTx.TxHash()
	l.IrrevocablySpent[wire.OutPoint{Hash: claimTx.TxHash(), Index: 0}] = claimTx.TxHash()
	require.True(t, l.IsDone())
}
