package commitments

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

func newTestCommitments() Commitments {
	return Commitments{
		LocalParams: channeldb.LocalParams{
			Constraints: channeldb.ChannelConstraints{
				HtlcMinimum:        1000,
				MaxAcceptedHtlcs:   30,
				MaxValueInFlight:   100_000_000,
				MinCltvExpiryDelta: 6,
				MaxCltvExpiryDelta: 1000,
			},
		},
		RemoteParams: channeldb.RemoteParams{
			Constraints: channeldb.ChannelConstraints{
				HtlcMinimum:        1000,
				MaxAcceptedHtlcs:   30,
				MaxValueInFlight:   100_000_000,
				ChannelReserve:     10_000,
				MinCltvExpiryDelta: 6,
				MaxCltvExpiryDelta: 1000,
			},
		},
		LocalCommit: Commitment{
			Spec: CommitmentSpec{ToLocal: 500_000_000},
		},
		RemoteCommit: Commitment{
			Spec: CommitmentSpec{ToRemote: 500_000_000},
		},
	}
}

func TestSendAddAssignsMonotonicIDs(t *testing.T) {
	c := newTestCommitments()

	c, msg1, err := c.SendAdd(50_000, lnwire.PaymentHash{1}, 500, [1366]byte{}, 1, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), msg1.ID)

	c, msg2, err := c.SendAdd(50_000, lnwire.PaymentHash{2}, 500, [1366]byte{}, 2, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), msg2.ID)

	require.Len(t, c.LocalChanges.Proposed, 2)
	require.Equal(t, uint64(2), c.LocalNextHtlcID)
}

func TestSendAddRejectsBelowHtlcMinimum(t *testing.T) {
	c := newTestCommitments()

	_, _, err := c.SendAdd(100, lnwire.PaymentHash{1}, 500, [1366]byte{}, 1, 0)
	require.Error(t, err)
}

func TestSendAddRejectsExpiryTooSmall(t *testing.T) {
	c := newTestCommitments()

	_, _, err := c.SendAdd(50_000, lnwire.PaymentHash{1}, 100, [1366]byte{}, 1, 100)
	require.Error(t, err)
}

func TestSendAddRejectsExpiryTooBig(t *testing.T) {
	c := newTestCommitments()

	_, _, err := c.SendAdd(50_000, lnwire.PaymentHash{1}, 2000, [1366]byte{}, 1, 0)
	require.Error(t, err)
}

func TestSendAddRejectsInsufficientFunds(t *testing.T) {
	c := newTestCommitments()
	c.LocalCommit.Spec.ToLocal = 5000

	_, _, err := c.SendAdd(50_000, lnwire.PaymentHash{1}, 500, [1366]byte{}, 1, 0)
	require.Error(t, err)
}

func TestReceiveAddRejectsOutOfOrderID(t *testing.T) {
	c := newTestCommitments()

	_, err := c.ReceiveAdd(lnwire.UpdateAddHTLC{ID: 5, Amount: 50_000, Expiry: 500}, 0)
	require.Error(t, err)
}

func TestSendFulfillRequiresAckedIncoming(t *testing.T) {
	c := newTestCommitments()

	_, _, err := c.SendFulfill(0, lnwire.PaymentPreimage{})
	require.Error(t, err)
}

func TestSendFulfillSettlesAckedIncoming(t *testing.T) {
	c := newTestCommitments()

	var preimage lnwire.PaymentPreimage
	preimage[0] = 0x42
	hash := sha256Of(preimage)

	c.RemoteChanges.Acked = []Htlc{
		{ID: 7, Type: Add, Incoming: true, Amount: 20_000, PaymentHash: hash},
	}

	c, msg, err := c.SendFulfill(7, preimage)
	require.NoError(t, err)
	require.Equal(t, preimage, msg.PaymentPreimage)
	require.Len(t, c.LocalChanges.Proposed, 1)
	require.Equal(t, Fulfill, c.LocalChanges.Proposed[0].Type)
}

func TestSendFulfillRejectsWrongPreimage(t *testing.T) {
	c := newTestCommitments()
	c.RemoteChanges.Acked = []Htlc{
		{ID: 1, Type: Add, Incoming: true, PaymentHash: lnwire.PaymentHash{0xaa}},
	}

	_, _, err := c.SendFulfill(1, lnwire.PaymentPreimage{0x01})
	require.Error(t, err)
}

func TestNothingAtStake(t *testing.T) {
	var c Commitments
	require.True(t, c.NothingAtStake(false))

	c.LocalCommit.Spec.ToLocal = 1
	require.False(t, c.NothingAtStake(false))
}

func TestAboveReserve(t *testing.T) {
	c := newTestCommitments()
	require.True(t, c.AboveReserve())

	c.RemoteCommit.Spec.ToRemote = 1000
	require.False(t, c.AboveReserve())
}

func TestSendUpdateFeeRequiresFunder(t *testing.T) {
	c := newTestCommitments()
	_, _, err := c.SendUpdateFee(1000)
	require.Error(t, err)

	c.IsFunder = true
	c, msg, err := c.SendUpdateFee(1000)
	require.NoError(t, err)
	require.Equal(t, uint32(1000), msg.FeePerKw)
	require.Len(t, c.LocalChanges.Proposed, 1)
}

func TestHandleSyncCaseOneNoResend(t *testing.T) {
	c := newTestCommitments()
	c.LocalCommit.Index = 3

	result, err := c.HandleSync(lnwire.ChannelReestablish{
		NextRemoteRevocationNumber: 3,
	}, nil)
	require.NoError(t, err)
	require.Empty(t, result.Resend)
}

func TestHandleSyncCaseTwoResendsRevocation(t *testing.T) {
	c := newTestCommitments()
	c.LocalCommit.Index = 3
	lastRev := &lnwire.RevokeAndAck{}

	result, err := c.HandleSync(lnwire.ChannelReestablish{
		NextRemoteRevocationNumber: 2,
	}, lastRev)
	require.NoError(t, err)
	require.Len(t, result.Resend, 1)
}

func TestHandleSyncDiscardsProposed(t *testing.T) {
	c := newTestCommitments()
	c.LocalNextHtlcID = 2
	c.LocalChanges.Proposed = []Htlc{{ID: 0, Type: Add}, {ID: 1, Type: Add}}

	result, err := c.HandleSync(lnwire.ChannelReestablish{
		NextRemoteRevocationNumber: 0,
	}, nil)
	require.NoError(t, err)
	require.Empty(t, result.Commitments.LocalChanges.Proposed)
	require.Equal(t, uint64(0), result.Commitments.LocalNextHtlcID)
}
