package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/lightningnetwork/lnchannel/channeldb"
)

func TestMinDepthForFundingDefault(t *testing.T) {
	require.Equal(t, uint32(3), MinDepthForFunding(3, 1_000_000))
}

func TestMinDepthForFundingScalesAboveMaxFunding(t *testing.T) {
	depth := MinDepthForFunding(3, 20*1e8)
	require.Greater(t, depth, uint32(3))
}

func TestValidateCommonRejectsExcessiveMaxAcceptedHtlcs(t *testing.T) {
	node := channeldb.StaticParams{MaxToLocalDelayBlocks: 2016}
	err := validateCommon(node, OpenParams{
		MaxAcceptedHtlcs: 500,
		DustLimit:        600,
		ChannelReserve:   10_000,
	})
	require.ErrorContains(t, err, "max_accepted_htlcs")
}

func TestValidateCommonRejectsSmallDustLimit(t *testing.T) {
	node := channeldb.StaticParams{MaxToLocalDelayBlocks: 2016}
	err := validateCommon(node, OpenParams{
		MaxAcceptedHtlcs: 30,
		DustLimit:        100,
		ChannelReserve:   10_000,
	})
	require.Error(t, err)
}

func TestFeeRateMismatch(t *testing.T) {
	require.InDelta(t, 0.0, FeeRateMismatch(1000, 1000), 0.0001)
	require.True(t, FeeRateMismatch(1000, 100) > 1.0)
}

func TestIsFeeDiffTooHigh(t *testing.T) {
	require.False(t, IsFeeDiffTooHigh(1000, 1000, 0.1))
	require.True(t, IsFeeDiffTooHigh(1000, 100, 0.1))
}

func TestFirstCommitSpecsFunderPaysFee(t *testing.T) {
	local, remote, err := FirstCommitSpecs(true, 1_000_000, 0, 2500, 10_000, 724)
	require.NoError(t, err)
	require.Greater(t, uint64(local.ToLocal), uint64(remote.ToLocal))
	require.Equal(t, local.ToLocal, remote.ToRemote)
}

func TestFirstCommitSpecsRejectsWhenFunderCannotAffordFees(t *testing.T) {
	_, _, err := FirstCommitSpecs(true, 20_000, 0, 100_000, 10_000, 724)
	require.Error(t, err)
}
