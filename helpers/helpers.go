// Package helpers holds the small pure functions shared by the channel FSM
// that do not deserve a stateful home of their own: parameter validation,
// minimum-depth policy, fee-mismatch detection, and first-commitment
// construction (§4.4). Grounded on lnwallet/reservation.go's
// ChannelContribution validation and lnwallet/channel.go's CalcFee/
// validateFeeRate reasoning, adapted from free validation functions buried
// inside those types into standalone functions a pure FSM can call.
package helpers

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnchannel/chanerrs"
	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

const (
	// maxFundingSat is the largest channel this core will open without the
	// deep-confirmation rule of minDepthForFunding kicking in (§4.4).
	maxFundingSat = 10 * 1e8

	maxAcceptedHtlcsBolt2 = 483
	minDustLimitSat       = 546
	maxToSelfDelayBolt2   = 2016
)

// MinDepthForFunding returns how many confirmations the funding transaction
// must reach before the channel is usable, scaling past nodeParams'
// configured default once the funding amount is large enough that the
// default depth no longer dominates an attacker's potential double-spend
// cost via accumulated block reward (§4.4).
func MinDepthForFunding(minDepthBlocks uint32, fundingSat btcutil.Amount) uint32 {
	if fundingSat <= maxFundingSat {
		return minDepthBlocks
	}

	btc := float64(fundingSat) / 1e8
	scaled := uint32(math.Ceil((15*btc)/6.25)) + 1
	if scaled > minDepthBlocks {
		return scaled
	}
	return minDepthBlocks
}

// OpenParams is the subset of an open_channel message validateParamsFunder/
// Fundee need; kept independent of lnwire so this package never imports the
// wire codec for plain numbers.
type OpenParams struct {
	FundingSat       btcutil.Amount
	DustLimit        btcutil.Amount
	ChannelReserve   btcutil.Amount
	MaxAcceptedHtlcs uint16
	ToSelfDelay      uint16
	FeePerKw         btcutil.Amount
}

// ValidateParamsFunder checks an accept_channel reply against the
// open_channel we sent, from the funder's point of view (§4.4).
func ValidateParamsFunder(node channeldb.StaticParams, open, accept OpenParams, zeroReserve bool) error {
	if err := validateCommon(node, accept); err != nil {
		return err
	}
	if !zeroReserve {
		if open.ChannelReserve < accept.DustLimit {
			return chanerrs.NewValidationError("validateParamsFunder", chanerrs.ErrDustLimitAboveOurReserve)
		}
		if accept.ChannelReserve < open.DustLimit {
			return chanerrs.NewValidationError("validateParamsFunder", chanerrs.ErrChannelReserveBelowOurDust)
		}
	}
	if open.FundingSat > 0 {
		ratio := float64(accept.ChannelReserve) / float64(open.FundingSat)
		if ratio > node.MaxReserveToFundingRatio {
			return chanerrs.NewValidationError("validateParamsFunder", chanerrs.ErrChannelReserveTooHigh)
		}
	}
	return nil
}

// ValidateParamsFundee checks an open_channel from the fundee's point of
// view, additionally guarding the initial feerate (§4.4).
func ValidateParamsFundee(node channeldb.StaticParams, open OpenParams, currentFeePerKw btcutil.Amount) error {
	if err := validateCommon(node, open); err != nil {
		return err
	}
	if FeeRateMismatch(currentFeePerKw, open.FeePerKw) > 3.0 {
		return chanerrs.NewValidationError("validateParamsFundee", chanerrs.ErrCannotAffordFees)
	}
	return nil
}

func validateCommon(node channeldb.StaticParams, p OpenParams) error {
	if p.MaxAcceptedHtlcs > maxAcceptedHtlcsBolt2 {
		return chanerrs.NewValidationError("validateCommon", chanerrs.ErrInvalidMaxAcceptedHtlcs)
	}
	if p.DustLimit < minDustLimitSat {
		return chanerrs.NewValidationError("validateCommon", chanerrs.ErrDustLimitTooSmall)
	}
	if p.DustLimit > p.ChannelReserve {
		return chanerrs.NewValidationError("validateCommon", chanerrs.ErrDustLimitTooLarge)
	}
	maxDelay := node.MaxToLocalDelayBlocks
	if maxDelay > maxToSelfDelayBolt2 {
		maxDelay = maxToSelfDelayBolt2
	}
	if p.ToSelfDelay > maxDelay {
		return chanerrs.NewValidationError("validateCommon", chanerrs.ErrToSelfDelayTooHigh)
	}
	return nil
}

// AboveReserve is the free-function form of commitments.Commitments.AboveReserve
// for call sites that only have the remote spec and params in hand, not a
// full Commitments value (e.g. mid-construction during open negotiation).
func AboveReserve(toRemote btcutil.Amount, reserve btcutil.Amount) bool {
	return toRemote > reserve
}

// FeeRateMismatch computes BOLT-2's symmetric relative distance between a
// reference feerate and a current one: |2(ref-curr)| / (ref+curr).
func FeeRateMismatch(ref, curr btcutil.Amount) float64 {
	if ref+curr == 0 {
		return 0
	}
	diff := float64(ref - curr)
	if diff < 0 {
		diff = -diff
	}
	return (2 * diff) / float64(ref+curr)
}

// IsFeeDiffTooHigh reports whether the relative mismatch between ref and
// curr exceeds maxRatio.
func IsFeeDiffTooHigh(ref, curr btcutil.Amount, maxRatio float64) bool {
	return FeeRateMismatch(ref, curr) > maxRatio
}

// FirstCommitSpecs derives both parties' CommitmentSpec at index 0 from the
// funding amount and push amount, and confirms the funder can still afford
// the first commitment's fee after paying it and any push (§4.4
// "makeFirstCommitTxs": "if we are fundee, verifies the funder can afford
// fees").
func FirstCommitSpecs(isFunder bool, fundingSat btcutil.Amount, pushMsat lnwire.MilliSatoshi,
	feePerKw btcutil.Amount, remoteReserve btcutil.Amount, commitWeight int64) (local, remote commitments.CommitmentSpec, err error) {

	fee := feePerKw * btcutil.Amount(commitWeight) / 1000
	fundingMsat := lnwire.MilliSatoshi(fundingSat) * 1000
	feeMsat := lnwire.MilliSatoshi(fee) * 1000
	if fundingMsat < feeMsat+pushMsat {
		return local, remote, chanerrs.NewValidationError("makeFirstCommitTxs", chanerrs.ErrCannotAffordFees)
	}

	funderToLocal := fundingMsat - feeMsat - pushMsat
	fundeeToLocal := pushMsat

	local = commitments.CommitmentSpec{FeePerKw: feePerKw}
	remote = commitments.CommitmentSpec{FeePerKw: feePerKw}

	if isFunder {
		local.ToLocal, local.ToRemote = funderToLocal, fundeeToLocal
	} else {
		local.ToLocal, local.ToRemote = fundeeToLocal, funderToLocal
	}
	remote.ToLocal, remote.ToRemote = local.ToRemote, local.ToLocal

	funderRemainder := btcutil.Amount(funderToLocal / 1000)
	if funderRemainder < remoteReserve+fee {
		return local, remote, chanerrs.NewValidationError("makeFirstCommitTxs", chanerrs.ErrCannotAffordFees)
	}
	return local, remote, nil
}
