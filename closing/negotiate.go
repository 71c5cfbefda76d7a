package closing

import "github.com/btcsuite/btcd/btcutil"

// FirstClosingFee computes the funder's opening bid in the fee negotiation:
// the current feerate applied to the (HTLC-free) commitment transaction's
// weight (§4.3 "The funder computes the first closing fee as a function of
// the current feerate and commit-tx weight").
func FirstClosingFee(feePerKw btcutil.Amount, commitWeight int64) btcutil.Amount {
	return feePerKw * btcutil.Amount(commitWeight) / 1000
}

// NegotiateOutcome is what the fundee-side (or either side's) evaluation of
// a received closing_signed yields.
type NegotiateOutcome struct {
	// Converged is true once a fee both sides accept has been found;
	// Publish carries that agreed fee.
	Converged bool
	Publish   btcutil.Amount

	// NextFee, when Converged is false, is the counter-offer to sign and
	// send back.
	NextFee btcutil.Amount
}

// EvaluateClosingSigned implements the receiver side of §4.3's negotiation
// loop: given our last proposed fee and the iteration count so far, decide
// whether theirFee converges, and if not, what to counter-propose.
func EvaluateClosingSigned(lastLocalFee, theirFee btcutil.Amount, iterations int) NegotiateOutcome {
	if theirFee == lastLocalFee || iterations >= MaxNegotiationIterations {
		return NegotiateOutcome{Converged: true, Publish: theirFee}
	}

	next := averageTowardUs(lastLocalFee, theirFee)
	if next == lastLocalFee {
		return NegotiateOutcome{Converged: true, Publish: lastLocalFee}
	}
	if next == theirFee {
		return NegotiateOutcome{Converged: true, Publish: theirFee}
	}
	return NegotiateOutcome{Converged: false, NextFee: next}
}

// averageTowardUs computes (ours+theirs)/2, rounded toward ours when the
// sum is odd, per §4.3 "nextClosingFee = average(lastLocalFee, theirFee)
// rounded toward us".
func averageTowardUs(ours, theirs btcutil.Amount) btcutil.Amount {
	sum := ours + theirs
	avg := sum / 2
	if sum%2 != 0 {
		if ours > theirs {
			avg++
		}
	}
	return avg
}
