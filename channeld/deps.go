package channeld

import (
	"github.com/lightningnetwork/lnd/clock"

	"github.com/lightningnetwork/lnchannel/channeldb"
	"github.com/lightningnetwork/lnchannel/closing"
	"github.com/lightningnetwork/lnchannel/commitments"
	"github.com/lightningnetwork/lnchannel/keychain"
)

// Deps bundles the synchronous, side-effect-free collaborators the FSM calls
// directly rather than through an Action: the key manager and the two
// TxBuilder contracts are described the same way §5 describes KeyManager
// ("thread-safe and side-effect-free"), so a transition may call them inline
// without breaking purity in the sense the spec cares about — determinism
// given (state, event, Deps). Collaborators whose ordering relative to other
// side effects matters (persistence, chain watching, wire delivery) stay
// Actions instead, per §5's ordering guarantees.
type Deps struct {
	KeyManager     keychain.KeyManager
	CommitBuilder  commitments.TxBuilder
	ClosingBuilder closing.TxBuilder
	ShaStore       channeldb.ShaChainStore

	// Clock drives closing.State.WaitingSinceUnixSec (§3 "waiting-since
	// timestamp"), the wall-clock counterpart to the block-height-based
	// FUNDING_TIMEOUT_FUNDEE timeout. A nil Clock simply leaves the
	// timestamp unset, matching the other collaborators' zero-value
	// behavior.
	Clock clock.Clock
}
