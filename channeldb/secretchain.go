package channeldb

import (
	"fmt"

	"github.com/lightninglabs/neutrino/cache/lru"
)

// ShaChainStore is the collaborator that stores per-commitment secrets
// revealed by the remote party and can answer, for any k <= the highest
// index stored, what the secret at k was (§3 "remote per-commitment
// secrets (SHA-chain)"). The actual SHA-chain derivation (build a node at
// height h from an ancestor) is a cryptographic primitive out of scope for
// this core (§1); this interface is the contract the core calls into —
// modeled on elkrem's ElkremReceiver, whose on-disk ToBytes/FromBytes
// format stores exactly this (height, index, hash) triple per retained
// node.
type ShaChainStore interface {
	// AddSecret stores the secret revealed for commitHeight. The store
	// is responsible for only retaining the minimal spanning set of
	// ancestors needed to reconstruct every secret at or below
	// commitHeight (the SHA-chain invariant); the core never needs the
	// pruning details.
	AddSecret(commitHeight uint64, secret [32]byte) error

	// SecretAt reconstructs (or looks up) the secret for commitHeight,
	// or an error if this index was never reachable from a stored
	// ancestor (the secret was revoked for a height we haven't been
	// told about, or lies past the chain's highest known index).
	SecretAt(commitHeight uint64) ([32]byte, error)
}

// secretCache wraps a ShaChainStore with a bounded LRU of recently
// reconstructed secrets, avoiding repeated chain descents when
// closing.ClaimRevokedRemoteCommitTxOutputs (§4.3) is asked about the same
// handful of heights while confirmations trickle in. Grounded on
// lightninglabs/neutrino/cache's generic LRU, already required by the
// pack's lnd-family go.mod entries for this exact "small bounded cache of
// derived values" shape.
type secretCache struct {
	store ShaChainStore
	cache *lru.Cache[uint64, [32]byte]
}

// NewSecretCache wraps store with an LRU of the given capacity.
func NewSecretCache(store ShaChainStore, capacity uint64) *secretCache {
	return &secretCache{
		store: store,
		cache: lru.NewCache[uint64, [32]byte](capacity),
	}
}

// AddSecret stores the secret and invalidates nothing (the SHA-chain store
// only grows in a way consistent with its own pruning invariant).
func (c *secretCache) AddSecret(commitHeight uint64, secret [32]byte) error {
	if err := c.store.AddSecret(commitHeight, secret); err != nil {
		return err
	}
	_, _ = c.cache.Put(commitHeight, secret)
	return nil
}

// SecretAt serves from cache when possible, otherwise asks the store and
// remembers the answer.
func (c *secretCache) SecretAt(commitHeight uint64) ([32]byte, error) {
	if v, err := c.cache.Get(commitHeight); err == nil {
		return v, nil
	}
	secret, err := c.store.SecretAt(commitHeight)
	if err != nil {
		return [32]byte{}, fmt.Errorf("secret at height %d: %w",
			commitHeight, err)
	}
	_, _ = c.cache.Put(commitHeight, secret)
	return secret, nil
}
