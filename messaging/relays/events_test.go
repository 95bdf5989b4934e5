package relays

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"proofofawesome/engine/actors"
	"proofofawesome/messaging/wire"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testWallet(t *testing.T) *actors.Wallet {
	t.Helper()
	w, err := actors.CreateWallet(testMnemonic, "")
	require.NoError(t, err)
	return w
}

func TestEventCarriesMessage(t *testing.T) {
	w := testWallet(t)
	head := wire.ChainHead{ChainUUID: "running", LatestBlockHash: "h", LatestBlockHeight: 9}
	e, err := eventFor(w, head, time.Unix(1700000000, 0))
	require.NoError(t, err)

	assert.Equal(t, EventKind, e.Kind)
	assert.Equal(t, w.NostrPubKey(), e.PubKey)
	assert.Equal(t, nostr.Timestamp(1700000000), e.CreatedAt)
	kind, ok := firstTag(&e, "t")
	require.True(t, ok)
	assert.Equal(t, "chain head", kind)
	chain, ok := firstTag(&e, "chain")
	require.True(t, ok)
	assert.Equal(t, "running", chain)

	m, err := messageFrom(&e)
	require.NoError(t, err)
	assert.Equal(t, head, m)
}

func TestEventWithoutChainTag(t *testing.T) {
	e, err := eventFor(testWallet(t), wire.RegisterSuccess{}, time.Now())
	require.NoError(t, err)
	_, ok := firstTag(&e, "chain")
	assert.False(t, ok)
}

func TestMessageFromRejects(t *testing.T) {
	w := testWallet(t)
	head := wire.ChainHead{ChainUUID: "running", LatestBlockHash: "h", LatestBlockHeight: 9}

	t.Run("tampered content", func(t *testing.T) {
		e, err := eventFor(w, head, time.Now())
		require.NoError(t, err)
		e.Content = `{"id":"x","kind":"chain head","payload":{"chainUuid":"running","latestBlockHeight":10}}`
		_, err = messageFrom(&e)
		assert.Error(t, err)
	})
	t.Run("other kind", func(t *testing.T) {
		e, err := eventFor(w, head, time.Now())
		require.NoError(t, err)
		e.Kind = 1
		_, err = messageFrom(&e)
		assert.Error(t, err)
	})
	t.Run("mislabelled", func(t *testing.T) {
		e, err := eventFor(w, head, time.Now())
		require.NoError(t, err)
		e.Tags[0] = nostr.Tag{"t", "chain stats"}
		require.NoError(t, w.SignNostrEvent(&e))
		_, err = messageFrom(&e)
		assert.Error(t, err)
	})
	t.Run("client message", func(t *testing.T) {
		e, err := eventFor(w, wire.GetPublicChains{}, time.Now())
		require.NoError(t, err)
		_, err = messageFrom(&e)
		assert.Error(t, err)
	})
}

func TestEventForRejectsInvalidMessage(t *testing.T) {
	_, err := eventFor(testWallet(t), wire.JoinChain{}, time.Now())
	assert.ErrorIs(t, err, wire.ErrInvalidPayload)
}
