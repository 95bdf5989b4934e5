package relays

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"proofofawesome/engine/actors"
)

func TestNewRelaysNeedsWallet(t *testing.T) {
	_, err := newRelays(nil, nil)
	assert.ErrorIs(t, err, actors.ErrWalletNotCreated)
}

func TestFirstSightingIsBounded(t *testing.T) {
	r, err := newRelays([]string{"wss://relay.example"}, testWallet(t))
	require.NoError(t, err)

	assert.True(t, r.firstSighting("a"))
	assert.False(t, r.firstSighting("a"))

	for i := 0; i < seenEvents*2; i++ {
		r.firstSighting(strconv.Itoa(i))
	}
	assert.Equal(t, seenEvents, r.seen.Len())
	// the oldest ids have been forgotten, the latest are still known
	assert.True(t, r.firstSighting("a"))
	assert.False(t, r.firstSighting(strconv.Itoa(seenEvents*2-1)))
}
