package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyLedger(t *testing.T) (*Ledger, Achievement) {
	t.Helper()
	l := New()
	l.SetClock(fixedClock(1700000000500))
	l.SetChainBrief(brief(chainA, "Running", 7, "headhash", 1))
	a := achievement(chainA, "sig-1", 1700000000000)
	require.True(t, l.AddAchievement(a))
	l.AddReview(Review{AchievementSignature: a.Signature, ReviewerPublicKey: "r1", Reward: 5})
	return l, a
}

func chainOf(chain string, from int64, n int, prev string) []Block {
	var blocks []Block
	for i := 0; i < n; i++ {
		b := Block{
			ChainUUID:    chain,
			Height:       from + int64(i),
			PreviousHash: prev,
			Transactions: []string{},
			Achievement:  "a",
			Timestamp:    int64(1000 + i),
		}
		b.Hash = b.ComputeHash()
		prev = b.Hash
		blocks = append(blocks, b)
	}
	return blocks
}

func TestCreateBlockExtendsHead(t *testing.T) {
	l, a := readyLedger(t)
	b, ok := l.CreateBlock(chainA, a)
	require.True(t, ok)
	assert.Equal(t, int64(8), b.Height)
	assert.Equal(t, "headhash", b.PreviousHash)
	assert.Equal(t, a.Signature, b.Achievement)
	assert.Equal(t, "", b.MerkleRoot)
	assert.Empty(t, b.Transactions)
	assert.Equal(t, int64(1700000000500), b.Timestamp)
	assert.Equal(t, b.ComputeHash(), b.Hash)
	assert.Regexp(t, `^[0-9a-f]{64}$`, b.Hash)

	// building is not committing
	assert.Empty(t, l.GetBlocks(chainA, 0))
	head, _ := l.GetChainHead(chainA)
	assert.Equal(t, int64(7), head.LatestBlockHeight)
}

func TestBlockHashIsOverItsFields(t *testing.T) {
	b := Block{ChainUUID: "c", Achievement: "a", Height: 2, PreviousHash: "p", Timestamp: 9}
	// sha256("ca2p9")
	assert.Equal(t, "9db291b40afa9a97817d5766a914b5240a13cb5661eeba6296a018b09415d764", b.ComputeHash())
}

func TestCreateBlockNotReady(t *testing.T) {
	t.Run("unknown achievement", func(t *testing.T) {
		l, _ := readyLedger(t)
		_, ok := l.CreateBlock(chainA, achievement(chainA, "other", 1))
		assert.False(t, ok)
	})
	t.Run("no positive review", func(t *testing.T) {
		l, _ := readyLedger(t)
		a := achievement(chainA, "sig-2", 2)
		l.AddAchievement(a)
		_, ok := l.CreateBlock(chainA, a)
		assert.False(t, ok)
		l.AddReview(Review{AchievementSignature: a.Signature, ReviewerPublicKey: "r1", Reward: 0})
		_, ok = l.CreateBlock(chainA, a)
		assert.False(t, ok)
	})
	t.Run("achievement on another chain", func(t *testing.T) {
		l, a := readyLedger(t)
		l.SetChainBrief(brief(chainB, "Bouldering", 1, "b", 1))
		_, ok := l.CreateBlock(chainB, a)
		assert.False(t, ok)
	})
	t.Run("unknown chain", func(t *testing.T) {
		l, _ := readyLedger(t)
		a := achievement(chainB, "sig-b", 2)
		l.AddAchievement(a)
		l.AddReview(Review{AchievementSignature: a.Signature, ReviewerPublicKey: "r1", Reward: 1})
		_, ok := l.CreateBlock(chainB, a)
		assert.False(t, ok)
	})
}

func TestAddBlockAppendsAndAdvancesHead(t *testing.T) {
	l, a := readyLedger(t)
	first, ok := l.CreateBlock(chainA, a)
	require.True(t, ok)
	require.NoError(t, l.AddBlock(first))
	// re-delivery of the tail
	require.NoError(t, l.AddBlock(first))
	assert.Len(t, l.GetBlocks(chainA, 0), 1)

	head, _ := l.GetChainHead(chainA)
	assert.Equal(t, first.Height, head.LatestBlockHeight)
	assert.Equal(t, first.Hash, head.LatestBlockHash)

	a2 := achievement(chainA, "sig-2", 2)
	l.AddAchievement(a2)
	l.AddReview(Review{AchievementSignature: "sig-2", Reward: 1})
	second, ok := l.CreateBlock(chainA, a2)
	require.True(t, ok)
	assert.Equal(t, first.Height+1, second.Height)
	assert.Equal(t, first.Hash, second.PreviousHash)
	require.NoError(t, l.AddBlock(second))

	blocks := l.GetBlocks(chainA, 1)
	require.Len(t, blocks, 1)
	assert.Equal(t, second.Hash, blocks[0].Hash)
	blocks = l.GetBlocks(chainA, 10)
	require.Len(t, blocks, 2)
	assert.Equal(t, first.Hash, blocks[0].Hash)
}

func TestAddBlockIntegrityMismatch(t *testing.T) {
	l := New()
	blocks := chainOf(chainA, 1, 3, "")
	require.NoError(t, l.AddBlock(blocks[0]))
	require.NoError(t, l.AddBlock(blocks[1]))

	t.Run("skipped height", func(t *testing.T) {
		skipped := chainOf(chainA, 4, 1, blocks[1].Hash)[0]
		err := l.AddBlock(skipped)
		assert.ErrorIs(t, err, ErrIntegrityMismatch)
		assert.True(t, l.NeedsResync(chainA))
		assert.Empty(t, l.GetBlocks(chainA, 0))
		assert.Equal(t, []string{chainA}, l.ChainsNeedingResync())
	})

	t.Run("replace clears the flag", func(t *testing.T) {
		require.NoError(t, l.ReplaceBlocks(chainA, []Block{blocks[2], blocks[0], blocks[1]}))
		assert.False(t, l.NeedsResync(chainA))
		got := l.GetBlocks(chainA, 0)
		require.Len(t, got, 3)
		assert.Equal(t, int64(1), got[0].Height)
		assert.Equal(t, int64(3), got[2].Height)
	})

	t.Run("wrong previous hash", func(t *testing.T) {
		forked := chainOf(chainA, 4, 1, "not-the-tail")[0]
		assert.ErrorIs(t, l.AddBlock(forked), ErrIntegrityMismatch)
		assert.True(t, l.NeedsResync(chainA))
	})

	t.Run("hash does not match fields", func(t *testing.T) {
		l := New()
		b := chainOf(chainB, 1, 1, "")[0]
		b.Timestamp++
		assert.ErrorIs(t, l.AddBlock(b), ErrIntegrityMismatch)
	})
}

func TestAddBlockChecksHeadWhenNoLocalBlocks(t *testing.T) {
	l := New()
	l.SetChainHead(ChainHead{ChainUUID: chainA, LatestBlockHash: "server-tail", LatestBlockHeight: 4})
	b := chainOf(chainA, 5, 1, "something-else")[0]
	assert.ErrorIs(t, l.AddBlock(b), ErrIntegrityMismatch)

	l = New()
	l.SetChainHead(ChainHead{ChainUUID: chainA, LatestBlockHash: "server-tail", LatestBlockHeight: 4})
	b = chainOf(chainA, 5, 1, "server-tail")[0]
	assert.NoError(t, l.AddBlock(b))
}

func TestMergeBlocks(t *testing.T) {
	blocks := chainOf(chainA, 1, 5, "")
	l := New()
	require.NoError(t, l.MergeBlocks(chainA, blocks[:3]))
	require.NoError(t, l.MergeBlocks(chainA, blocks[1:]))
	got := l.GetBlocks(chainA, 0)
	require.Len(t, got, 5)
	for i, b := range got {
		assert.Equal(t, blocks[i].Hash, b.Hash)
	}

	broken := chainOf(chainA, 1, 2, "")
	broken[1].PreviousHash = "x"
	broken[1].Hash = broken[1].ComputeHash()
	assert.ErrorIs(t, l.MergeBlocks(chainA, broken), ErrIntegrityMismatch)
	assert.True(t, l.NeedsResync(chainA))

	assert.Error(t, l.ReplaceBlocks(chainB, blocks))
}

func TestConfirmedAchievementIsNotProposedAgain(t *testing.T) {
	l, a := readyLedger(t)
	b, ok := l.CreateBlock(chainA, a)
	require.True(t, ok)
	_, blocked := l.AchievementBlock(a.Signature)
	assert.False(t, blocked, "a proposal is not a confirmation")

	require.NoError(t, l.AddBlock(b))
	hash, blocked := l.AchievementBlock(a.Signature)
	require.True(t, blocked)
	assert.Equal(t, b.Hash, hash)

	l.AddReview(Review{AchievementSignature: a.Signature, ReviewerPublicKey: "r2", Reward: 2})
	_, ok = l.CreateBlock(chainA, a)
	assert.False(t, ok)
}

func TestReplaceBlocksIndexesAchievements(t *testing.T) {
	l := New()
	blocks := chainOf(chainA, 1, 2, "")
	blocks[1].Achievement = "sig-2"
	blocks[1].Hash = blocks[1].ComputeHash()
	require.NoError(t, l.ReplaceBlocks(chainA, blocks))
	hash, ok := l.AchievementBlock("sig-2")
	require.True(t, ok)
	assert.Equal(t, blocks[1].Hash, hash)
	_, ok = l.AchievementBlock("unknown")
	assert.False(t, ok)
}
