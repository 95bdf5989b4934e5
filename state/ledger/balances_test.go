package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetWorthFollowsMembershipsAndPrices(t *testing.T) {
	l := New()
	l.SetCash(10)
	l.SetChainBrief(brief(chainA, "Running", 0, "", 2))
	l.SetChainBrief(brief(chainB, "Bouldering", 0, "", 0.5))
	l.SetMemberships([]Membership{
		{ChainUUID: chainA, Tokens: 3},
		{ChainUUID: chainB, Tokens: 4},
	})
	assert.Equal(t, Totals{TotalBalance: 7, Cash: 10, NetWorth: 10 + 3*2 + 4*0.5}, l.Totals())

	l.SetMembership(Membership{ChainUUID: chainA, Tokens: 5})
	assert.Equal(t, 10+5*2+4*0.5, l.Totals().NetWorth)

	// the latest stats are used, never a price captured earlier
	l.SetChainStats(ChainStats{ChainUUID: chainB, Price: 3})
	assert.Equal(t, 10+5*2+4*3.0, l.Totals().NetWorth)
	assert.Equal(t, 9.0, l.Totals().TotalBalance)
}

func TestSetBalanceAndRewardNeedMembership(t *testing.T) {
	l := New()
	l.SetBalance(chainA, 5)
	l.ApplyReward(chainA, 5)
	assert.Zero(t, l.GetBalance(chainA))

	l.JoinChain(brief(chainA, "Running", 0, "", 1), Membership{UserPublicKey: "pk", Address: "addr"})
	assert.Zero(t, l.GetBalance(chainA))
	l.ApplyReward(chainA, 2.5)
	assert.Equal(t, 2.5, l.GetBalance(chainA))
	l.SetBalance(chainA, 1)
	assert.Equal(t, 1.0, l.Totals().TotalBalance)

	// joining again keeps the existing position
	l.JoinChain(brief(chainA, "Running", 0, "", 1), Membership{})
	m, ok := l.GetMembership(chainA)
	assert.True(t, ok)
	assert.Equal(t, "addr", m.Address)
	assert.Equal(t, 1.0, m.Tokens)
}
