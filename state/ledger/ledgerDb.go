package ledger

import (
	"time"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"proofofawesome/engine/library"
)

// Ledger is the in-memory cache of everything the server has told one session.
// Each session owns its own Ledger; nothing in here is shared between sessions.
type Ledger struct {
	chains       map[library.ChainID]ChainInfo
	heads        map[library.ChainID]ChainHead
	stats        map[library.ChainID]ChainStats
	memberships  map[library.ChainID]Membership
	achievements map[string]Achievement
	reviews      map[string]map[string]Review
	blocks       map[library.ChainID][]Block
	// confirmed block hash by achievement signature; entries survive a re-sync
	blockedBy    map[string]library.Sha256
	resync       map[library.ChainID]struct{}
	cash         float64
	totals       Totals
	clock        func() time.Time
	mutex        *deadlock.Mutex
}

func New() *Ledger {
	return &Ledger{
		chains:       make(map[library.ChainID]ChainInfo),
		heads:        make(map[library.ChainID]ChainHead),
		stats:        make(map[library.ChainID]ChainStats),
		memberships:  make(map[library.ChainID]Membership),
		achievements: make(map[string]Achievement),
		reviews:      make(map[string]map[string]Review),
		blocks:       make(map[library.ChainID][]Block),
		blockedBy:    make(map[string]library.Sha256),
		resync:       make(map[library.ChainID]struct{}),
		clock:        time.Now,
		mutex:        &deadlock.Mutex{},
	}
}

// SetClock replaces the time source used to stamp new blocks.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.clock = clock
}

func (l *Ledger) SetChainInfo(info ChainInfo) {
	if len(info.UUID) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.chains[info.UUID] = info
}

// SetChainBrief absorbs a chain snapshot. The head and stats it carries replace any cached ones.
func (l *Ledger) SetChainBrief(brief ChainBrief) {
	if len(brief.Info.UUID) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.setChainBrief(brief)
	l.recomputeTotals()
}

func (l *Ledger) setChainBrief(brief ChainBrief) {
	l.chains[brief.Info.UUID] = brief.Info
	if len(brief.Head.ChainUUID) == 0 {
		brief.Head.ChainUUID = brief.Info.UUID
	}
	l.heads[brief.Info.UUID] = brief.Head
	if len(brief.Stats.ChainUUID) == 0 {
		brief.Stats.ChainUUID = brief.Info.UUID
	}
	l.stats[brief.Info.UUID] = brief.Stats
}

func (l *Ledger) SetChainHead(head ChainHead) {
	if len(head.ChainUUID) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.heads[head.ChainUUID] = head
}

func (l *Ledger) SetChainStats(stats ChainStats) {
	if len(stats.ChainUUID) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.stats[stats.ChainUUID] = stats
	l.recomputeTotals()
}

// JoinChain makes the chain known and records the membership unless one already exists.
func (l *Ledger) JoinChain(brief ChainBrief, membership Membership) {
	if len(brief.Info.UUID) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.setChainBrief(brief)
	if _, exists := l.memberships[brief.Info.UUID]; !exists {
		membership.ChainUUID = brief.Info.UUID
		l.memberships[brief.Info.UUID] = membership
	}
	l.recomputeTotals()
}

func (l *Ledger) SetMembership(membership Membership) {
	if len(membership.ChainUUID) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.memberships[membership.ChainUUID] = membership
	l.recomputeTotals()
}

func (l *Ledger) SetMemberships(memberships []Membership) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, m := range memberships {
		if len(m.ChainUUID) > 0 {
			l.memberships[m.ChainUUID] = m
		}
	}
	l.recomputeTotals()
}

// SetBalance overwrites the token count of an existing membership. It does nothing
// if the user is not a member of the chain.
func (l *Ledger) SetBalance(chain library.ChainID, tokens float64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	m, ok := l.memberships[chain]
	if !ok {
		return
	}
	m.Tokens = tokens
	l.memberships[chain] = m
	l.recomputeTotals()
}

// ApplyReward mirrors a locally observed reward until the server pushes the membership.
func (l *Ledger) ApplyReward(chain library.ChainID, reward float64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	m, ok := l.memberships[chain]
	if !ok {
		return
	}
	m.Tokens += reward
	l.memberships[chain] = m
	l.recomputeTotals()
}

func (l *Ledger) SetCash(cash float64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.cash = cash
	l.recomputeTotals()
}

// AddAchievement caches a signed achievement. Re-adding a known signature is a no-op
// and returns false, as does an unsigned achievement.
func (l *Ledger) AddAchievement(a Achievement) bool {
	if len(a.Signature) == 0 {
		return false
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, exists := l.achievements[a.Signature]; exists {
		return false
	}
	l.achievements[a.Signature] = a
	return true
}

func (l *Ledger) AddReview(r Review) {
	if len(r.AchievementSignature) == 0 {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, ok := l.reviews[r.AchievementSignature]; !ok {
		l.reviews[r.AchievementSignature] = make(map[string]Review)
	}
	l.reviews[r.AchievementSignature][r.key()] = r
}

func (l *Ledger) GetAchievement(signature string) (Achievement, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	a, ok := l.achievements[signature]
	return a, ok
}

// GetAchievements returns every cached achievement, newest first.
func (l *Ledger) GetAchievements() []Achievement {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	list := make([]Achievement, 0, len(l.achievements))
	for _, a := range l.achievements {
		list = append(list, a)
	}
	slices.SortStableFunc(list, func(a, b Achievement) bool {
		if a.Timestamp == b.Timestamp {
			return a.Signature < b.Signature
		}
		return a.Timestamp > b.Timestamp
	})
	return list
}

// GetReviews returns the reviews of an achievement, oldest first.
func (l *Ledger) GetReviews(signature string) []Review {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.getReviews(signature)
}

func (l *Ledger) getReviews(signature string) []Review {
	list := make([]Review, 0, len(l.reviews[signature]))
	for _, r := range l.reviews[signature] {
		list = append(list, r)
	}
	slices.SortStableFunc(list, func(a, b Review) bool {
		if a.Timestamp == b.Timestamp {
			return a.key() < b.key()
		}
		return a.Timestamp < b.Timestamp
	})
	return list
}

// ReviewOutcome returns the average reward over all reviews of an achievement and
// whether that average makes it accepted.
func (l *Ledger) ReviewOutcome(signature string) (float64, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.reviewOutcome(signature)
}

func (l *Ledger) reviewOutcome(signature string) (float64, bool) {
	reviews := l.reviews[signature]
	if len(reviews) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Reward
	}
	avg := sum / float64(len(reviews))
	return avg, avg > 0
}

func (l *Ledger) GetChain(chain library.ChainID) (ChainBrief, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.getChain(chain)
}

func (l *Ledger) getChain(chain library.ChainID) (ChainBrief, bool) {
	info, ok := l.chains[chain]
	if !ok {
		return ChainBrief{}, false
	}
	return ChainBrief{Info: info, Head: l.heads[chain], Stats: l.stats[chain]}, true
}

// GetChains returns every known chain ordered by name.
func (l *Ledger) GetChains() []ChainBrief {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	list := make([]ChainBrief, 0, len(l.chains))
	for id := range l.chains {
		brief, _ := l.getChain(id)
		list = append(list, brief)
	}
	slices.SortStableFunc(list, func(a, b ChainBrief) bool {
		if a.Info.Name == b.Info.Name {
			return a.Info.UUID < b.Info.UUID
		}
		return a.Info.Name < b.Info.Name
	})
	return list
}

func (l *Ledger) GetChainHead(chain library.ChainID) (ChainHead, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	h, ok := l.heads[chain]
	return h, ok
}

func (l *Ledger) GetMembership(chain library.ChainID) (Membership, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	m, ok := l.memberships[chain]
	return m, ok
}

// GetBalance returns the user's tokens in chain, zero if not a member.
func (l *Ledger) GetBalance(chain library.ChainID) float64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.memberships[chain].Tokens
}
