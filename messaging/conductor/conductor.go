package conductor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"proofofawesome/engine/actors"
	"proofofawesome/engine/library"
	"proofofawesome/messaging/wire"
	"proofofawesome/state/ledger"
)

// Transport is the bidirectional event channel to the authoritative server.
type Transport interface {
	Send(ctx context.Context, m wire.Message) error
	// Receive delivers decoded inbound messages in arrival order. It is closed when the
	// transport goes away.
	Receive() <-chan wire.Message
	Close() error
}

type Options struct {
	// ResyncSpan is how many blocks below the head are requested after an integrity mismatch.
	ResyncSpan int64
	Clock      func() time.Time
}

// Conductor drives one session: it absorbs inbound messages into the ledger, proposes
// blocks for accepted achievements and sends everything the engine produces.
type Conductor struct {
	wallet    *actors.Wallet
	ledger    *ledger.Ledger
	transport Transport
	stack     *library.Stack[wire.Message]
	// proposals that were sent but not yet confirmed, by achievement signature
	pending   map[string]ledger.Block
	pendingMu *deadlock.Mutex
	opts      Options
}

func New(wallet *actors.Wallet, l *ledger.Ledger, transport Transport, opts Options) (*Conductor, error) {
	if wallet == nil {
		return nil, actors.ErrWalletNotCreated
	}
	if opts.ResyncSpan <= 0 {
		opts.ResyncSpan = 100
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	l.SetClock(opts.Clock)
	return &Conductor{
		wallet:    wallet,
		ledger:    l,
		transport: transport,
		stack:     library.NewStack[wire.Message](8),
		pending:   make(map[string]ledger.Block),
		pendingMu: &deadlock.Mutex{},
		opts:      opts,
	}, nil
}

func (c *Conductor) Ledger() *ledger.Ledger {
	return c.ledger
}

// Run handles inbound messages one at a time until ctx is done or the transport closes.
func (c *Conductor) Run(ctx context.Context) error {
	inbound := c.transport.Receive()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-inbound:
			if !ok {
				library.LogCLI("transport closed, conductor stopping", 3)
				return nil
			}
			c.stack.Push(m)
			for {
				next, ok := c.stack.Pop()
				if !ok {
					break
				}
				if err := c.Handle(ctx, next); err != nil {
					library.LogCLI(fmt.Sprintf("handling %s failed: %s", next.Kind(), err.Error()), 2)
				}
			}
		}
	}
}

// Register announces a new identity to the server.
func (c *Conductor) Register(ctx context.Context, name string) error {
	return c.transport.Send(ctx, wire.Register{Name: name, PublicKey: c.wallet.Account()})
}

// SignIn asks the server for the state of an identity it already knows.
func (c *Conductor) SignIn(ctx context.Context, name string) error {
	return c.transport.Send(ctx, wire.SignIn{Name: name, PublicKey: c.wallet.Account()})
}

// ProveIdentity answers a self-authentication challenge.
func (c *Conductor) ProveIdentity(ctx context.Context) (actors.IdentityProof, error) {
	proof, err := c.wallet.CreateIdentityProof()
	if err != nil {
		return actors.IdentityProof{}, err
	}
	return proof, c.transport.Send(ctx, wire.IdentityProof(proof))
}

// SubmitAchievement signs a new achievement on chain, caches it and sends it for review.
func (c *Conductor) SubmitAchievement(ctx context.Context, chain library.ChainID, description, evidence string) (ledger.Achievement, error) {
	address, err := c.wallet.DeriveAddress(chain)
	if err != nil {
		return ledger.Achievement{}, err
	}
	a := ledger.Achievement{
		ChainUUID:     chain,
		UserPublicKey: c.wallet.Account(),
		UserAddress:   address,
		Description:   description,
		EvidenceImage: evidence,
		Timestamp:     c.opts.Clock().UnixMilli(),
	}
	a.Signature, err = c.wallet.SignAchievement(a)
	if err != nil {
		return ledger.Achievement{}, err
	}
	c.ledger.AddAchievement(a)
	return a, c.transport.Send(ctx, wire.NewAchievement(a))
}

// Pending returns the block proposed for an achievement that the server has not confirmed yet.
func (c *Conductor) Pending(signature string) (ledger.Block, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	b, ok := c.pending[signature]
	return b, ok
}

// Handle applies a single inbound message.
func (c *Conductor) Handle(ctx context.Context, m wire.Message) error {
	switch msg := m.(type) {
	case wire.RegisterSuccess:
		return c.transport.Send(ctx, wire.GetPublicChains{})
	case wire.SignInSuccess:
		for _, brief := range msg.ChainBriefs {
			if err := c.joined(brief); err != nil {
				return err
			}
		}
		c.ledger.SetMemberships(msg.Memberships)
		return c.transport.Send(ctx, wire.GetPublicChains{})
	case wire.SignInError:
		return fmt.Errorf("sign in rejected: %s", string(msg))
	case wire.PublicChains:
		return c.handlePublicChains(ctx, msg)
	case wire.JoinChainSuccess:
		return c.joined(ledger.ChainBrief(msg))
	case wire.ChainInfo:
		c.ledger.SetChainInfo(ledger.ChainInfo(msg))
	case wire.ChainHead:
		c.ledger.SetChainHead(ledger.ChainHead(msg))
	case wire.ChainStats:
		c.ledger.SetChainStats(ledger.ChainStats(msg))
	case wire.ChainBrief:
		c.ledger.SetChainBrief(ledger.ChainBrief(msg))
	case wire.MembershipUpdate:
		c.ledger.SetMembership(ledger.Membership(msg))
	case wire.Memberships:
		c.ledger.SetMemberships(msg)
	case wire.Achievement:
		return c.absorbAchievement(ctx, ledger.Achievement(msg))
	case wire.Achievements:
		for _, a := range msg {
			if err := c.absorbAchievement(ctx, a); err != nil {
				return err
			}
		}
	case wire.VerificationResult:
		c.ledger.AddReview(msg.Review())
		return c.propose(ctx, msg.AchievementSignature)
	case wire.AchievementReviews:
		var signatures []string
		seen := make(map[string]struct{})
		for _, r := range msg {
			c.ledger.AddReview(r)
			if _, ok := seen[r.AchievementSignature]; !ok {
				seen[r.AchievementSignature] = struct{}{}
				signatures = append(signatures, r.AchievementSignature)
			}
		}
		for _, signature := range signatures {
			if err := c.propose(ctx, signature); err != nil {
				return err
			}
		}
	case wire.BlockCreated:
		return c.confirmed(ctx, ledger.Block(msg))
	case wire.Blocks:
		return c.handleBlocks(ctx, msg)
	case wire.ServerError:
		library.LogCLI("server error: "+string(msg), 2)
	default:
		return fmt.Errorf("%w: %s is not an inbound message", wire.ErrUnknownKind, m.Kind())
	}
	return nil
}

func (c *Conductor) joined(brief ledger.ChainBrief) error {
	address, err := c.wallet.DeriveAddress(brief.Info.UUID)
	if err != nil {
		return err
	}
	c.ledger.JoinChain(brief, ledger.Membership{
		UserPublicKey: c.wallet.Account(),
		ChainUUID:     brief.Info.UUID,
		Address:       address,
	})
	return nil
}

func (c *Conductor) handlePublicChains(ctx context.Context, chains wire.PublicChains) error {
	for _, brief := range chains {
		_, member := c.ledger.GetMembership(brief.Info.UUID)
		c.ledger.SetChainBrief(brief)
		if member {
			continue
		}
		address, err := c.wallet.DeriveAddress(brief.Info.UUID)
		if err != nil {
			return err
		}
		if err := c.transport.Send(ctx, wire.JoinChain{ChainUUID: brief.Info.UUID, Address: address}); err != nil {
			return err
		}
	}
	return nil
}

// absorbAchievement caches an achievement the server pushed. Its reviews may already
// be cached, so it is proposed straight away if they accept it.
func (c *Conductor) absorbAchievement(ctx context.Context, a ledger.Achievement) error {
	if !a.Verify() {
		library.LogCLI(fmt.Sprintf("dropping achievement %s, signature does not verify", a.Signature), 2)
		return nil
	}
	c.ledger.AddAchievement(a)
	return c.propose(ctx, a.Signature)
}

// propose builds and sends a block for an achievement once its reviews accept it.
func (c *Conductor) propose(ctx context.Context, signature string) error {
	a, ok := c.ledger.GetAchievement(signature)
	if !ok {
		return nil
	}
	if _, waiting := c.Pending(signature); waiting {
		return nil
	}
	if _, confirmed := c.ledger.AchievementBlock(signature); confirmed {
		return nil
	}
	reward, accepted := c.ledger.ReviewOutcome(signature)
	if !accepted {
		return nil
	}
	b, ok := c.ledger.CreateBlock(a.ChainUUID, a)
	if !ok {
		return nil
	}
	c.pendingMu.Lock()
	c.pending[signature] = b
	c.pendingMu.Unlock()
	if a.UserPublicKey == c.wallet.Account() {
		c.ledger.ApplyReward(a.ChainUUID, reward)
	}
	library.LogCLI(fmt.Sprintf("proposing block %d on chain %s for achievement %s", b.Height, b.ChainUUID, signature), 4)
	return c.transport.Send(ctx, wire.NewBlock(b))
}

func (c *Conductor) confirmed(ctx context.Context, b ledger.Block) error {
	c.pendingMu.Lock()
	delete(c.pending, b.Achievement)
	c.pendingMu.Unlock()
	err := c.ledger.AddBlock(b)
	if errors.Is(err, ledger.ErrIntegrityMismatch) {
		library.LogCLI(err.Error(), 2)
		return c.resync(ctx, b.ChainUUID, b.Height)
	}
	return err
}

func (c *Conductor) handleBlocks(ctx context.Context, blocks wire.Blocks) error {
	byChain := make(map[library.ChainID][]ledger.Block)
	var order []library.ChainID
	for _, b := range blocks {
		if _, ok := byChain[b.ChainUUID]; !ok {
			order = append(order, b.ChainUUID)
		}
		byChain[b.ChainUUID] = append(byChain[b.ChainUUID], b)
	}
	for _, chain := range order {
		err := c.ledger.MergeBlocks(chain, byChain[chain])
		if errors.Is(err, ledger.ErrIntegrityMismatch) {
			library.LogCLI(err.Error(), 2)
			var top int64
			for _, b := range byChain[chain] {
				if b.Height > top {
					top = b.Height
				}
			}
			if err := c.resync(ctx, chain, top); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// resync asks the server for the last ResyncSpan blocks up to at least height.
func (c *Conductor) resync(ctx context.Context, chain library.ChainID, height int64) error {
	if head, ok := c.ledger.GetChainHead(chain); ok && head.LatestBlockHeight > height {
		height = head.LatestBlockHeight
	}
	from := height - c.opts.ResyncSpan
	if from < 0 {
		from = 0
	}
	library.LogCLI(fmt.Sprintf("re-syncing chain %s blocks %d to %d", chain, from, height), 3)
	return c.transport.Send(ctx, wire.GetBlocks{ChainUUID: chain, FromHeight: from, ToHeight: height})
}
