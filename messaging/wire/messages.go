package wire

import (
	"fmt"

	"proofofawesome/engine/actors"
	"proofofawesome/engine/library"
	"proofofawesome/state/ledger"
)

// Message is one of the payload types in this file. The set is closed: Decode only
// ever produces these types.
type Message interface {
	Kind() Kind
}

// ChainScoped is implemented by messages that concern a single chain.
type ChainScoped interface {
	Chain() library.ChainID
}

type validator interface {
	validate() error
}

// UserInfo is the register / sign in payload.
type UserInfo struct {
	Name      string          `json:"name"`
	PublicKey library.Account `json:"publicKey"`
}

type Register UserInfo

func (Register) Kind() Kind { return KindRegister }

func (m Register) validate() error { return UserInfo(m).validate() }

type SignIn UserInfo

func (SignIn) Kind() Kind { return KindSignIn }

func (m SignIn) validate() error { return UserInfo(m).validate() }

func (u UserInfo) validate() error {
	if !library.IsCompressedPubKey(u.PublicKey) {
		return fmt.Errorf("public key %q is not a compressed public key", u.PublicKey)
	}
	return nil
}

type GetPublicChains struct{}

func (GetPublicChains) Kind() Kind { return KindGetPublicChains }

type JoinChain struct {
	ChainUUID library.ChainID `json:"chainUuid"`
	Address   library.Address `json:"address"`
}

func (JoinChain) Kind() Kind { return KindJoinChain }

func (m JoinChain) Chain() library.ChainID { return m.ChainUUID }

func (m JoinChain) validate() error { return requireChain(m.ChainUUID) }

// GetBlocks asks for the blocks of a chain in [FromHeight, ToHeight].
type GetBlocks struct {
	ChainUUID  library.ChainID `json:"chainUuid"`
	FromHeight int64           `json:"fromHeight"`
	ToHeight   int64           `json:"toHeight"`
}

func (GetBlocks) Kind() Kind { return KindGetBlocks }

func (m GetBlocks) Chain() library.ChainID { return m.ChainUUID }

func (m GetBlocks) validate() error {
	if m.FromHeight < 0 || m.ToHeight < m.FromHeight {
		return fmt.Errorf("invalid block range [%d, %d]", m.FromHeight, m.ToHeight)
	}
	return requireChain(m.ChainUUID)
}

type NewAchievement ledger.Achievement

func (NewAchievement) Kind() Kind { return KindNewAchievement }

func (m NewAchievement) Chain() library.ChainID { return m.ChainUUID }

func (m NewAchievement) validate() error {
	if len(m.Signature) == 0 {
		return fmt.Errorf("achievement is not signed")
	}
	return requireChain(m.ChainUUID)
}

type NewBlock ledger.Block

func (NewBlock) Kind() Kind { return KindNewBlock }

func (m NewBlock) Chain() library.ChainID { return m.ChainUUID }

func (m NewBlock) validate() error { return validateBlock(ledger.Block(m)) }

type IdentityProof actors.IdentityProof

func (IdentityProof) Kind() Kind { return KindIdentityProof }

type RegisterSuccess struct{}

func (RegisterSuccess) Kind() Kind { return KindRegisterSuccess }

type SignInSuccess struct {
	Memberships []ledger.Membership `json:"memberships"`
	ChainBriefs []ledger.ChainBrief `json:"chainBriefs"`
}

func (SignInSuccess) Kind() Kind { return KindSignInSuccess }

type SignInError string

func (SignInError) Kind() Kind { return KindSignInError }

type PublicChains []ledger.ChainBrief

func (PublicChains) Kind() Kind { return KindPublicChains }

func (m PublicChains) validate() error {
	for _, brief := range m {
		if err := requireChain(brief.Info.UUID); err != nil {
			return err
		}
	}
	return nil
}

type JoinChainSuccess ledger.ChainBrief

func (JoinChainSuccess) Kind() Kind { return KindJoinChainSuccess }

func (m JoinChainSuccess) Chain() library.ChainID { return m.Info.UUID }

func (m JoinChainSuccess) validate() error { return requireChain(m.Info.UUID) }

type ChainInfo ledger.ChainInfo

func (ChainInfo) Kind() Kind { return KindChainInfo }

func (m ChainInfo) Chain() library.ChainID { return m.UUID }

func (m ChainInfo) validate() error { return requireChain(m.UUID) }

type ChainHead ledger.ChainHead

func (ChainHead) Kind() Kind { return KindChainHead }

func (m ChainHead) Chain() library.ChainID { return m.ChainUUID }

func (m ChainHead) validate() error {
	if m.LatestBlockHeight < 0 {
		return fmt.Errorf("negative head height %d", m.LatestBlockHeight)
	}
	return requireChain(m.ChainUUID)
}

type ChainStats ledger.ChainStats

func (ChainStats) Kind() Kind { return KindChainStats }

func (m ChainStats) Chain() library.ChainID { return m.ChainUUID }

func (m ChainStats) validate() error { return requireChain(m.ChainUUID) }

type ChainBrief ledger.ChainBrief

func (ChainBrief) Kind() Kind { return KindChainBrief }

func (m ChainBrief) Chain() library.ChainID { return m.Info.UUID }

func (m ChainBrief) validate() error { return requireChain(m.Info.UUID) }

type MembershipUpdate ledger.Membership

func (MembershipUpdate) Kind() Kind { return KindMembershipUpdate }

func (m MembershipUpdate) Chain() library.ChainID { return m.ChainUUID }

func (m MembershipUpdate) validate() error { return requireChain(m.ChainUUID) }

type Memberships []ledger.Membership

func (Memberships) Kind() Kind { return KindMemberships }

func (m Memberships) validate() error {
	for _, membership := range m {
		if err := requireChain(membership.ChainUUID); err != nil {
			return err
		}
	}
	return nil
}

// Achievement is an achievement the server already holds, such as one submitted from
// an earlier session. Only achievements whose signature verifies get past Decode.
type Achievement ledger.Achievement

func (Achievement) Kind() Kind { return KindAchievement }

func (m Achievement) Chain() library.ChainID { return m.ChainUUID }

func (m Achievement) validate() error { return validateAchievement(ledger.Achievement(m)) }

type Achievements []ledger.Achievement

func (Achievements) Kind() Kind { return KindAchievements }

func (m Achievements) validate() error {
	for _, a := range m {
		if err := validateAchievement(a); err != nil {
			return err
		}
	}
	return nil
}

// VerificationResult is the single reviewer outcome older servers send. It is
// only accepted at the boundary and is turned into a ledger.Review straight away.
type VerificationResult struct {
	AchievementSignature string  `json:"achievementSignature"`
	Reward               float64 `json:"reward"`
	Message              string  `json:"message"`
}

func (VerificationResult) Kind() Kind { return KindVerificationResult }

func (m VerificationResult) validate() error {
	if len(m.AchievementSignature) == 0 {
		return fmt.Errorf("verification result has no achievement signature")
	}
	return nil
}

// Review converts the legacy result into a review with no reviewer.
func (m VerificationResult) Review() ledger.Review {
	return ledger.Review{
		AchievementSignature: m.AchievementSignature,
		Comment:              m.Message,
		Reward:               m.Reward,
	}
}

type AchievementReviews []ledger.Review

func (AchievementReviews) Kind() Kind { return KindAchievementReviews }

func (m AchievementReviews) validate() error {
	for _, r := range m {
		if len(r.AchievementSignature) == 0 {
			return fmt.Errorf("review has no achievement signature")
		}
	}
	return nil
}

// BlockCreated is a block the server has confirmed.
type BlockCreated ledger.Block

func (BlockCreated) Kind() Kind { return KindBlockCreated }

func (m BlockCreated) Chain() library.ChainID { return m.ChainUUID }

func (m BlockCreated) validate() error { return validateBlock(ledger.Block(m)) }

type Blocks []ledger.Block

func (Blocks) Kind() Kind { return KindBlocks }

func (m Blocks) validate() error {
	for _, b := range m {
		if err := validateBlock(b); err != nil {
			return err
		}
	}
	return nil
}

type ServerError string

func (ServerError) Kind() Kind { return KindError }

func requireChain(chain library.ChainID) error {
	if len(chain) == 0 {
		return fmt.Errorf("missing chain uuid")
	}
	return nil
}

func validateBlock(b ledger.Block) error {
	if b.Height < 0 {
		return fmt.Errorf("negative block height %d", b.Height)
	}
	if len(b.Hash) == 0 {
		return fmt.Errorf("block %d has no hash", b.Height)
	}
	return requireChain(b.ChainUUID)
}

func validateAchievement(a ledger.Achievement) error {
	if err := requireChain(a.ChainUUID); err != nil {
		return err
	}
	if len(a.Signature) == 0 {
		return fmt.Errorf("achievement is not signed")
	}
	if !a.Verify() {
		return fmt.Errorf("achievement %s does not verify against %s", a.Signature, a.UserPublicKey)
	}
	return nil
}
