package wire

import (
	"golang.org/x/exp/slices"
)

// Kind names a message on the event channel. The values are the event names the
// server speaks.
type Kind string

// outbound
const (
	KindRegister        Kind = "register"
	KindSignIn          Kind = "sign in"
	KindGetPublicChains Kind = "get public chains"
	KindJoinChain       Kind = "join chain"
	KindGetBlocks       Kind = "get blocks"
	KindNewAchievement  Kind = "new achievement"
	KindNewBlock        Kind = "new block"
	KindIdentityProof   Kind = "identity proof"
)

// inbound
const (
	KindRegisterSuccess    Kind = "register success"
	KindSignInSuccess      Kind = "sign in success"
	KindSignInError        Kind = "sign in error"
	KindPublicChains       Kind = "public chains"
	KindJoinChainSuccess   Kind = "join chain success"
	KindChainInfo          Kind = "chain info"
	KindChainHead          Kind = "chain head"
	KindChainStats         Kind = "chain stats"
	KindChainBrief         Kind = "chain brief"
	KindMembershipUpdate   Kind = "membership update"
	KindMemberships        Kind = "memberships"
	KindAchievement        Kind = "achievement"
	KindAchievements       Kind = "achievements"
	KindVerificationResult Kind = "achievement verification result"
	KindAchievementReviews Kind = "achievement reviews"
	KindBlockCreated       Kind = "new block created"
	KindBlocks             Kind = "blocks"
	KindError              Kind = "error"
)

var outboundKinds = []Kind{
	KindRegister,
	KindSignIn,
	KindGetPublicChains,
	KindJoinChain,
	KindGetBlocks,
	KindNewAchievement,
	KindNewBlock,
	KindIdentityProof,
}

var inboundKinds = []Kind{
	KindRegisterSuccess,
	KindSignInSuccess,
	KindSignInError,
	KindPublicChains,
	KindJoinChainSuccess,
	KindChainInfo,
	KindChainHead,
	KindChainStats,
	KindChainBrief,
	KindMembershipUpdate,
	KindMemberships,
	KindAchievement,
	KindAchievements,
	KindVerificationResult,
	KindAchievementReviews,
	KindBlockCreated,
	KindBlocks,
	KindError,
}

// Inbound reports whether k is produced by the server.
func (k Kind) Inbound() bool {
	return slices.Contains(inboundKinds, k)
}

// Outbound reports whether k is produced by the client.
func (k Kind) Outbound() bool {
	return slices.Contains(outboundKinds, k)
}
