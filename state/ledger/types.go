package ledger

import (
	"strconv"

	"proofofawesome/engine/library"
)

type ChainInfo struct {
	UUID        library.ChainID `json:"uuid"`
	Name        string          `json:"name"`
	LogoURL     string          `json:"logoUrl"`
	Description string          `json:"description"`
	Rule        string          `json:"rule"`
}

type ChainHead struct {
	ChainUUID         library.ChainID `json:"chainUuid"`
	LatestBlockHash   library.Sha256  `json:"latestBlockHash"`
	LatestBlockHeight int64           `json:"latestBlockHeight"`
	Timestamp         int64           `json:"timestamp"`
}

// ChainStats is replaced wholesale on every push from the server.
type ChainStats struct {
	ChainUUID  library.ChainID `json:"chainUuid"`
	Price      float64         `json:"price"`
	Volume     float64         `json:"volume"`
	MarketCap  float64         `json:"marketCap"`
	NumMembers int64           `json:"numMembers"`
	NumBlocks  int64           `json:"numBlocks"`
}

type ChainBrief struct {
	Info  ChainInfo  `json:"info"`
	Head  ChainHead  `json:"head"`
	Stats ChainStats `json:"stats"`
}

// Membership is the user's token position within one chain.
type Membership struct {
	UserPublicKey library.Account `json:"userPublicKey"`
	ChainUUID     library.ChainID `json:"chainUuid"`
	Address       library.Address `json:"address"`
	Tokens        float64         `json:"tokens"`
}

// Achievement is a signed claim submitted to a chain. It is keyed by Signature.
type Achievement struct {
	ChainUUID     library.ChainID `json:"chainUuid"`
	UserPublicKey library.Account `json:"userPublicKey"`
	UserAddress   library.Address `json:"userAddress"`
	Description   string          `json:"description"`
	EvidenceImage string          `json:"evidenceImage"`
	Timestamp     int64           `json:"timestamp"`
	Signature     string          `json:"signature"`
}

// SigningMessage is the canonical concatenation that gets hashed and signed.
func (a Achievement) SigningMessage() string {
	return a.ChainUUID + a.UserAddress + a.Description + a.EvidenceImage + strconv.FormatInt(a.Timestamp, 10)
}

// SigningHash is the sha256 of SigningMessage.
func (a Achievement) SigningHash() []byte {
	return library.Sha256Bytes([]byte(a.SigningMessage()))
}

// Verify checks the achievement signature against its author's public key.
func (a Achievement) Verify() bool {
	return library.VerifyHash(a.UserPublicKey, a.SigningHash(), a.Signature)
}

// Review is the server issued outcome for an achievement. Several reviewers may
// review the same achievement; acceptance is decided on the average reward.
type Review struct {
	AchievementSignature string          `json:"achievementSignature"`
	ReviewerPublicKey    library.Account `json:"reviewerPublicKey"`
	ReviewerAddress      library.Address `json:"reviewerAddress"`
	Comment              string          `json:"comment"`
	Reward               float64         `json:"reward"`
	Timestamp            int64           `json:"timestamp"`
	Signature            string          `json:"signature"`
}

func (r Review) key() string {
	if len(r.Signature) > 0 {
		return r.Signature
	}
	return r.ReviewerPublicKey
}

// Block links an accepted achievement into a chain. Transactions and MerkleRoot
// are reserved and always empty.
type Block struct {
	ChainUUID    library.ChainID `json:"chainUuid"`
	Height       int64           `json:"height"`
	PreviousHash library.Sha256  `json:"previousHash"`
	Transactions []string        `json:"transactions"`
	MerkleRoot   string          `json:"merkleRoot"`
	Achievement  string          `json:"achievement"`
	Timestamp    int64           `json:"timestamp"`
	Hash         library.Sha256  `json:"hash"`
}

// ComputeHash returns sha256(chain || achievement || height || previous || merkle || timestamp) as hex.
func (b Block) ComputeHash() library.Sha256 {
	return library.Sha256Sum(b.ChainUUID +
		b.Achievement +
		strconv.FormatInt(b.Height, 10) +
		b.PreviousHash +
		b.MerkleRoot +
		strconv.FormatInt(b.Timestamp, 10))
}

type Transaction struct {
	ChainUUID        library.ChainID `json:"chainUuid"`
	SenderPublicKey  library.Account `json:"senderPublicKey"`
	SenderAddress    library.Address `json:"senderAddress"`
	RecipientAddress library.Address `json:"recipientAddress"`
	Amount           float64         `json:"amount"`
	Timestamp        int64           `json:"timestamp"`
	Signature        string          `json:"signature"`
}

// Totals is the aggregate of every membership the user holds.
type Totals struct {
	TotalBalance float64 `json:"totalBalance"`
	Cash         float64 `json:"cash"`
	NetWorth     float64 `json:"netWorth"`
}
