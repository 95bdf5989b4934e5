package actors

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"proofofawesome/engine/library"
	"proofofawesome/state/ledger"
)

// IdentityProofMessage is the fixed statement signed in an identity proof.
const IdentityProofMessage = "I am the owner of this proof of awesome account"

// ErrVerificationFailure means a signature this wallet just produced does not verify.
// It points at a broken crypto library, never at bad user input.
var ErrVerificationFailure = errors.New("self-produced signature failed verification")

// IdentityProof lets a remote party holding only PublicKey check key ownership.
type IdentityProof struct {
	PublicKey library.Account `json:"publicKey"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
}

func (p IdentityProof) signingHash() []byte {
	return library.Sha256Bytes([]byte(p.PublicKey + p.Message + strconv.FormatInt(p.Timestamp, 10)))
}

// sign signs hash with the account key and refuses to hand out a signature that
// does not verify against the account public key.
func (w *Wallet) sign(hash []byte) (string, error) {
	if w == nil {
		return "", ErrWalletNotCreated
	}
	signature := library.SignHash(w.privateKey, hash)
	if !library.VerifyHash(w.account, hash, signature) {
		library.LogCLI(fmt.Sprintf("signature %s does not verify against %s", signature, w.account), 1)
		return "", ErrVerificationFailure
	}
	return signature, nil
}

// SignAchievement signs the canonical message of a and returns the hex signature.
// The Signature field of a is ignored.
func (w *Wallet) SignAchievement(a ledger.Achievement) (string, error) {
	return w.sign(a.SigningHash())
}

// CreateIdentityProof signs IdentityProofMessage at the current time.
func (w *Wallet) CreateIdentityProof() (IdentityProof, error) {
	return w.createIdentityProof(time.Now().UnixMilli())
}

func (w *Wallet) createIdentityProof(timestamp int64) (IdentityProof, error) {
	if w == nil {
		return IdentityProof{}, ErrWalletNotCreated
	}
	p := IdentityProof{
		PublicKey: w.account,
		Message:   IdentityProofMessage,
		Timestamp: timestamp,
	}
	signature, err := w.sign(p.signingHash())
	if err != nil {
		return IdentityProof{}, err
	}
	p.Signature = signature
	if !VerifyIdentityProof(p) {
		return IdentityProof{}, ErrVerificationFailure
	}
	return p, nil
}

// VerifyIdentityProof checks p using nothing but the data it carries. It returns false,
// never panics, for malformed keys or signatures, and for a signed statement other
// than IdentityProofMessage.
func VerifyIdentityProof(p IdentityProof) bool {
	if p.Message != IdentityProofMessage || !library.IsCompressedPubKey(p.PublicKey) {
		return false
	}
	return library.VerifyHash(p.PublicKey, p.signingHash(), p.Signature)
}
