package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var compressedPubKey = regexp.MustCompile(`^0[23][0-9a-fA-F]{64}$`)

func Sha256Sum(data interface{}) Sha256 {
	var b []byte
	switch d := data.(type) {
	case string:
		b = []byte(d)
	case []byte:
		b = d
	default:
		LogCLI("attempted to hash non-string or non-[]byte", 1)
	}
	h := sha256.New()
	h.Write(b)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Sha256Bytes hashes the concatenation of parts.
func Sha256Bytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// IsCompressedPubKey reports whether s looks like a hex encoded compressed public key.
func IsCompressedPubKey(s string) bool {
	return compressedPubKey.MatchString(s)
}

// SignHash signs hash with key and returns the DER encoded signature as hex.
func SignHash(key *btcec.PrivateKey, hash []byte) string {
	return hex.EncodeToString(ecdsa.Sign(key, hash).Serialize())
}

// VerifyHash checks a hex DER signature over hash against a hex compressed public key.
// Malformed input of any kind is reported as an invalid signature.
func VerifyHash(pubKey Account, hash []byte, signature string) bool {
	if !IsCompressedPubKey(pubKey) {
		return false
	}
	keyBytes, err := hex.DecodeString(pubKey)
	if err != nil {
		return false
	}
	key, err := btcec.ParsePubKey(keyBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil || len(sigBytes) == 0 {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(hash, key)
}
