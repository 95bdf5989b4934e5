package actors

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip06"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"proofofawesome/engine/library"
)

// DerivationPath is shared by every chain. Chains are told apart by hashing the chain
// id into the address, so changing this path changes every address a user has.
const DerivationPath = "m/44'/777'/0'/0/0"

const defaultAddressCacheSize = 256

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrWalletNotCreated = errors.New("wallet not created")
)

// Wallet is the key material of one session. It can only be obtained from
// CreateWallet, so holding a non-nil *Wallet means derivation has succeeded.
type Wallet struct {
	seedWords  string
	root       *bip32.Key
	chainKey   *bip32.Key
	privateKey *btcec.PrivateKey
	account    library.Account
	addresses  *lru.Cache
}

// NewSeedWords generates a fresh mnemonic for registering a new user.
func NewSeedWords() (string, error) {
	return nip06.GenerateSeedWords()
}

// CreateWallet validates the mnemonic against the BIP39 wordlist and checksum, then
// derives the root key and the account public key from (mnemonic, passphrase).
func CreateWallet(seedWords, passphrase string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(seedWords) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(seedWords, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMnemonic, err.Error())
	}
	root, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	chainKey, err := derivePath(root, DerivationPath)
	if err != nil {
		return nil, err
	}
	privateKey, _ := btcec.PrivKeyFromBytes(root.Key)
	cache, err := lru.New(addressCacheSize())
	if err != nil {
		return nil, err
	}
	return &Wallet{
		seedWords:  seedWords,
		root:       root,
		chainKey:   chainKey,
		privateKey: privateKey,
		account:    hex.EncodeToString(root.PublicKey().Key),
		addresses:  cache,
	}, nil
}

func addressCacheSize() int {
	if size := MakeOrGetConfig().GetInt("addressCacheSize"); size > 0 {
		return size
	}
	return defaultAddressCacheSize
}

func derivePath(key *bip32.Key, path string) (*bip32.Key, error) {
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] != "m" {
		return nil, fmt.Errorf("derivation path %q must start at m", path)
	}
	for _, segment := range segments[1:] {
		var offset uint32
		if strings.HasSuffix(segment, "'") {
			offset = bip32.FirstHardenedChild
			segment = strings.TrimSuffix(segment, "'")
		}
		index, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path segment %q: %w", segment, err)
		}
		key, err = key.NewChildKey(uint32(index) + offset)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

// Account returns the hex encoded compressed public key of the root key.
func (w *Wallet) Account() library.Account {
	if w == nil {
		return ""
	}
	return w.account
}

func (w *Wallet) SeedWords() string {
	if w == nil {
		return ""
	}
	return w.seedWords
}

// DeriveAddress returns the address of this wallet on chain:
// the first 40 hex chars of sha256(child public key || chain).
func (w *Wallet) DeriveAddress(chain library.ChainID) (library.Address, error) {
	if w == nil {
		return "", ErrWalletNotCreated
	}
	if cached, ok := w.addresses.Get(chain); ok {
		return cached.(library.Address), nil
	}
	sum := library.Sha256Bytes(w.chainKey.PublicKey().Key, []byte(chain))
	address := hex.EncodeToString(sum)[:40]
	w.addresses.Add(chain, address)
	return address, nil
}

// NostrPubKey is the x-only public key that relays know this wallet by.
func (w *Wallet) NostrPubKey() string {
	if w == nil {
		return ""
	}
	return hex.EncodeToString(schnorr.SerializePubKey(w.privateKey.PubKey()))
}

// SignNostrEvent stamps e with this wallet's relay identity, id and signature.
func (w *Wallet) SignNostrEvent(e *nostr.Event) error {
	if w == nil {
		return ErrWalletNotCreated
	}
	e.PubKey = w.NostrPubKey()
	e.ID = e.GetID()
	return e.Sign(hex.EncodeToString(w.root.Key))
}
