package library

// Account is the hex encoded compressed secp256k1 public key of a user.
type Account = string

type Sha256 = string

// ChainID names a themed chain. All per-chain state is partitioned by it.
type ChainID = string

// Address is the per-chain pseudonym derived from an Account's root key.
type Address = string
