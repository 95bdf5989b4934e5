package ledger

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
	"proofofawesome/engine/library"
)

// ErrIntegrityMismatch means a confirmed block does not extend the local chain tail.
// The chain's local blocks have been discarded and need a fresh range from the server.
var ErrIntegrityMismatch = errors.New("block does not extend local chain")

// CreateBlock proposes the next block of chain for an accepted achievement. It returns
// false until the chain, its head, the achievement and a positive review are all cached,
// if the achievement belongs to another chain, or if a confirmed block already carries it. The cache is not modified: the block is
// only a proposal until the server confirms it and it is passed to AddBlock.
func (l *Ledger) CreateBlock(chain library.ChainID, achievement Achievement) (Block, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, known := l.chains[chain]; !known {
		return Block{}, false
	}
	cached, known := l.achievements[achievement.Signature]
	if !known || cached.ChainUUID != chain {
		return Block{}, false
	}
	if _, blocked := l.blockedBy[cached.Signature]; blocked {
		return Block{}, false
	}
	if _, accepted := l.reviewOutcome(cached.Signature); !accepted {
		return Block{}, false
	}
	head, ok := l.heads[chain]
	if !ok {
		return Block{}, false
	}
	b := Block{
		ChainUUID:    chain,
		Height:       head.LatestBlockHeight + 1,
		PreviousHash: head.LatestBlockHash,
		Transactions: []string{},
		MerkleRoot:   "",
		Achievement:  cached.Signature,
		Timestamp:    l.clock().UnixMilli(),
	}
	b.Hash = b.ComputeHash()
	return b, true
}

// AddBlock appends a server confirmed block to its chain. A block that does not
// extend the tail (wrong height, wrong previous hash or a hash that does not match its
// fields) discards the chain's local blocks, flags the chain for re-sync and returns
// an error wrapping ErrIntegrityMismatch. Re-delivery of the current tail is a no-op.
func (l *Ledger) AddBlock(b Block) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.addBlock(b)
}

func (l *Ledger) addBlock(b Block) error {
	if b.Hash != b.ComputeHash() {
		return l.mismatch(b.ChainUUID, fmt.Errorf("%w: block %d on chain %s has hash %s, fields hash to %s",
			ErrIntegrityMismatch, b.Height, b.ChainUUID, b.Hash, b.ComputeHash()))
	}
	chain := l.blocks[b.ChainUUID]
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		if last.Hash == b.Hash {
			return nil
		}
		if b.Height != last.Height+1 || b.PreviousHash != last.Hash {
			return l.mismatch(b.ChainUUID, fmt.Errorf("%w: block %d on chain %s has previous hash %s, tail is block %d with hash %s",
				ErrIntegrityMismatch, b.Height, b.ChainUUID, b.PreviousHash, last.Height, last.Hash))
		}
	} else if head, ok := l.heads[b.ChainUUID]; ok && len(head.LatestBlockHash) > 0 &&
		head.LatestBlockHeight == b.Height-1 && head.LatestBlockHash != b.PreviousHash {
		// no local blocks yet, so the head pushed by the server is the tail
		return l.mismatch(b.ChainUUID, fmt.Errorf("%w: block %d on chain %s has previous hash %s, head is %s",
			ErrIntegrityMismatch, b.Height, b.ChainUUID, b.PreviousHash, head.LatestBlockHash))
	}
	l.blocks[b.ChainUUID] = append(chain, b)
	l.advanceHead(b)
	l.indexBlock(b)
	return nil
}

func (l *Ledger) indexBlock(b Block) {
	if len(b.Achievement) > 0 {
		l.blockedBy[b.Achievement] = b.Hash
	}
}

// AchievementBlock returns the hash of the confirmed block that carries the achievement.
func (l *Ledger) AchievementBlock(signature string) (library.Sha256, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	hash, ok := l.blockedBy[signature]
	return hash, ok
}

func (l *Ledger) mismatch(chain library.ChainID, err error) error {
	delete(l.blocks, chain)
	l.resync[chain] = struct{}{}
	return err
}

func (l *Ledger) advanceHead(b Block) {
	head, ok := l.heads[b.ChainUUID]
	if ok && head.LatestBlockHeight >= b.Height && len(head.LatestBlockHash) > 0 {
		return
	}
	l.heads[b.ChainUUID] = ChainHead{
		ChainUUID:         b.ChainUUID,
		LatestBlockHash:   b.Hash,
		LatestBlockHeight: b.Height,
		Timestamp:         b.Timestamp,
	}
}

// ReplaceBlocks swaps a chain's local blocks for a batch fetched from the server and
// clears its re-sync flag. The batch must be a linked run of blocks.
func (l *Ledger) ReplaceBlocks(chain library.ChainID, blocks []Block) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.replaceBlocks(chain, blocks)
}

func (l *Ledger) replaceBlocks(chain library.ChainID, blocks []Block) error {
	sorted, err := linkedRun(chain, blocks)
	if err != nil {
		return l.rejectRun(chain, err)
	}
	l.blocks[chain] = sorted
	for _, b := range sorted {
		l.indexBlock(b)
	}
	delete(l.resync, chain)
	if len(sorted) > 0 {
		l.advanceHead(sorted[len(sorted)-1])
	}
	return nil
}

// MergeBlocks absorbs a historical batch. Chains flagged for re-sync, or with no local
// blocks yet, take the batch wholesale; otherwise only blocks above the tail are appended.
func (l *Ledger) MergeBlocks(chain library.ChainID, blocks []Block) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	_, flagged := l.resync[chain]
	local := l.blocks[chain]
	if flagged || len(local) == 0 {
		return l.replaceBlocks(chain, blocks)
	}
	sorted, err := linkedRun(chain, blocks)
	if err != nil {
		return l.rejectRun(chain, err)
	}
	tail := local[len(local)-1].Height
	for _, b := range sorted {
		if b.Height <= tail {
			continue
		}
		if err := l.addBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) rejectRun(chain library.ChainID, err error) error {
	if errors.Is(err, ErrIntegrityMismatch) {
		return l.mismatch(chain, err)
	}
	return err
}

func linkedRun(chain library.ChainID, blocks []Block) ([]Block, error) {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	slices.SortStableFunc(sorted, func(a, b Block) bool { return a.Height < b.Height })
	for i, b := range sorted {
		if b.ChainUUID != chain {
			return nil, fmt.Errorf("block %d belongs to chain %s, not %s", b.Height, b.ChainUUID, chain)
		}
		if b.Hash != b.ComputeHash() {
			return nil, fmt.Errorf("%w: block %d on chain %s has an invalid hash", ErrIntegrityMismatch, b.Height, chain)
		}
		if i > 0 {
			prev := sorted[i-1]
			if b.Height != prev.Height+1 || b.PreviousHash != prev.Hash {
				return nil, fmt.Errorf("%w: block %d on chain %s does not follow block %d", ErrIntegrityMismatch, b.Height, chain, prev.Height)
			}
		}
	}
	return sorted, nil
}

// GetBlocks returns the most recent count blocks of chain, oldest first. A count of
// zero or less returns every cached block.
func (l *Ledger) GetBlocks(chain library.ChainID, count int) []Block {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	blocks := l.blocks[chain]
	if count > 0 && count < len(blocks) {
		blocks = blocks[len(blocks)-count:]
	}
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out
}

func (l *Ledger) NeedsResync(chain library.ChainID) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	_, flagged := l.resync[chain]
	return flagged
}

// ChainsNeedingResync lists the chains whose local blocks were discarded and not yet replaced.
func (l *Ledger) ChainsNeedingResync() []library.ChainID {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var list []library.ChainID
	for chain := range l.resync {
		list = append(list, chain)
	}
	slices.Sort(list)
	return list
}
