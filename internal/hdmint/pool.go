package hdmint

import (
	"sort"
	"sync"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// PoolEntry is a look-ahead candidate: the pubcoin hash derived at Count.
type PoolEntry struct {
	Hash  types.Hash
	Count uint32
}

// MintPool holds look-ahead candidates indexed both by pubcoin hash and by
// counter. It is safe for concurrent use.
type MintPool struct {
	mu            sync.RWMutex
	byHash        map[types.Hash]uint32
	byCount       map[uint32]types.Hash
	lastGenerated uint32
}

// NewMintPool returns an empty pool whose generation starts after lastUsed.
func NewMintPool(lastUsed uint32) *MintPool {
	return &MintPool{
		byHash:        make(map[types.Hash]uint32),
		byCount:       make(map[uint32]types.Hash),
		lastGenerated: lastUsed,
	}
}

// Add inserts hash at count, replacing any entry at either key.
func (p *MintPool) Add(hash types.Hash, count uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.byHash[hash]; ok {
		delete(p.byCount, old)
	}
	if old, ok := p.byCount[count]; ok {
		delete(p.byHash, old)
	}
	p.byHash[hash] = count
	p.byCount[count] = hash
	if count > p.lastGenerated {
		p.lastGenerated = count
	}
}

// Has reports whether hash is pooled.
func (p *MintPool) Has(hash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// HasCount reports whether a candidate for count is pooled.
func (p *MintPool) HasCount(count uint32) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byCount[count]
	return ok
}

// Get returns the counter hash was derived at.
func (p *MintPool) Get(hash types.Hash) (uint32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byHash[hash]
	return c, ok
}

// Remove drops the entry for hash.
func (p *MintPool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.byHash[hash]; ok {
		delete(p.byCount, c)
		delete(p.byHash, hash)
	}
}

// RemoveCount drops the entry at count.
func (p *MintPool) RemoveCount(count uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.byCount[count]; ok {
		delete(p.byHash, h)
		delete(p.byCount, count)
	}
}

// List returns every entry ordered by counter.
func (p *MintPool) List() []PoolEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PoolEntry, 0, len(p.byHash))
	for h, c := range p.byHash {
		out = append(out, PoolEntry{Hash: h, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count < out[j].Count })
	return out
}

// Len returns the number of pooled entries.
func (p *MintPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Reset clears every entry and restarts generation after lastUsed.
func (p *MintPool) Reset(lastUsed uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byHash = make(map[types.Hash]uint32)
	p.byCount = make(map[uint32]types.Hash)
	p.lastGenerated = lastUsed
}

// CountOfLastGenerated returns the highest counter ever added, or the
// starting mark if none was.
func (p *MintPool) CountOfLastGenerated() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastGenerated
}
