package chain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-hdmint/internal/storage"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Key prefixes and state keys for the block store.
var (
	prefixBlock  = []byte("b/") // b/<hash(32)> -> block JSON
	prefixHeight = []byte("h/") // h/<height(8)> -> hash(32), active chain only
	prefixTx     = []byte("x/") // x/<txhash(32)> -> height(8) + blockHash(32)
	prefixMint   = []byte("m/") // m/<commitmentHash(32)> -> txid(32), active chain only
	prefixSpend  = []byte("n/") // n/<serialHash(32)> -> height(8) + txid(32), active chain only
	keyTipHash   = []byte("s/tip")
	keyHeight    = []byte("s/height")
)

// txLocation is where a transaction was last connected.
type txLocation struct {
	Height    uint64
	BlockHash types.Hash
}

// BlockStore persists blocks and the zerocoin indexes to a storage.DB.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// GetBlock retrieves a block by its hash.
func (bs *BlockStore) GetBlock(hash types.Hash) (*block.Block, error) {
	data, err := bs.db.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("block get: %w", err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("block unmarshal: %w", err)
	}
	return &blk, nil
}

// GetHashByHeight returns the active-chain block hash at height.
func (bs *BlockStore) GetHashByHeight(height uint64) (types.Hash, error) {
	hashBytes, err := bs.db.Get(heightKey(height))
	if err != nil {
		return types.Hash{}, fmt.Errorf("height index get: %w", err)
	}
	if len(hashBytes) != types.HashSize {
		return types.Hash{}, fmt.Errorf("corrupt height index: got %d bytes, want %d", len(hashBytes), types.HashSize)
	}
	return toHash(hashBytes), nil
}

// GetBlockByHeight retrieves the active-chain block at height.
func (bs *BlockStore) GetBlockByHeight(height uint64) (*block.Block, error) {
	hash, err := bs.GetHashByHeight(height)
	if err != nil {
		return nil, err
	}
	return bs.GetBlock(hash)
}

// GetTip returns the current tip hash and height.
// Returns zero values if no tip is set (fresh index).
func (bs *BlockStore) GetTip() (types.Hash, uint64, error) {
	hashBytes, err := bs.db.Get(keyTipHash)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, 0, nil
	}
	if err != nil {
		return types.Hash{}, 0, fmt.Errorf("tip hash get: %w", err)
	}
	if len(hashBytes) != types.HashSize {
		return types.Hash{}, 0, fmt.Errorf("corrupt tip hash: got %d bytes", len(hashBytes))
	}
	heightBytes, err := bs.db.Get(keyHeight)
	if err != nil {
		return types.Hash{}, 0, fmt.Errorf("tip height missing: %w", err)
	}
	if len(heightBytes) != 8 {
		return types.Hash{}, 0, fmt.Errorf("corrupt tip height: got %d bytes", len(heightBytes))
	}
	return toHash(hashBytes), binary.BigEndian.Uint64(heightBytes), nil
}

// GetTxLocation returns the height and block hash a transaction was last
// connected in. The entry survives disconnection of that block.
func (bs *BlockStore) GetTxLocation(txHash types.Hash) (txLocation, error) {
	data, err := bs.db.Get(txKey(txHash))
	if err != nil {
		return txLocation{}, fmt.Errorf("tx index get: %w", err)
	}
	if len(data) != 8+types.HashSize {
		return txLocation{}, fmt.Errorf("corrupt tx index: got %d bytes, want %d", len(data), 8+types.HashSize)
	}
	return txLocation{
		Height:    binary.BigEndian.Uint64(data[:8]),
		BlockHash: toHash(data[8:]),
	}, nil
}

// GetMintTx returns the transaction that minted the coin with the given
// commitment hash on the active chain.
func (bs *BlockStore) GetMintTx(commitmentHash types.Hash) (types.Hash, error) {
	data, err := bs.db.Get(hashKey(prefixMint, commitmentHash))
	if err != nil {
		return types.Hash{}, fmt.Errorf("mint index get: %w", err)
	}
	if len(data) != types.HashSize {
		return types.Hash{}, fmt.Errorf("corrupt mint index: got %d bytes", len(data))
	}
	return toHash(data), nil
}

// GetSpend returns the height and transaction that revealed serialHash on
// the active chain.
func (bs *BlockStore) GetSpend(serialHash types.Hash) (uint64, types.Hash, error) {
	data, err := bs.db.Get(hashKey(prefixSpend, serialHash))
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("spend index get: %w", err)
	}
	if len(data) != 8+types.HashSize {
		return 0, types.Hash{}, fmt.Errorf("corrupt spend index: got %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data[:8]), toHash(data[8:]), nil
}

// HasMint reports whether commitmentHash is minted on the active chain.
func (bs *BlockStore) HasMint(commitmentHash types.Hash) (bool, error) {
	return bs.db.Has(hashKey(prefixMint, commitmentHash))
}

// HasSpend reports whether serialHash is spent on the active chain.
func (bs *BlockStore) HasSpend(serialHash types.Hash) (bool, error) {
	return bs.db.Has(hashKey(prefixSpend, serialHash))
}

func putBlock(b storage.Batch, blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}
	return b.Put(blockKey(blk.Hash()), data)
}

func putTip(b storage.Batch, hash types.Hash, height uint64) error {
	if err := b.Put(keyTipHash, hash[:]); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return b.Put(keyHeight, buf[:])
}

func deleteTip(b storage.Batch) error {
	if err := b.Delete(keyTipHash); err != nil {
		return err
	}
	return b.Delete(keyHeight)
}

func heightAndHash(height uint64, hash types.Hash) []byte {
	val := make([]byte, 8+types.HashSize)
	binary.BigEndian.PutUint64(val[:8], height)
	copy(val[8:], hash[:])
	return val
}

func blockKey(hash types.Hash) []byte {
	return hashKey(prefixBlock, hash)
}

func txKey(hash types.Hash) []byte {
	return hashKey(prefixTx, hash)
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(prefixHeight)+8)
	copy(key, prefixHeight)
	binary.BigEndian.PutUint64(key[len(prefixHeight):], height)
	return key
}

func hashKey(prefix []byte, hash types.Hash) []byte {
	key := make([]byte, len(prefix)+types.HashSize)
	copy(key, prefix)
	copy(key[len(prefix):], hash[:])
	return key
}

func toHash(b []byte) types.Hash {
	var h types.Hash
	copy(h[:], b)
	return h
}
