package walletdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// PoolPair is one persisted mint pool hint: the commitment hash expected
// at counter Count.
type PoolPair struct {
	Hash  types.Hash
	Count uint32
}

func poolKey(seedHash, pubcoinHash types.Hash) []byte {
	key := make([]byte, len(prefixPool)+2*types.HashSize)
	copy(key, prefixPool)
	copy(key[len(prefixPool):], seedHash[:])
	copy(key[len(prefixPool)+types.HashSize:], pubcoinHash[:])
	return key
}

// WriteMintPoolPair records that pubcoinHash is derived at count from the
// seed identified by seedHash.
func (s *Store) WriteMintPoolPair(seedHash, pubcoinHash types.Hash, count uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], count)
	if err := s.db.Put(poolKey(seedHash, pubcoinHash), buf[:]); err != nil {
		return fmt.Errorf("write pool pair: %w", err)
	}
	return nil
}

// EraseMintPoolPair removes a hint.
func (s *Store) EraseMintPoolPair(seedHash, pubcoinHash types.Hash) error {
	if err := s.db.Delete(poolKey(seedHash, pubcoinHash)); err != nil {
		return fmt.Errorf("erase pool pair: %w", err)
	}
	return nil
}

// ListMintPool returns the hints stored for one seed.
func (s *Store) ListMintPool(seedHash types.Hash) ([]PoolPair, error) {
	prefix := make([]byte, len(prefixPool)+types.HashSize)
	copy(prefix, prefixPool)
	copy(prefix[len(prefixPool):], seedHash[:])

	var out []PoolPair
	err := s.db.ForEach(prefix, func(key, value []byte) error {
		pubcoin, ok := hashFromKey(prefix, key)
		if !ok || len(value) != 4 {
			return nil
		}
		out = append(out, PoolPair{Hash: pubcoin, Count: binary.LittleEndian.Uint32(value)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pool: %w", err)
	}
	return out, nil
}

// WalletTx is a transaction relevant to the wallet, recorded when one of
// its mints is recovered from the chain or one of its spends is submitted.
// A zero Height marks a spend still waiting for a block.
type WalletTx struct {
	TxID      types.Hash      `json:"txid"`
	Tx        *tx.Transaction `json:"tx"`
	BlockHash types.Hash      `json:"block_hash"`
	Height    uint64          `json:"height"`
	Time      time.Time       `json:"time"`
	IsMint    bool            `json:"is_mint"`
	IsSpend   bool            `json:"is_spend"`
}

// WriteWalletTx stores a wallet transaction record.
func (s *Store) WriteWalletTx(wtx *WalletTx) error {
	data, err := json.Marshal(wtx)
	if err != nil {
		return fmt.Errorf("wtx marshal: %w", err)
	}
	if err := s.db.Put(hashKey(prefixWalletTx, wtx.TxID), data); err != nil {
		return fmt.Errorf("write wtx: %w", err)
	}
	return nil
}

// ReadWalletTx returns the record for txid.
func (s *Store) ReadWalletTx(txid types.Hash) (*WalletTx, error) {
	return readJSON[WalletTx](s, hashKey(prefixWalletTx, txid))
}

// HasWalletTx reports whether a record for txid exists.
func (s *Store) HasWalletTx(txid types.Hash) (bool, error) {
	return s.db.Has(hashKey(prefixWalletTx, txid))
}

// ListWalletTxs returns all wallet transaction records.
func (s *Store) ListWalletTxs() ([]*WalletTx, error) {
	return listJSON[WalletTx](s, prefixWalletTx)
}
