// derive_mint.go prints the deterministic mints of a mnemonic for a counter range.
// Usage: go run scripts/derive_mint.go [-network regtest] [-from 1] [-count 10] "<mnemonic>"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-hdmint/internal/wallet"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
)

func main() {
	network := flag.String("network", "mainnet", "network parameters")
	from := flag.Uint("from", 1, "first counter")
	count := flag.Uint("count", 10, "number of counters")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: derive_mint [-network n] [-from c] [-count n] \"<mnemonic>\"")
		os.Exit(1)
	}

	params, err := zerocoin.ParamsForNetwork(*network)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	seed, err := wallet.MintSeedFromMnemonic(flag.Arg(0), "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	deriver := zerocoin.NewDeriver(params)

	fmt.Printf("seed=%s\n", zerocoin.SeedHash(seed))
	for c := uint32(*from); c < uint32(*from+*count); c++ {
		coin, err := deriver.Derive(seed, c, zerocoin.DenomOne)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("count=%d pubcoin=%s serial=%s\n", c, coin.CommitmentHash(), coin.SerialHash())
		coin.Zero()
	}
}
