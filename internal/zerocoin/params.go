// Package zerocoin holds the commitment group parameters, coin records and
// the deterministic coin derivation used by the HD mint wallet.
package zerocoin

import (
	"fmt"
	"math/big"
)

// Params describes a prime-order subgroup of Z*_Modulus used for coin
// commitments. G and H both generate the subgroup of order GroupOrder and
// nobody knows log_G(H).
type Params struct {
	Modulus      *big.Int
	GroupOrder   *big.Int
	G            *big.Int
	H            *big.Int
	MinCoinValue *big.Int
	MaxCoinValue *big.Int
}

// Generators were produced by hashing fixed labels with SHA-256 and raising
// the result to (Modulus-1)/GroupOrder. Labels: "klingnet-hdmint-main/{q,p,g,h}/i"
// and "klingnet-hdmint-regtest/{q,p,g,h}/i".
const (
	mainModulusHex = "ed5d7321cdfcb56bedbf7f7c90159dd2264087e5120ea22d3e0f9fc0f3a03725" +
		"5310da59bd6081903a182b107d88d07083580731c3ebe36b5603fb4f5abff079" +
		"450728de987aaee6e56e84685b82e71e4c863eb518e4d02c6a6492abf9981499" +
		"d181f3ae1b6fa6fc852ef605e7d6b59b1d8a8f0d52d0258ac928c36e4746481d"
	mainOrderHex = "97973d8609c96e5533ee170c7eabf433bfe0d5a2701c8830f3d49af535ba4d09"
	mainGHex     = "b1c286e695fbb882e426de02b2c8a6285c8506db815536304193879c520107c6" +
		"58e2d685266ac92c20c135aee4c8b7ca5733dd4a5f0fe92ece4c76f14a9601c5" +
		"a3fe9490eeea3f6737cd4292607247140291fb66e7b909a5b9d16a0249387538" +
		"fca1b84742aa34d9b7d3b5bf136bc23925f396bf13661a773e8d5b69e5f640fa"
	mainHHex = "412a1c779aee7ca16ab06487f40094ae7c866d8d682566da3678e75993eda923" +
		"dfc9bde6e8ded28c76f60540c205bf87deb88a24365b24ac042e6f8505e8aaa3" +
		"e8c1e9d032e59714800d39a7b2b58b838416d2e935a828d97990d50736976edf" +
		"d3b7e37dff500d4bf2ee9e21c17227d4930fcd38360f2e885e5fce16efd65ed5"

	regtestModulusHex = "9c7b12e736c8535e3ae5d561064ca3549b3a461ce6c47226fb92f82b763ef15d"
	regtestOrderHex   = "a0e013f217f46c0608bbb0c38470b69b"
	regtestGHex       = "53a83a05455fd8e7583c3db6d5a0ec46c276b0df10682469d605d43da9f0ceaa"
	regtestHHex       = "45e46939c3f25a4cab51abf5e95e8d3b1ac4015d415bd2f7aed78f6b5b120b95"
)

var (
	mainParams    = mustParams(mainModulusHex, mainOrderHex, mainGHex, mainHHex)
	regtestParams = mustParams(regtestModulusHex, regtestOrderHex, regtestGHex, regtestHHex)
)

// MainnetParams returns the production parameters (1024-bit modulus,
// 256-bit group order). Testnet shares them.
func MainnetParams() *Params { return mainParams }

// RegtestParams returns small parameters (256-bit modulus, 128-bit group
// order) for fast local testing.
func RegtestParams() *Params { return regtestParams }

// ParamsForNetwork returns the parameters for a network name.
func ParamsForNetwork(network string) (*Params, error) {
	switch network {
	case "mainnet", "testnet":
		return mainParams, nil
	case "regtest":
		return regtestParams, nil
	default:
		return nil, fmt.Errorf("no zerocoin params for network %q", network)
	}
}

// IsValidCoinValue reports whether v may be published as a coin
// commitment: inside [MinCoinValue, MaxCoinValue] and prime.
func (p *Params) IsValidCoinValue(v *big.Int) bool {
	if v == nil || v.Cmp(p.MinCoinValue) < 0 || v.Cmp(p.MaxCoinValue) > 0 {
		return false
	}
	return v.ProbablyPrime(20)
}

func mustParams(modHex, orderHex, gHex, hHex string) *Params {
	p := &Params{
		Modulus:    mustHex(modHex),
		GroupOrder: mustHex(orderHex),
		G:          mustHex(gHex),
		H:          mustHex(hHex),
	}
	p.MinCoinValue = new(big.Int).Lsh(big.NewInt(1), uint(p.Modulus.BitLen()/2))
	p.MaxCoinValue = new(big.Int).Sub(p.Modulus, big.NewInt(1))
	return p
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("zerocoin: bad parameter constant " + s[:8])
	}
	return v
}
