package models

import (
	"sort"
	"strings"
)

// Network identifies a supported chain by its lowercase slug.
type Network string

const (
	NetworkBNB        Network = "bnb"
	NetworkBNBTestnet Network = "bnb-testnet"
	NetworkMonad      Network = "monad"
	NetworkSolana     Network = "solana"
	NetworkZcash      Network = "zcash"
)

// Family groups networks that share address formats and RPC semantics.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
	FamilyZcash  Family = "zcash"
)

// NetworkInfo is the static description of a network.
type NetworkInfo struct {
	// Network is the canonical slug.
	Network Network `json:"network"`
	// Name is the human readable network name.
	Name string `json:"name"`
	// Family decides which validator and oracle implementation is used.
	Family Family `json:"family"`
	// Currency is the symbol of the native token the paywall is priced in.
	Currency string `json:"currency"`
	// Decimals is the number of base units per whole token (wei, lamports, zatoshi).
	Decimals int32 `json:"decimals"`
}

var networks = map[Network]NetworkInfo{
	NetworkBNB:        {Network: NetworkBNB, Name: "BNB Chain", Family: FamilyEVM, Currency: "BNB", Decimals: 18},
	NetworkBNBTestnet: {Network: NetworkBNBTestnet, Name: "BNB Smart Chain Testnet", Family: FamilyEVM, Currency: "tBNB", Decimals: 18},
	NetworkMonad:      {Network: NetworkMonad, Name: "Monad", Family: FamilyEVM, Currency: "MON", Decimals: 18},
	NetworkSolana:     {Network: NetworkSolana, Name: "Solana", Family: FamilySolana, Currency: "SOL", Decimals: 9},
	NetworkZcash:      {Network: NetworkZcash, Name: "Zcash", Family: FamilyZcash, Currency: "ZEC", Decimals: 8},
}

// aliases maps display names used by older clients to slugs.
var aliases = map[string]Network{
	"bnb chain":               NetworkBNB,
	"bsc":                     NetworkBNB,
	"bnb smart chain":         NetworkBNB,
	"bnb smart chain testnet": NetworkBNBTestnet,
	"bsc-testnet":             NetworkBNBTestnet,
	"monad testnet":           NetworkMonad,
	"sol":                     NetworkSolana,
	"zec":                     NetworkZcash,
}

// ParseNetwork resolves a slug or a legacy display name into a Network.
func ParseNetwork(s string) (Network, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if _, ok := networks[Network(key)]; ok {
		return Network(key), nil
	}
	if n, ok := aliases[key]; ok {
		return n, nil
	}
	return "", NewError(CodeInvalidRequest, "unsupported network %q", s)
}

func (n Network) Valid() bool {
	_, ok := networks[n]
	return ok
}

func (n Network) Family() Family {
	return networks[n].Family
}

func (n Network) Currency() string {
	return networks[n].Currency
}

func (n Network) Decimals() int32 {
	return networks[n].Decimals
}

func (n Network) String() string {
	return string(n)
}

// Networks lists every supported network in a stable order.
func Networks() []Network {
	out := make([]Network, 0, len(networks))
	for n := range networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
