package validation

import (
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/paywallio/paywalld/internal/models"
)

var (
	evmAddressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	evmTxHashRegex  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	zcashTxIDRegex  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

	// Transparent, Sapling, Sapling testnet, Sprout and Unified addresses.
	zcashAddressRegexes = []*regexp.Regexp{
		regexp.MustCompile(`^t[12][a-zA-Z0-9]{33}$`),
		regexp.MustCompile(`^zs1[a-z0-9]{75}$`),
		regexp.MustCompile(`^ztestsapling1[a-z0-9]{64}$`),
		regexp.MustCompile(`^zc[a-zA-Z0-9]{93}$`),
		regexp.MustCompile(`^u1[a-z0-9]{100,}$`),
	}
)

// IsValidAddress reports whether addr is a syntactically valid wallet address on the network.
func IsValidAddress(addr string, network models.Network) bool {
	switch network.Family() {
	case models.FamilyEVM:
		return evmAddressRegex.MatchString(addr)
	case models.FamilySolana:
		// PublicKeyFromBase58 rejects bad base58 and anything that is not 32 bytes.
		_, err := solana.PublicKeyFromBase58(addr)
		return err == nil
	case models.FamilyZcash:
		for _, re := range zcashAddressRegexes {
			if re.MatchString(addr) {
				return true
			}
		}
		return false
	}
	return false
}

// ValidateAddress returns an InvalidAddress error naming the network when addr is not valid.
func ValidateAddress(addr string, network models.Network) error {
	if addr == "" {
		return models.NewError(models.CodeInvalidAddress, "address cannot be empty").WithNetwork(network)
	}
	if !IsValidAddress(addr, network) {
		return models.NewError(models.CodeInvalidAddress, "invalid %s address %q", network, addr).WithNetwork(network)
	}
	return nil
}

// IsValidTxRef reports whether ref is shaped like a transaction reference on the network:
// a 0x-prefixed 32 byte hash for EVM, a base58 64 byte signature for Solana and a hex txid for Zcash.
func IsValidTxRef(ref string, network models.Network) bool {
	switch network.Family() {
	case models.FamilyEVM:
		return evmTxHashRegex.MatchString(ref)
	case models.FamilySolana:
		_, err := solana.SignatureFromBase58(ref)
		return err == nil
	case models.FamilyZcash:
		return zcashTxIDRegex.MatchString(ref)
	}
	return false
}

// ValidateTxRef returns an InvalidReference error when ref is malformed.
func ValidateTxRef(ref string, network models.Network) error {
	if ref == "" {
		return models.NewError(models.CodeInvalidReference, "transaction reference cannot be empty").WithNetwork(network)
	}
	if !IsValidTxRef(ref, network) {
		return models.NewError(models.CodeInvalidReference, "invalid %s transaction reference %q", network, ref).WithNetwork(network)
	}
	return nil
}

// NormalizeAddress returns the form an address is stored and compared in.
// EVM addresses are case-insensitive and get lowercased; other networks are case-sensitive.
func NormalizeAddress(addr string, network models.Network) string {
	addr = strings.TrimSpace(addr)
	if network.Family() == models.FamilyEVM {
		return strings.ToLower(addr)
	}
	return addr
}

// NormalizeTxRef lowercases hex references. Solana signatures are base58 and kept as is.
func NormalizeTxRef(ref string, network models.Network) string {
	ref = strings.TrimSpace(ref)
	switch network.Family() {
	case models.FamilyEVM, models.FamilyZcash:
		return strings.ToLower(ref)
	}
	return ref
}

// SameAddress compares two addresses with the network's case rules.
func SameAddress(a, b string, network models.Network) bool {
	if network.Family() == models.FamilyEVM {
		return strings.EqualFold(a, b)
	}
	return a == b
}
