package ledger

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractName identifies one of the three bound contracts.
type ContractName string

const (
	Marketplace ContractName = "marketplace"
	Escrow      ContractName = "escrow"
	Reputation  ContractName = "reputation"
)

// Contracts lists every bound contract in binding order.
var Contracts = []ContractName{Marketplace, Escrow, Reputation}

// Addresses are the fixed deployment addresses of the contracts.
type Addresses struct {
	Marketplace common.Address
	Escrow      common.Address
	Reputation  common.Address
}

// Of returns the address of name.
func (a Addresses) Of(name ContractName) (common.Address, error) {
	switch name {
	case Marketplace:
		return a.Marketplace, nil
	case Escrow:
		return a.Escrow, nil
	case Reputation:
		return a.Reputation, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}
}

//go:embed abi/*.json
var abiFiles embed.FS

var abis = mustParseABIs()

func mustParseABIs() map[ContractName]*abi.ABI {
	out := make(map[ContractName]*abi.ABI, len(Contracts))
	for _, name := range Contracts {
		raw, err := abiFiles.ReadFile("abi/" + string(name) + ".json")
		if err != nil {
			panic(fmt.Sprintf("ledger: missing interface for %s: %v", name, err))
		}
		parsed, err := abi.JSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("ledger: invalid interface for %s: %v", name, err))
		}
		out[name] = &parsed
	}
	return out
}

// ContractABI returns the interface description of name, or nil if unknown.
func ContractABI(name ContractName) *abi.ABI {
	return abis[name]
}
