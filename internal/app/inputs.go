package service

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/gigledger/internal/domain/units"
)

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidInput, field, err)
}

func parseID(field, s string) (*big.Int, error) {
	id, err := units.ParseID(s)
	if err != nil {
		return nil, invalid(field, err)
	}
	return id, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := units.ParseAmount(s)
	if err != nil {
		return nil, invalid(field, err)
	}
	return v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid(field, fmt.Errorf("%q is not an address", s))
	}
	return common.HexToAddress(s), nil
}

// parseDeadline rejects times the ledger cannot store as unsigned seconds.
func parseDeadline(field string, t time.Time) (*big.Int, error) {
	if t.IsZero() || t.Unix() < 0 {
		return nil, invalid(field, fmt.Errorf("%s is not after the epoch", t.Format(time.RFC3339)))
	}
	return units.Seconds(t), nil
}

// address formats a ledger address; the zero address means unset.
func address(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
