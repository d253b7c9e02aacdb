package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/okian/gigledger/pkg/metrics"
)

// Confirmation is a transaction the ledger has included.
type Confirmation struct {
	TxHash   common.Hash
	Block    uint64
	Contract ContractName
	Elapsed  time.Duration

	address common.Address
	abi     *abi.ABI
	logs    []*types.Log
}

// Logs returns the raw log entries of the receipt, in emission order.
func (c *Confirmation) Logs() []*types.Log {
	return c.logs
}

// Event finds the first log named name emitted by the contract the
// transaction was sent to and decodes both its indexed and data fields.
// Logs from other contracts or of other events are skipped.
func (c *Confirmation) Event(name string) (map[string]any, error) {
	ev, ok := c.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not emitted by %s", ErrEventNotFound, name, c.Contract)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	for _, l := range c.logs {
		if l == nil || l.Address != c.address || len(l.Topics) == 0 || l.Topics[0] != ev.ID {
			continue
		}
		fields := make(map[string]any, len(ev.Inputs))
		if err := c.abi.UnpackIntoMap(fields, name, l.Data); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrDecode, name, err)
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
			return nil, fmt.Errorf("%w: %s topics: %v", ErrDecode, name, err)
		}
		return fields, nil
	}

	metrics.RecordMissingEvent(name)
	return nil, fmt.Errorf("%w: %s in transaction %s", ErrEventNotFound, name, c.TxHash.Hex())
}

// EventID decodes event name and returns its integer field.
func (c *Confirmation) EventID(name, field string) (*big.Int, error) {
	fields, err := c.Event(name)
	if err != nil {
		return nil, err
	}
	id, ok := fields[field].(*big.Int)
	if !ok || id == nil {
		return nil, fmt.Errorf("%w: %s.%s is %T", ErrDecode, name, field, fields[field])
	}
	return id, nil
}
