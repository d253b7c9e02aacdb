package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Contract is a contract interface bound to a signer.
type Contract interface {
	Address() common.Address
	// Call runs a read-only method and returns its unpacked outputs.
	Call(ctx context.Context, method string, args ...any) ([]any, error)
	// Transact signs and sends a transaction. It returns once the ledger
	// accepted it for inclusion, not once it is confirmed.
	Transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Transaction, error)
}

// Connection is an already established wallet session.
type Connection interface {
	// Bind attaches the session's signer to the contract at address.
	// It must not touch the network.
	Bind(address common.Address, parsed *abi.ABI) (Contract, error)
	// WaitMined blocks until tx is included or ctx is done.
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Backend is what a go-ethereum client offers to bound contracts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type ethConnection struct {
	backend Backend
	opts    *bind.TransactOpts
	sendMu  sync.Mutex // pending nonces are read per send
}

// NewConnection signs with key for chainID over backend.
func NewConnection(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int) (Connection, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	return &ethConnection{backend: backend, opts: opts}, nil
}

// Dial connects to rpcURL and signs with the hex encoded key. When chainID is
// nil or zero it is asked from the node.
func Dial(ctx context.Context, rpcURL, hexKey string, chainID *big.Int) (Connection, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger node: %w", err)
	}
	if chainID == nil || chainID.Sign() == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}
	return NewConnection(client, key, chainID)
}

func (c *ethConnection) Bind(address common.Address, parsed *abi.ABI) (Contract, error) {
	if parsed == nil {
		return nil, fmt.Errorf("bind %s: nil interface", address.Hex())
	}
	bc := bind.NewBoundContract(address, *parsed, c.backend, c.backend, c.backend)
	return &boundContract{address: address, contract: bc, conn: c}, nil
}

func (c *ethConnection) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.backend, tx)
}

type boundContract struct {
	address  common.Address
	contract *bind.BoundContract
	conn     *ethConnection
}

func (b *boundContract) Address() common.Address { return b.address }

func (b *boundContract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: b.conn.opts.From}
	if err := b.contract.Call(opts, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *boundContract) Transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Transaction, error) {
	b.conn.sendMu.Lock()
	defer b.conn.sendMu.Unlock()

	opts := *b.conn.opts
	opts.Context = ctx
	opts.Value = value
	return b.contract.Transact(&opts, method, args...)
}
