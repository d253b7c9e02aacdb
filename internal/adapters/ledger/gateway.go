// Package ledger is the only path from the application to the external
// ledger. It owns the signing session and the three bound contracts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/okian/gigledger/internal/adapters/repository"
	"github.com/okian/gigledger/pkg/logger"
	"github.com/okian/gigledger/pkg/metrics"
)

// binding is one initialized session. It is replaced as a whole.
type binding struct {
	conn      Connection
	contracts map[ContractName]Contract
}

// Gateway holds the active signing session. The zero value is not usable;
// construct it with New and bind it with Initialize.
type Gateway struct {
	addresses Addresses
	log       logger.Logger
	journal   repository.Journal

	mu sync.RWMutex
	b  *binding
}

// New creates an unbound gateway for the contracts at addresses.
func New(addresses Addresses, opts ...Option) *Gateway {
	g := &Gateway{
		addresses: addresses,
		log:       logger.Nop(),
		journal:   repository.NewMemoryJournal(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize binds the three contracts to the signer of conn. Calling it
// again replaces the bindings; calls already running keep the old ones.
// It makes no network calls of its own.
func (g *Gateway) Initialize(ctx context.Context, conn Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	nb := &binding{conn: conn, contracts: make(map[ContractName]Contract, len(Contracts))}
	for _, name := range Contracts {
		addr, err := g.addresses.Of(name)
		if err != nil {
			return err
		}
		c, err := conn.Bind(addr, abis[name])
		if err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
		nb.contracts[name] = c
	}

	g.mu.Lock()
	g.b = nb
	g.mu.Unlock()

	metrics.RecordGatewayInitialization()
	g.log.Info(ctx, "ledger gateway initialized",
		logger.String("marketplace", g.addresses.Marketplace.Hex()),
		logger.String("escrow", g.addresses.Escrow.Hex()),
		logger.String("reputation", g.addresses.Reputation.Hex()))
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (g *Gateway) Initialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.b != nil
}

// Journal returns the submission journal.
func (g *Gateway) Journal() repository.Journal {
	return g.journal
}

func (g *Gateway) contract(name ContractName) (*binding, Contract, error) {
	g.mu.RLock()
	b := g.b
	g.mu.RUnlock()

	if b == nil {
		metrics.RecordUninitializedCall()
		return nil, nil, ErrUninitialized
	}
	c, ok := b.contracts[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}
	return b, c, nil
}

// Query runs a read-only method. A revert is a *RejectedError; other errors
// from the node are returned as is.
func (g *Gateway) Query(ctx context.Context, name ContractName, method string, args ...any) (Outputs, error) {
	_, c, err := g.contract(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := c.Call(ctx, method, args...)
	if err != nil {
		metrics.RecordLedgerQuery(string(name), method, metrics.OutcomeError, metrics.Since(start))
		g.log.Debug(ctx, "ledger query failed",
			logger.String("contract", string(name)),
			logger.String("method", method),
			logger.Error(err))
		if rej := asRejection(err); rej != nil {
			return nil, rej
		}
		return nil, err
	}
	metrics.RecordLedgerQuery(string(name), method, metrics.OutcomeOK, metrics.Since(start))
	return Outputs(out), nil
}

// Submit sends a transaction and waits for it to be included.
//
// A revert, before or after inclusion, is a *RejectedError. Any other failure
// is returned unmodified and nothing is retried. If ctx ends while waiting,
// the transaction may still land; its journal row stays submitted.
func (g *Gateway) Submit(ctx context.Context, name ContractName, method string, value *big.Int, args ...any) (*Confirmation, error) {
	b, c, err := g.contract(name)
	if err != nil {
		return nil, err
	}
	fields := []logger.Field{logger.String("contract", string(name)), logger.String("method", method)}

	start := time.Now()
	tx, err := c.Transact(ctx, value, method, args...)
	if err != nil {
		if rej := asRejection(err); rej != nil {
			metrics.RecordLedgerTransaction(string(name), method, metrics.OutcomeRejected)
			g.log.Warn(ctx, "ledger refused transaction", append(fields, logger.String("reason", rej.Reason))...)
			return nil, rej
		}
		metrics.RecordLedgerTransaction(string(name), method, metrics.OutcomeError)
		g.log.Error(ctx, "ledger transaction not sent", append(fields, logger.Error(err))...)
		return nil, err
	}
	metrics.RecordLedgerSubmit(string(name), method, metrics.Since(start))

	hash := tx.Hash()
	fields = append(fields, logger.String("tx", hash.Hex()))
	g.record(ctx, repository.Submission{
		Hash:     hash.Hex(),
		Contract: string(name),
		Method:   method,
		Status:   repository.StatusSubmitted,
	})
	g.log.Debug(ctx, "ledger transaction sent", fields...)

	receipt, err := b.conn.WaitMined(ctx, tx)
	if err != nil {
		metrics.RecordLedgerTransaction(string(name), method, metrics.OutcomeError)
		g.log.Warn(ctx, "stopped waiting for confirmation, transaction may still land", append(fields, logger.Error(err))...)
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.RecordConfirmationLatency(string(name), method, float64(elapsed.Milliseconds()))
	block := receiptBlock(receipt)

	if receipt.Status != types.ReceiptStatusSuccessful {
		rej := &RejectedError{Reason: "execution reverted", TxHash: hash}
		g.record(ctx, repository.Submission{
			Hash:     hash.Hex(),
			Contract: string(name),
			Method:   method,
			Status:   repository.StatusRejected,
			Block:    block,
			Reason:   rej.Reason,
		})
		metrics.RecordLedgerTransaction(string(name), method, metrics.OutcomeRejected)
		g.log.Warn(ctx, "ledger reverted transaction", append(fields, logger.Uint64("block", block))...)
		return nil, rej
	}

	g.record(ctx, repository.Submission{
		Hash:     hash.Hex(),
		Contract: string(name),
		Method:   method,
		Status:   repository.StatusConfirmed,
		Block:    block,
	})
	metrics.RecordLedgerTransaction(string(name), method, metrics.OutcomeOK)
	g.log.Info(ctx, "ledger transaction confirmed",
		append(fields, logger.Uint64("block", block), logger.Duration("elapsed", elapsed))...)

	addr, _ := g.addresses.Of(name)
	return &Confirmation{
		TxHash:   hash,
		Block:    block,
		Contract: name,
		Elapsed:  elapsed,
		address:  addr,
		abi:      abis[name],
		logs:     receipt.Logs,
	}, nil
}

// record writes to the journal even if ctx was cancelled. Failures are
// logged only; the transaction outcome does not depend on them.
func (g *Gateway) record(ctx context.Context, s repository.Submission) {
	if err := g.journal.Record(context.WithoutCancel(ctx), s); err != nil {
		metrics.RecordJournalError(string(s.Status))
		g.log.Error(ctx, "failed to journal submission",
			logger.String("tx", s.Hash),
			logger.String("status", string(s.Status)),
			logger.Error(err))
	}
}

func receiptBlock(r *types.Receipt) uint64 {
	if r.BlockNumber == nil || !r.BlockNumber.IsUint64() {
		return 0
	}
	return r.BlockNumber.Uint64()
}

// asRejection recognizes a revert reported before the transaction was sent,
// typically during gas estimation. It returns nil for any other error.
func asRejection(err error) *RejectedError {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return &RejectedError{Reason: reason, Err: err}
				}
			}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return &RejectedError{Reason: err.Error(), Err: err}
	}
	return nil
}
