// Package ledgertest provides an in-memory ledger that implements
// ledger.Connection. It runs the marketplace, escrow and reputation
// contracts in process, encodes real event logs and can inject faults.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/okian/gigledger/internal/adapters/ledger"
)

// DefaultAddresses are the deployment addresses used by New.
var DefaultAddresses = ledger.Addresses{
	Marketplace: common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
	Escrow:      common.HexToAddress("0x0000000000000000000000000000000000e5c201"),
	Reputation:  common.HexToAddress("0x000000000000000000000000000000000000f00d"),
}

// DefaultSigner is the account every transaction is sent from.
var DefaultSigner = common.HexToAddress("0x1000000000000000000000000000000000000001")

// noiseAddress emits an unrelated log ahead of every real one.
var noiseAddress = common.HexToAddress("0x000000000000000000000000000000000000dead")

// ErrUnknownTransaction is returned by WaitMined for a hash it never sent.
var ErrUnknownTransaction = errors.New("ledgertest: unknown transaction")

type project struct {
	id          *big.Int
	client      common.Address
	freelancer  common.Address
	title       string
	description string
	budget      *big.Int
	deadline    *big.Int
	createdAt   *big.Int
	status      uint8
	skills      []string
	experience  uint8
	duration    uint8
	kind        uint8
	attachments []string
}

type milestone struct {
	id          *big.Int
	projectID   *big.Int
	description string
	amount      *big.Int
	deadline    *big.Int
	status      uint8
}

type proposal struct {
	id            *big.Int
	projectID     *big.Int
	freelancer    common.Address
	description   string
	price         *big.Int
	estimatedTime *big.Int
	status        uint8
	createdAt     *big.Int
}

type review struct {
	id        *big.Int
	projectID *big.Int
	reviewer  common.Address
	reviewee  common.Address
	rating    *big.Int
	comment   string
	timestamp *big.Int
}

// Option configures a Chain.
type Option func(*Chain)

// WithSigner sets the sending account.
func WithSigner(a common.Address) Option {
	return func(c *Chain) { c.signer = a }
}

// WithClock sets the block time source.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		if now != nil {
			c.now = now
		}
	}
}

// WithAddresses overrides the deployment addresses.
func WithAddresses(a ledger.Addresses) Option {
	return func(c *Chain) { c.addrs = a }
}

// Chain is an in-memory ledger. It is safe for concurrent use.
type Chain struct {
	mu     sync.Mutex
	addrs  ledger.Addresses
	signer common.Address
	now    func() time.Time

	projects   map[string]*project
	projectIDs []*big.Int
	milestones map[string]*milestone
	byProjectM map[string][]*big.Int
	proposals  map[string]*proposal
	byProjectP map[string][]*big.Int
	reviews    map[common.Address][]*review
	balances   map[string]*big.Int

	nextProject, nextMilestone, nextProposal, nextReview int64
	nonce, block                                         uint64
	receipts                                             map[common.Hash]*types.Receipt

	failCall   map[string]error
	failSend   map[string]error
	revertNext map[string]bool
	dropNext   map[string]bool
	hold       chan struct{}

	calls, sends, waits atomic.Int64
}

var _ ledger.Connection = (*Chain)(nil)

// New creates an empty ledger.
func New(opts ...Option) *Chain {
	c := &Chain{
		addrs:      DefaultAddresses,
		signer:     DefaultSigner,
		now:        time.Now,
		projects:   make(map[string]*project),
		milestones: make(map[string]*milestone),
		byProjectM: make(map[string][]*big.Int),
		proposals:  make(map[string]*proposal),
		byProjectP: make(map[string][]*big.Int),
		reviews:    make(map[common.Address][]*review),
		balances:   make(map[string]*big.Int),
		receipts:   make(map[common.Hash]*types.Receipt),
		failCall:   make(map[string]error),
		failSend:   make(map[string]error),
		revertNext: make(map[string]bool),
		dropNext:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addresses returns the deployment addresses.
func (c *Chain) Addresses() ledger.Addresses { return c.addrs }

// Signer returns the sending account.
func (c *Chain) Signer() common.Address { return c.signer }

// Calls is the number of reads served.
func (c *Chain) Calls() int64 { return c.calls.Load() }

// Sends is the number of transactions accepted or refused.
func (c *Chain) Sends() int64 { return c.sends.Load() }

// Interactions counts every network round trip: reads, sends and waits.
func (c *Chain) Interactions() int64 {
	return c.calls.Load() + c.sends.Load() + c.waits.Load()
}

// FailNextCall makes the next read of method fail with err.
func (c *Chain) FailNextCall(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCall[method] = err
}

// FailNextSend makes the next send of method fail with err before anything
// reaches the ledger.
func (c *Chain) FailNextSend(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSend[method] = err
}

// RevertNext makes the next send of method be included with a failed status.
func (c *Chain) RevertNext(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertNext[method] = true
}

// DropEventsNext makes the next send of method succeed without its event.
func (c *Chain) DropEventsNext(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropNext[method] = true
}

// Hold keeps WaitMined blocked until Release. Transactions still apply.
func (c *Chain) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hold == nil {
		c.hold = make(chan struct{})
	}
}

// Release unblocks every held WaitMined.
func (c *Chain) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hold != nil {
		close(c.hold)
		c.hold = nil
	}
}

// Bind implements ledger.Connection.
func (c *Chain) Bind(address common.Address, parsed *abi.ABI) (ledger.Contract, error) {
	for _, name := range ledger.Contracts {
		addr, _ := c.addrs.Of(name)
		if addr == address {
			if parsed == nil {
				parsed = ledger.ContractABI(name)
			}
			return &contract{chain: c, name: name, address: address, abi: parsed}, nil
		}
	}
	return nil, fmt.Errorf("ledgertest: no contract deployed at %s", address.Hex())
}

// WaitMined implements ledger.Connection.
func (c *Chain) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.waits.Add(1)
	c.mu.Lock()
	r, ok := c.receipts[tx.Hash()]
	hold := c.hold
	c.mu.Unlock()

	if !ok {
		return nil, ErrUnknownTransaction
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r, nil
}

// AddProject stores an Open project directly, without a transaction, and
// returns its identifier.
func (c *Chain) AddProject(title string, budget *big.Int) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.createProject(c.signer, title, "", budget, big.NewInt(0), nil, 0, 0, 0, nil)
	return new(big.Int).Set(p.id)
}

// SetProjectStatus overwrites the raw status code of a project.
func (c *Chain) SetProjectStatus(id *big.Int, code uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.projects[id.String()]; ok {
		p.status = code
	}
}

// SetProjectDeadline overwrites the raw deadline of a project, in seconds.
func (c *Chain) SetProjectDeadline(id, seconds *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.projects[id.String()]; ok {
		p.deadline = new(big.Int).Set(seconds)
	}
}

// Transactions returns the hashes of every included transaction.
func (c *Chain) Transactions() []common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]common.Hash, 0, len(c.receipts))
	for h := range c.receipts {
		out = append(out, h)
	}
	return out
}

func (c *Chain) timestamp() *big.Int {
	return big.NewInt(c.now().Unix())
}

func (c *Chain) createProject(client common.Address, title, description string, budget, deadline *big.Int,
	skills []string, experience, duration, kind uint8, attachments []string,
) *project {
	c.nextProject++
	p := &project{
		id:          big.NewInt(c.nextProject),
		client:      client,
		title:       title,
		description: description,
		budget:      new(big.Int).Set(budget),
		deadline:    new(big.Int).Set(deadline),
		createdAt:   c.timestamp(),
		skills:      append([]string(nil), skills...),
		experience:  experience,
		duration:    duration,
		kind:        kind,
		attachments: append([]string(nil), attachments...),
	}
	c.projects[p.id.String()] = p
	c.projectIDs = append(c.projectIDs, p.id)
	return p
}
