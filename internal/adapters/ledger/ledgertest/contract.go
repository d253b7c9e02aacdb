package ledgertest

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/gigledger/internal/adapters/ledger"
)

// Raw status codes stored by the contracts.
const (
	projectOpen       uint8 = 0
	projectInProgress uint8 = 1
	milestonePending  uint8 = 0
	milestoneFunded   uint8 = 1
	proposalPending   uint8 = 0
	proposalAccepted  uint8 = 1
)

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// RevertError is what a node reports when a transaction would revert. It
// carries the ABI encoded reason like a JSON-RPC data error.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string { return "execution reverted: " + e.Reason }

// ErrorData returns the hex encoded Error(string) payload.
func (e *RevertError) ErrorData() any {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(e.Reason)
	if err != nil {
		return ""
	}
	return hexutil.Encode(append(append([]byte(nil), revertSelector...), packed...))
}

func revert(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

type contract struct {
	chain   *Chain
	name    ledger.ContractName
	address common.Address
	abi     *abi.ABI
}

func (k *contract) Address() common.Address { return k.address }

// inputs round-trips args through the ABI encoder so that badly typed
// arguments fail the same way they would against a node.
func (k *contract) inputs(method string, args []any) ([]byte, []any, error) {
	m, ok := k.abi.Methods[method]
	if !ok {
		return nil, nil, fmt.Errorf("ledgertest: method %q not found in %s", method, k.name)
	}
	packed, err := k.abi.Pack(method, args...)
	if err != nil {
		return nil, nil, err
	}
	vals, err := m.Inputs.Unpack(packed[4:])
	if err != nil {
		return nil, nil, err
	}
	return packed, vals, nil
}

func (k *contract) outputs(method string, vals ...any) ([]any, error) {
	m := k.abi.Methods[method]
	data, err := m.Outputs.Pack(vals...)
	if err != nil {
		return nil, fmt.Errorf("ledgertest: pack %s outputs: %w", method, err)
	}
	return m.Outputs.Unpack(data)
}

func (k *contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	k.chain.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, in, err := k.inputs(method, args)
	if err != nil {
		return nil, err
	}

	c := k.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.failCall[method]; ok {
		delete(c.failCall, method)
		return nil, err
	}

	switch method {
	case "getAllProjectIds":
		return k.outputs(method, cloneIDs(c.projectIDs))
	case "getProject":
		p, ok := c.projects[in[0].(*big.Int).String()]
		if !ok {
			return nil, revert("project not found")
		}
		return k.outputs(method, p.id, p.client, p.freelancer, p.title, p.description, p.budget,
			p.deadline, p.createdAt, p.status, p.skills, p.experience, p.duration, p.kind, p.attachments)
	case "getProjectMilestoneIds":
		return k.outputs(method, cloneIDs(c.byProjectM[in[0].(*big.Int).String()]))
	case "getMilestone":
		m, ok := c.milestones[in[0].(*big.Int).String()]
		if !ok {
			return nil, revert("milestone not found")
		}
		return k.outputs(method, m.id, m.projectID, m.description, m.amount, m.deadline, m.status)
	case "getProjectProposalIds":
		return k.outputs(method, cloneIDs(c.byProjectP[in[0].(*big.Int).String()]))
	case "getProposal":
		p, ok := c.proposals[in[0].(*big.Int).String()]
		if !ok {
			return nil, revert("proposal not found")
		}
		return k.outputs(method, p.id, p.projectID, p.freelancer, p.description, p.price,
			p.estimatedTime, p.status, p.createdAt)
	case "balanceOf":
		bal, ok := c.balances[in[0].(*big.Int).String()]
		if !ok {
			bal = new(big.Int)
		}
		return k.outputs(method, bal)
	case "getUserReviews":
		rs := c.reviews[in[0].(common.Address)]
		var (
			ids, projects, ratings, timestamps []*big.Int
			reviewers, reviewees               []common.Address
			comments                           []string
		)
		for _, r := range rs {
			ids = append(ids, r.id)
			projects = append(projects, r.projectID)
			reviewers = append(reviewers, r.reviewer)
			reviewees = append(reviewees, r.reviewee)
			ratings = append(ratings, r.rating)
			comments = append(comments, r.comment)
			timestamps = append(timestamps, r.timestamp)
		}
		return k.outputs(method, ids, projects, reviewers, reviewees, ratings, comments, timestamps)
	case "getUserAverageRating":
		rs := c.reviews[in[0].(common.Address)]
		avg := new(big.Int)
		if len(rs) > 0 {
			for _, r := range rs {
				avg.Add(avg, r.rating)
			}
			avg.Quo(avg, big.NewInt(int64(len(rs))))
		}
		return k.outputs(method, avg)
	default:
		return nil, fmt.Errorf("ledgertest: %s is not a read", method)
	}
}

func (k *contract) Transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Transaction, error) {
	k.chain.sends.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	packed, in, err := k.inputs(method, args)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	c := k.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.failSend[method]; ok {
		delete(c.failSend, method)
		return nil, err
	}
	if value.Sign() > 0 && !k.abi.Methods[method].IsPayable() {
		return nil, revert("%s is not payable", method)
	}

	c.nonce++
	c.block++
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		To:       &k.address,
		Value:    value,
		Gas:      300_000,
		GasPrice: big.NewInt(1),
		Data:     packed,
	})
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(c.block),
	}

	if c.revertNext[method] {
		delete(c.revertNext, method)
		receipt.Status = types.ReceiptStatusFailed
		c.receipts[tx.Hash()] = receipt
		return tx, nil
	}

	event, fields, err := k.apply(method, in, value)
	if err != nil {
		c.nonce--
		c.block--
		return nil, err
	}

	ev := k.abi.Events[event]
	logs := []*types.Log{noise(ev)}
	if c.dropNext[method] {
		delete(c.dropNext, method)
	} else {
		l, err := encodeLog(k.address, ev, fields)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	for i, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = c.block
		l.Index = uint(i)
	}
	receipt.Logs = logs
	c.receipts[tx.Hash()] = receipt
	return tx, nil
}

// apply runs a write against the state. Must be called with chain.mu held.
func (k *contract) apply(method string, in []any, value *big.Int) (string, map[string]any, error) {
	c := k.chain
	switch method {
	case "createProject":
		p := c.createProject(c.signer, in[0].(string), in[1].(string), in[2].(*big.Int), in[3].(*big.Int),
			in[4].([]string), in[5].(uint8), in[6].(uint8), in[7].(uint8), in[8].([]string))
		return "ProjectCreated", map[string]any{
			"projectId": p.id, "client": p.client, "title": p.title, "budget": p.budget,
		}, nil

	case "createMilestone":
		pid := in[0].(*big.Int)
		if _, ok := c.projects[pid.String()]; !ok {
			return "", nil, revert("project not found")
		}
		c.nextMilestone++
		m := &milestone{
			id:          big.NewInt(c.nextMilestone),
			projectID:   new(big.Int).Set(pid),
			description: in[1].(string),
			amount:      new(big.Int).Set(in[2].(*big.Int)),
			deadline:    new(big.Int).Set(in[3].(*big.Int)),
			status:      milestonePending,
		}
		c.milestones[m.id.String()] = m
		c.byProjectM[pid.String()] = append(c.byProjectM[pid.String()], m.id)
		return "MilestoneCreated", map[string]any{
			"milestoneId": m.id, "projectId": m.projectID, "amount": m.amount,
		}, nil

	case "submitProposal":
		pid := in[0].(*big.Int)
		p, ok := c.projects[pid.String()]
		if !ok {
			return "", nil, revert("project not found")
		}
		if p.status != projectOpen {
			return "", nil, revert("project is not open")
		}
		c.nextProposal++
		pr := &proposal{
			id:            big.NewInt(c.nextProposal),
			projectID:     new(big.Int).Set(pid),
			freelancer:    c.signer,
			description:   in[1].(string),
			price:         new(big.Int).Set(in[2].(*big.Int)),
			estimatedTime: new(big.Int).Set(in[3].(*big.Int)),
			status:        proposalPending,
			createdAt:     c.timestamp(),
		}
		c.proposals[pr.id.String()] = pr
		c.byProjectP[pid.String()] = append(c.byProjectP[pid.String()], pr.id)
		return "ProposalSubmitted", map[string]any{
			"proposalId": pr.id, "projectId": pr.projectID, "freelancer": pr.freelancer, "price": pr.price,
		}, nil

	case "acceptProposal":
		pr, ok := c.proposals[in[0].(*big.Int).String()]
		if !ok {
			return "", nil, revert("proposal not found")
		}
		if pr.status != proposalPending {
			return "", nil, revert("proposal is not pending")
		}
		pr.status = proposalAccepted
		if p, ok := c.projects[pr.projectID.String()]; ok {
			p.freelancer = pr.freelancer
			p.status = projectInProgress
		}
		return "ProposalAccepted", map[string]any{
			"proposalId": pr.id, "projectId": pr.projectID, "freelancer": pr.freelancer,
		}, nil

	case "deposit":
		mid := in[0].(*big.Int)
		m, ok := c.milestones[mid.String()]
		if !ok {
			return "", nil, revert("milestone not found")
		}
		if value.Sign() <= 0 {
			return "", nil, revert("deposit must be positive")
		}
		bal, ok := c.balances[mid.String()]
		if !ok {
			bal = new(big.Int)
			c.balances[mid.String()] = bal
		}
		bal.Add(bal, value)
		m.status = milestoneFunded
		return "FundsDeposited", map[string]any{
			"milestoneId": m.id, "depositor": c.signer, "amount": new(big.Int).Set(value),
		}, nil

	case "submitReview":
		pid := in[0].(*big.Int)
		if _, ok := c.projects[pid.String()]; !ok {
			return "", nil, revert("project not found")
		}
		reviewee := in[1].(common.Address)
		c.nextReview++
		r := &review{
			id:        big.NewInt(c.nextReview),
			projectID: new(big.Int).Set(pid),
			reviewer:  c.signer,
			reviewee:  reviewee,
			rating:    new(big.Int).Set(in[2].(*big.Int)),
			comment:   in[3].(string),
			timestamp: c.timestamp(),
		}
		c.reviews[reviewee] = append(c.reviews[reviewee], r)
		return "NewReview", map[string]any{
			"reviewId": r.id, "projectId": r.projectID, "reviewer": r.reviewer,
			"reviewee": r.reviewee, "rating": r.rating,
		}, nil

	default:
		return "", nil, fmt.Errorf("ledgertest: %s is not a write", method)
	}
}

// encodeLog builds the log a contract would emit for ev with the given fields.
func encodeLog(address common.Address, ev abi.Event, fields map[string]any) (*types.Log, error) {
	topics := []common.Hash{ev.ID}
	var data []any
	for _, in := range ev.Inputs {
		v, ok := fields[in.Name]
		if !ok {
			return nil, fmt.Errorf("ledgertest: %s.%s missing", ev.Name, in.Name)
		}
		if !in.Indexed {
			data = append(data, v)
			continue
		}
		t, err := abi.MakeTopics([]any{v})
		if err != nil {
			return nil, err
		}
		topics = append(topics, t[0][0])
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, err
	}
	return &types.Log{Address: address, Topics: topics, Data: packed}, nil
}

// noise looks like ev but comes from another contract.
func noise(ev abi.Event) *types.Log {
	return &types.Log{
		Address: noiseAddress,
		Topics:  []common.Hash{ev.ID, common.BigToHash(big.NewInt(999_999))},
		Data:    common.LeftPadBytes(big.NewInt(1).Bytes(), 32),
	}
}

func cloneIDs(ids []*big.Int) []*big.Int {
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = new(big.Int).Set(id)
	}
	return out
}
